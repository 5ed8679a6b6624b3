// Package wirecolor normalizes wire color tokens into a canonical
// (display, base, stripe) triple.
//
// Four notations are accepted, tried in this priority order:
//
//	single       — one code from the fixed twelve-code base set ("BK")
//	hyphenated   — BASE-STRIPE two-tone pair ("WH-GN")
//	concatenated — telecom 25-pair shorthand, two codes no separator ("BUWH")
//	numbered     — base code plus integer suffix ("BU1"), a repeated-color
//	               disambiguation, not a physical stripe
//
// The display field preserves the caller's notation for table rendering;
// base and stripe carry the canonical codes consumed by the diagram
// projector. Unknown base codes fail regardless of which shape matched.
package wirecolor

import (
	"fmt"
	"regexp"
	"strings"
)

// Color is the canonical form of a wire color token.
type Color struct {
	Display string `yaml:"display"`
	Base    string `yaml:"base"`
	Stripe  string `yaml:"stripe,omitempty"`
}

// baseCodes is the fixed twelve-code set (IEC 60757 dozen).
var baseCodes = map[string]bool{
	"BK": true, // black
	"BN": true, // brown
	"RD": true, // red
	"OG": true, // orange
	"YE": true, // yellow
	"GN": true, // green
	"BU": true, // blue
	"VT": true, // violet
	"GY": true, // grey
	"WH": true, // white
	"PK": true, // pink
	"TQ": true, // turquoise
}

// IsBaseCode reports whether code is one of the twelve canonical base codes.
func IsBaseCode(code string) bool {
	return baseCodes[code]
}

// BaseCodes returns the twelve canonical base codes in a stable order.
func BaseCodes() []string {
	return []string{"BK", "BN", "RD", "OG", "YE", "GN", "BU", "VT", "GY", "WH", "PK", "TQ"}
}

// Error reports an unrecognized color token.
type Error struct {
	Token  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("color %q: %s", e.Token, e.Reason)
}

var numberedRe = regexp.MustCompile(`^([A-Z]{2})(\d+)$`)

// matcher attempts one notation shape. It returns the parsed color and
// whether the token's shape matched at all; a shape match with an unknown
// base code returns err instead of falling through to a later matcher.
type matcher func(token string) (c Color, matched bool, err error)

// matchers is the ordered chain. Order is significant: an ambiguous token
// resolves to the first shape that claims it.
var matchers = []matcher{matchSingle, matchHyphenated, matchConcatenated, matchNumbered}

func matchSingle(t string) (Color, bool, error) {
	if len(t) != 2 || !isAlpha(t) {
		return Color{}, false, nil
	}
	if !baseCodes[t] {
		return Color{}, true, &Error{Token: t, Reason: "unknown base code"}
	}
	return Color{Display: t, Base: t}, true, nil
}

func matchHyphenated(t string) (Color, bool, error) {
	if !strings.Contains(t, "-") {
		return Color{}, false, nil
	}
	parts := strings.Split(t, "-")
	if len(parts) != 2 {
		return Color{}, true, &Error{Token: t, Reason: "expected exactly one BASE-STRIPE pair"}
	}
	base, stripe := parts[0], parts[1]
	if !baseCodes[base] {
		return Color{}, true, &Error{Token: t, Reason: fmt.Sprintf("unknown base code %q", base)}
	}
	if !baseCodes[stripe] {
		return Color{}, true, &Error{Token: t, Reason: fmt.Sprintf("unknown stripe code %q", stripe)}
	}
	return Color{Display: t, Base: base, Stripe: stripe}, true, nil
}

func matchConcatenated(t string) (Color, bool, error) {
	if len(t) != 4 || !isAlpha(t) {
		return Color{}, false, nil
	}
	base, stripe := t[:2], t[2:]
	if !baseCodes[base] || !baseCodes[stripe] {
		return Color{}, true, &Error{Token: t, Reason: "not a valid 25-pair code pair"}
	}
	return Color{Display: t, Base: base, Stripe: stripe}, true, nil
}

func matchNumbered(t string) (Color, bool, error) {
	m := numberedRe.FindStringSubmatch(t)
	if m == nil {
		return Color{}, false, nil
	}
	if !baseCodes[m[1]] {
		return Color{}, true, &Error{Token: t, Reason: fmt.Sprintf("unknown base code %q", m[1])}
	}
	// The numeric suffix distinguishes repeated colors; it is not a stripe.
	return Color{Display: t, Base: m[1]}, true, nil
}

// Normalize parses token into its canonical form. The token is trimmed and
// upper-cased before matching, so "wh-gn" and "WH-GN" are equivalent.
func Normalize(token string) (Color, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" {
		return Color{}, &Error{Token: token, Reason: "empty token"}
	}
	for _, m := range matchers {
		c, matched, err := m(t)
		if err != nil {
			return Color{}, err
		}
		if matched {
			return c, nil
		}
	}
	return Color{}, &Error{Token: token, Reason: "unrecognized notation"}
}

// Render returns the display notation for c. Normalizing the rendered form
// yields c again, which keeps table output and canonical codes in lockstep.
func Render(c Color) string {
	return c.Display
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
