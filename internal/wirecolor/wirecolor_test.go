package wirecolor

import (
	"errors"
	"testing"
)

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  Color
	}{
		{"single", "RD", Color{Display: "RD", Base: "RD"}},
		{"single lowercase", "bk", Color{Display: "BK", Base: "BK"}},
		{"single padded", "  WH ", Color{Display: "WH", Base: "WH"}},
		{"hyphenated", "WH-GN", Color{Display: "WH-GN", Base: "WH", Stripe: "GN"}},
		{"hyphenated lowercase", "bu-wh", Color{Display: "BU-WH", Base: "BU", Stripe: "WH"}},
		{"concatenated", "BUWH", Color{Display: "BUWH", Base: "BU", Stripe: "WH"}},
		{"concatenated pair two", "OGWH", Color{Display: "OGWH", Base: "OG", Stripe: "WH"}},
		{"numbered", "BU1", Color{Display: "BU1", Base: "BU"}},
		{"numbered multi digit", "GN12", Color{Display: "GN12", Base: "GN"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.token)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %+v, want %+v", tt.token, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	tokens := []string{
		"",            // empty
		"XX",          // unknown single
		"WH-XX",       // unknown stripe
		"XX-GN",       // unknown base
		"WH-GN-RD",    // too many segments
		"BKXX",        // 4 chars but not two valid codes
		"XX1",         // numbered with unknown base
		"12RD",        // digits first
		"BLACK",       // word, not a code
		"W",           // too short
	}
	for _, tok := range tokens {
		if _, err := Normalize(tok); err == nil {
			t.Errorf("Normalize(%q) succeeded, want error", tok)
		}
	}
}

func TestNormalizeErrorType(t *testing.T) {
	_, err := Normalize("ZZ-GN")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error is %T, want *wirecolor.Error", err)
	}
	if cerr.Token != "ZZ-GN" {
		t.Errorf("Token = %q, want token preserved", cerr.Token)
	}
}

// Concatenated and hyphenated forms of the same pair must keep distinct
// display conventions while agreeing on canonical codes.
func TestDisplayConventionsDiffer(t *testing.T) {
	hy, err := Normalize("BU-WH")
	if err != nil {
		t.Fatal(err)
	}
	cat, err := Normalize("BUWH")
	if err != nil {
		t.Fatal(err)
	}
	if hy.Base != cat.Base || hy.Stripe != cat.Stripe {
		t.Errorf("canonical codes diverge: %+v vs %+v", hy, cat)
	}
	if hy.Display == cat.Display {
		t.Errorf("display conventions should differ: %q vs %q", hy.Display, cat.Display)
	}
}

// Normalize(Render(Normalize(t))) == Normalize(t) for every accepted token.
func TestNormalizeIdempotent(t *testing.T) {
	tokens := []string{"BK", "WH-GN", "BUWH", "RD3", "gy-pk", "tq"}
	for _, tok := range tokens {
		first, err := Normalize(tok)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tok, err)
		}
		second, err := Normalize(Render(first))
		if err != nil {
			t.Fatalf("Normalize(Render(%q)): %v", tok, err)
		}
		if first != second {
			t.Errorf("round trip diverged for %q: %+v vs %+v", tok, first, second)
		}
	}
}

func TestBaseCodesFixedSet(t *testing.T) {
	codes := BaseCodes()
	if len(codes) != 12 {
		t.Fatalf("base set has %d codes, want 12", len(codes))
	}
	for _, c := range codes {
		if !IsBaseCode(c) {
			t.Errorf("IsBaseCode(%q) = false", c)
		}
	}
	if IsBaseCode("SL") {
		t.Error("SL is outside the fixed set")
	}
}
