// Package compose assembles the final document sheet: an SVG template with
// a title block, into which the diagram, the bill of materials, and the
// wiring list are injected.
//
// The template binds content three ways, checked in this order per field:
//
//  1. An element whose id names the field ("doc-title") has its text
//     replaced.
//  2. Text anywhere in the template containing a {{field}} marker has the
//     marker substituted.
//  3. Area elements (rects with ids "diagram-area", "bom-area",
//     "wiring-area", optional "notes-area") are replaced wholesale with
//     generated content sized to the rect.
package compose

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"harnessdoc/internal/harness"
	"harnessdoc/internal/tables"
)

//go:embed templates/sheet-a4.svg
var defaultTemplate []byte

// DefaultTemplate returns the built-in A4 landscape sheet.
func DefaultTemplate() []byte { return defaultTemplate }

// Required element ids. A template missing any of these is rejected before
// any content is bound; the metadata ids may alternatively be covered by a
// {{field}} marker.
var (
	requiredAreas  = []string{"diagram-area", "bom-area", "wiring-area"}
	requiredFields = []string{"doc-id", "doc-title", "doc-revision", "doc-date"}
	optionalFields = []string{"doc-author", "doc-approver", "doc-project", "doc-sheet"}
)

var markerRe = regexp.MustCompile(`\{\{([A-Za-z0-9._-]+)\}\}`)

// Error is a composition failure, tagged with the stage that failed.
type Error struct {
	// Op names the failing stage: "template", "diagram", an area id, or
	// "serialize".
	Op  string
	Err error
}

func (e *Error) Error() string { return "compose " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// OverflowPolicy decides what happens when a table has more rows than its
// sheet area can hold.
type OverflowPolicy int

const (
	// OverflowTruncate drops the rows that do not fit and notes the
	// omission on the sheet. The full table export keeps every row.
	OverflowTruncate OverflowPolicy = iota
	// OverflowError fails the composition instead.
	OverflowError
)

// Options tunes composition behavior.
type Options struct {
	Overflow OverflowPolicy
}

// Input is everything the composer binds into the sheet.
type Input struct {
	Meta harness.DocumentMeta
	// Diagram is the layout engine's SVG output. Empty skips the diagram
	// area (it stays visible as drawn in the template).
	Diagram []byte
	BOM     tables.Table
	Wiring  tables.Table
	Notes   string
}

// Composer binds content into one parsed template. Build a new Composer per
// output sheet; the underlying document is mutated in place.
type Composer struct {
	doc  *etree.Document
	opts Options
	log  *zap.Logger
}

// New parses the template and verifies the required structure.
func New(templateSVG []byte, opts Options, log *zap.Logger) (*Composer, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(templateSVG); err != nil {
		return nil, &Error{Op: "template", Err: fmt.Errorf("parse: %w", err)}
	}
	c := &Composer{doc: doc, opts: opts, log: log}

	var missing []string
	for _, id := range requiredAreas {
		if c.byID(id) == nil {
			missing = append(missing, id)
		}
	}
	markers := c.markerFields()
	for _, id := range requiredFields {
		if c.byID(id) == nil && !markers[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &Error{Op: "template",
			Err: fmt.Errorf("lacks required elements: %s", strings.Join(missing, ", "))}
	}
	return c, nil
}

// Compose binds in and serializes the finished sheet.
func (c *Composer) Compose(in Input) ([]byte, error) {
	fields := fieldValues(in.Meta)

	for name, value := range fields {
		c.bindField(name, value)
	}
	c.substituteMarkers(fields)

	if len(in.Diagram) > 0 {
		if err := c.injectDiagram(in.Diagram); err != nil {
			return nil, &Error{Op: "diagram", Err: err}
		}
	}
	if err := c.injectTable("bom-area", in.BOM); err != nil {
		return nil, &Error{Op: "bom-area", Err: err}
	}
	if err := c.injectTable("wiring-area", in.Wiring); err != nil {
		return nil, &Error{Op: "wiring-area", Err: err}
	}
	if in.Notes != "" {
		c.injectNotes(in.Notes)
	}

	out, err := c.doc.WriteToBytes()
	if err != nil {
		return nil, &Error{Op: "serialize", Err: err}
	}
	return out, nil
}

// fieldValues flattens the metadata into marker names.
func fieldValues(meta harness.DocumentMeta) map[string]string {
	fields := map[string]string{
		"doc-id":       meta.ID,
		"doc-title":    meta.Title,
		"doc-revision": meta.Revision,
		"doc-date":     meta.Date,
		"doc-author":   meta.Author,
		"doc-approver": meta.Approver,
		"doc-project":  meta.Project,
	}
	if meta.Sheet > 0 {
		if meta.TotalSheets > 0 {
			fields["doc-sheet"] = fmt.Sprintf("%d / %d", meta.Sheet, meta.TotalSheets)
		} else {
			fields["doc-sheet"] = strconv.Itoa(meta.Sheet)
		}
	} else {
		fields["doc-sheet"] = ""
	}
	for k, v := range meta.Custom {
		fields["custom."+k] = v
	}
	return fields
}

func (c *Composer) byID(id string) *etree.Element {
	return c.doc.FindElement(fmt.Sprintf("//*[@id='%s']", id))
}

// markerFields collects the marker names present anywhere in template text.
func (c *Composer) markerFields() map[string]bool {
	found := make(map[string]bool)
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, m := range markerRe.FindAllStringSubmatch(e.Text(), -1) {
			found[m[1]] = true
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	if root := c.doc.Root(); root != nil {
		walk(root)
	}
	return found
}

// bindField sets the text of the element carrying the field's id. Elements
// wrapping their text in a tspan keep the tspan and its styling.
func (c *Composer) bindField(name, value string) {
	el := c.byID(name)
	if el == nil {
		return
	}
	if tspan := el.FindElement("./tspan"); tspan != nil {
		tspan.SetText(value)
		return
	}
	el.SetText(value)
}

// substituteMarkers rewrites {{field}} markers in all text. Unknown markers
// stay in place and are logged, so a typo is visible in the output rather
// than silently blanked.
func (c *Composer) substituteMarkers(fields map[string]string) {
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if text := e.Text(); strings.Contains(text, "{{") {
			e.SetText(markerRe.ReplaceAllStringFunc(text, func(m string) string {
				name := markerRe.FindStringSubmatch(m)[1]
				if v, ok := fields[name]; ok {
					return v
				}
				c.log.Warn("unknown template marker", zap.String("marker", name))
				return m
			}))
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	if root := c.doc.Root(); root != nil {
		walk(root)
	}
}

// area is the geometry of a template rect.
type area struct {
	x, y, w, h float64
}

// areaOf reads an area rect's geometry and returns the element.
func (c *Composer) areaOf(id string) (*etree.Element, area, error) {
	el := c.byID(id)
	if el == nil {
		return nil, area{}, fmt.Errorf("sheet template lacks element %q", id)
	}
	var a area
	var err error
	read := func(attr string) float64 {
		v := el.SelectAttrValue(attr, "")
		f, perr := parseLength(v)
		if perr != nil && err == nil {
			err = fmt.Errorf("%s: bad %s=%q", id, attr, v)
		}
		return f
	}
	a.x, a.y, a.w, a.h = read("x"), read("y"), read("width"), read("height")
	if err != nil {
		return nil, area{}, err
	}
	return el, a, nil
}

// replaceWith swaps the area element for generated content in the same spot
// of the tree.
func replaceWith(old *etree.Element, repl *etree.Element) {
	parent := old.Parent()
	idx := old.Index()
	parent.InsertChildAt(idx, repl)
	parent.RemoveChild(old)
}

// parseLength reads an SVG length, ignoring a trailing unit suffix.
func parseLength(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		ch := s[end]
		if ch >= '0' && ch <= '9' || ch == '.' || ch == '-' || ch == '+' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, fmt.Errorf("no number in %q", s)
	}
	return strconv.ParseFloat(s[:end], 64)
}
