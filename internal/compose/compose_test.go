package compose

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"harnessdoc/internal/harness"
	"harnessdoc/internal/logging"
	"harnessdoc/internal/tables"
)

func testMeta() harness.DocumentMeta {
	return harness.DocumentMeta{
		ID:          "HD-0042",
		Title:       "Pump <interface> harness",
		Revision:    "C",
		Date:        "2026-04-01",
		Author:      "R. Vance",
		Project:     "Line 3 retrofit",
		Sheet:       1,
		TotalSheets: 1,
	}
}

func smallTable() tables.Table {
	return tables.Table{
		Columns: []string{"Item", "Qty"},
		Rows:    [][]string{{"1", "2"}, {"2", "4"}},
	}
}

func composeDefault(t *testing.T, in Input) *etree.Document {
	t.Helper()
	c, err := New(DefaultTemplate(), Options{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Compose(in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(out); err != nil {
		t.Fatalf("output is not xml: %v\n%s", err, out)
	}
	return doc
}

func textOf(t *testing.T, doc *etree.Document, id string) string {
	t.Helper()
	el := doc.FindElement(fmt.Sprintf("//*[@id='%s']", id))
	if el == nil {
		t.Fatalf("output lacks element %q", id)
	}
	return el.Text()
}

func TestComposeBindsFields(t *testing.T) {
	doc := composeDefault(t, Input{Meta: testMeta(), BOM: smallTable(), Wiring: smallTable()})

	if got := textOf(t, doc, "doc-title"); got != "Pump <interface> harness" {
		t.Errorf("doc-title = %q", got)
	}
	if got := textOf(t, doc, "doc-id"); got != "HD-0042" {
		t.Errorf("doc-id = %q", got)
	}
	if got := textOf(t, doc, "doc-sheet"); got != "1 / 1" {
		t.Errorf("doc-sheet = %q", got)
	}
	if got := textOf(t, doc, "doc-approver"); got != "" {
		t.Errorf("doc-approver = %q, want empty", got)
	}
}

func TestComposeSubstitutesMarkers(t *testing.T) {
	c, err := New(DefaultTemplate(), Options{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Compose(Input{Meta: testMeta(), BOM: smallTable(), Wiring: smallTable()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "HD-0042 / C") {
		t.Errorf("footer marker not substituted:\n%s", s)
	}
	if strings.Contains(s, "{{doc-") {
		t.Errorf("unsubstituted known markers remain:\n%s", s)
	}
}

func TestComposeLeavesUnknownMarkers(t *testing.T) {
	tpl := strings.Replace(string(DefaultTemplate()),
		"{{doc-id}} / {{doc-revision}}", "{{doc-id}} {{no-such-field}}", 1)
	c, err := New([]byte(tpl), Options{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Compose(Input{Meta: testMeta(), BOM: smallTable(), Wiring: smallTable()})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(string(out), "{{no-such-field}}") {
		t.Error("unknown marker should survive substitution")
	}
}

func TestNewRejectsIncompleteTemplate(t *testing.T) {
	cases := []struct{ remove, wantMissing string }{
		{`id="bom-area" `, "bom-area"},
		{`id="doc-title" `, "doc-title"},
	}
	for _, tc := range cases {
		tpl := strings.Replace(string(DefaultTemplate()), tc.remove, "", 1)
		_, err := New([]byte(tpl), Options{}, logging.NewNop())
		if err == nil || !strings.Contains(err.Error(), tc.wantMissing) {
			t.Errorf("template without %s: err = %v", tc.wantMissing, err)
		}
	}
}

func TestMarkerSatisfiesRequiredField(t *testing.T) {
	// Removing the doc-title element is fine as long as a {{doc-title}}
	// marker exists somewhere.
	tpl := strings.Replace(string(DefaultTemplate()), `id="doc-title" `, "", 1)
	tpl = strings.Replace(tpl, "{{doc-id}} / {{doc-revision}}", "{{doc-title}}", 1)
	if _, err := New([]byte(tpl), Options{}, logging.NewNop()); err != nil {
		t.Errorf("marker should satisfy the required field: %v", err)
	}
}

func TestComposeScalesDiagram(t *testing.T) {
	// Twice the area in both axes: expect scale 0.5 and full centering.
	diagram := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 2040 840">
<rect x="10" y="10" width="100" height="50" fill="red"/>
</svg>`)
	doc := composeDefault(t, Input{Meta: testMeta(), Diagram: diagram, BOM: smallTable(), Wiring: smallTable()})

	g := doc.FindElement("//*[@id='diagram']")
	if g == nil {
		t.Fatal("output lacks injected diagram group")
	}
	tr := g.SelectAttrValue("transform", "")
	if !strings.Contains(tr, "scale(0.5)") {
		t.Errorf("transform = %q, want scale(0.5)", tr)
	}
	if g.FindElement(".//rect") == nil {
		t.Error("diagram content not carried into the sheet")
	}
	// The area rect itself is gone.
	if doc.FindElement("//*[@id='diagram-area']") != nil {
		t.Error("diagram-area rect should be replaced")
	}
}

func TestComposeSmallDiagramNotUpscaled(t *testing.T) {
	diagram := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="100pt" height="50pt"><g/></svg>`)
	doc := composeDefault(t, Input{Meta: testMeta(), Diagram: diagram, BOM: smallTable(), Wiring: smallTable()})
	tr := doc.FindElement("//*[@id='diagram']").SelectAttrValue("transform", "")
	if !strings.Contains(tr, "scale(1)") {
		t.Errorf("transform = %q, want scale(1)", tr)
	}
}

func TestComposeInjectsTables(t *testing.T) {
	bom := tables.Table{
		Columns: []string{"Item", "MPN"},
		Rows:    [][]string{{"1", "DT04-2P"}},
	}
	doc := composeDefault(t, Input{Meta: testMeta(), BOM: bom, Wiring: smallTable(), Notes: "Torque backshells to 2 Nm."})

	bomG := doc.FindElement("//*[@id='bom']")
	if bomG == nil {
		t.Fatal("output lacks bom group")
	}
	var header, cell bool
	for _, txt := range bomG.FindElements(".//text") {
		switch txt.Text() {
		case "Item":
			header = txt.SelectAttrValue("font-weight", "") == "bold"
		case "DT04-2P":
			cell = true
		}
	}
	if !header {
		t.Error("bom header row missing or not bold")
	}
	if !cell {
		t.Error("bom data row missing")
	}
	if doc.FindElement("//*[@id='wiring']") == nil {
		t.Error("output lacks wiring group")
	}
	notes := doc.FindElement("//*[@id='notes']")
	if notes == nil || notes.FindElement(".//text") == nil {
		t.Error("output lacks rendered notes")
	}
}

func bigTable() tables.Table {
	big := tables.Table{Columns: []string{"#", "From"}}
	for i := 0; i < 200; i++ {
		big.Rows = append(big.Rows, []string{fmt.Sprintf("%d", i+1), "J1"})
	}
	return big
}

func TestComposeTruncatesOverflowingTable(t *testing.T) {
	doc := composeDefault(t, Input{Meta: testMeta(), BOM: smallTable(), Wiring: bigTable()})

	var omission string
	for _, txt := range doc.FindElement("//*[@id='wiring']").FindElements(".//text") {
		if strings.Contains(txt.Text(), "more rows") {
			omission = txt.Text()
		}
	}
	if omission == "" {
		t.Fatal("overflowing table should carry an omission marker")
	}
	if !strings.Contains(omission, "(+") {
		t.Errorf("omission marker = %q", omission)
	}
}

func TestComposeOverflowErrorPolicy(t *testing.T) {
	c, err := New(DefaultTemplate(), Options{Overflow: OverflowError}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Compose(Input{Meta: testMeta(), BOM: smallTable(), Wiring: bigTable()})
	if err == nil {
		t.Fatal("overflow should fail under the error policy")
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Op != "wiring-area" {
		t.Errorf("err = %#v, want *Error for wiring-area", err)
	}
}

func TestNewReturnsTypedError(t *testing.T) {
	_, err := New([]byte("not an svg <"), Options{}, logging.NewNop())
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Op != "template" {
		t.Errorf("err = %#v, want *Error for template", err)
	}
}
