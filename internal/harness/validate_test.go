package harness

import (
	"strings"
	"testing"
)

const minimalDoc = `
meta:
  id: HD-0001
  title: Pump interface harness
  revision: B
  date: 2026-03-02

parts:
  conn-dt04:
    manufacturer: Deutsch
    mpn: DT04-2P
    description: 2-way receptacle
  wire-2c:
    manufacturer: Alpha Wire
    mpn: 5012C
    description: 2-conductor 22 AWG cable

connectors:
  J1:
    part: conn-dt04
    pincount: 2
    pinlabels: [PWR, GND]
  J2:
    part: conn-dt04
    pincount: 2

cables:
  W1:
    part: wire-2c
    wirecount: 2
    colors: [RD, BK]
    gauge: 22 AWG
    length: {value: 1.5, unit: m}

connections:
  - from: {connector: J1, pin: PWR}
    cable: W1
    core: 1
    to: {connector: J2, pin: "1"}
  - from: {connector: J1, pin: GND}
    cable: W1
    core: 2
    to: {connector: J2, pin: "2"}
`

func mustValidate(t *testing.T, doc string, opts Options) (*HarnessModel, *Diagnostics) {
	t.Helper()
	raw, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Validate(raw, opts)
}

func TestValidateMinimalDocument(t *testing.T) {
	m, diags := mustValidate(t, minimalDoc, Options{})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Summary())
	}
	if m == nil {
		t.Fatal("expected a model")
	}
	if got := m.ConnectorOrder; len(got) != 2 || got[0] != "J1" || got[1] != "J2" {
		t.Fatalf("connector order = %v", got)
	}
	if len(m.Connections) != 2 {
		t.Fatalf("connections = %d, want 2", len(m.Connections))
	}

	// Pin references resolve both by label and by number.
	if idx := m.Connections[0].From.PinIndex; idx != 1 {
		t.Errorf("J1 PWR resolved to pin %d, want 1", idx)
	}
	if idx := m.Connections[1].To.PinIndex; idx != 2 {
		t.Errorf("J2 pin 2 resolved to %d, want 2", idx)
	}

	w1 := m.Cables["W1"]
	if w1 == nil || len(w1.Cores) != 2 {
		t.Fatalf("W1 cores = %+v", w1)
	}
	if w1.Cores[0].Color.Display != "RD" || w1.Cores[1].Color.Display != "BK" {
		t.Errorf("core colors = %q, %q", w1.Cores[0].Color.Display, w1.Cores[1].Color.Display)
	}
}

func TestValidateMetadataSectionName(t *testing.T) {
	// The metadata block is accepted under its full name too.
	doc := `
metadata:
  id: HD-0008
  title: Valve harness
  revision: A
  date: 2026-02-02
connectors:
  J1: {manufacturer: M, mpn: P, description: d, pincount: 1}
`
	m, diags := mustValidate(t, doc, Options{})
	if m == nil {
		t.Fatalf("document with metadata: section rejected:\n%s", diags.Summary())
	}
	if m.Meta.ID != "HD-0008" {
		t.Errorf("meta id = %q", m.Meta.ID)
	}
}

func TestValidateAccumulatesFindings(t *testing.T) {
	doc := `
meta:
  id: HD-0002
  title: Broken harness
  revision: A
  date: 2026-01-10
connectors:
  J1:
    part: nope
    pincount: 0
cables:
  W1:
    wirecount: 2
    colors: [RD, ZZ]
connections:
  - from: {connector: J1, pin: "1"}
    cable: W9
    core: 1
    to: {connector: J9, pin: "1"}
`
	m, diags := mustValidate(t, doc, Options{})
	if m != nil {
		t.Fatal("expected no model when errors are present")
	}

	want := []struct {
		kind Kind
		path string
	}{
		{KindReference, "connectors.J1.part"},
		{KindRange, "connectors.J1.pincount"},
		{KindColor, "cables.W1.cores[2].color"},
		{KindReference, "connections[0].cable"},
		{KindReference, "connections[0].to.connector"},
	}
	for _, w := range want {
		found := false
		for _, d := range diags.Items() {
			if d.Kind == w.kind && d.Path == w.path && d.Severity == SeverityError {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing %s error at %s; got:\n%s", w.kind, w.path, diags.Summary())
		}
	}
}

func TestValidateVariantExclusivity(t *testing.T) {
	cases := []struct {
		name      string
		connector string
		wantErr   bool
	}{
		{"library", "part: conn-dt04\n    pincount: 2", false},
		{"inline", "manufacturer: TE\n    mpn: 1-480698-0\n    description: housing\n    pincount: 2", false},
		{"mixed", "part: conn-dt04\n    manufacturer: TE\n    mpn: x\n    pincount: 2", true},
		{"neither", "pincount: 2", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := `
meta: {id: HD-1, title: T, revision: A, date: 2026-01-01}
parts:
  conn-dt04: {manufacturer: Deutsch, mpn: DT04-2P, description: housing}
connectors:
  J1:
    ` + tc.connector + `
`
			_, diags := mustValidate(t, doc, Options{})
			hasSchemaErr := false
			for _, d := range diags.Items() {
				if d.Severity == SeverityError && d.Kind == KindSchema &&
					strings.HasPrefix(d.Path, "connectors.J1") {
					hasSchemaErr = true
				}
			}
			if hasSchemaErr != tc.wantErr {
				t.Errorf("schema error = %v, want %v:\n%s", hasSchemaErr, tc.wantErr, diags.Summary())
			}
		})
	}
}

func TestValidateExplicitCores(t *testing.T) {
	doc := `
meta: {id: HD-3, title: T, revision: A, date: 2026-01-01}
connectors:
  J1: {manufacturer: M, mpn: P, description: d, pincount: 2}
  J2: {manufacturer: M, mpn: P, description: d, pincount: 2}
cables:
  W1:
    wirecount: 4
    cores:
      - {index: 1, color: WH-BU, pair: 1, twist: pair}
      - {index: 2, color: BU, pair: 1, twist: pair}
      - {index: 3, color: WH-OG, pair: 2, twist: pair}
      - {index: 4, color: OG, pair: 2, twist: pair}
    gauge: 24 AWG
    length: 3
    shield: {type: braid, coverage: 85, drain: true}
connections:
  - {from: {connector: J1, pin: "1"}, cable: W1, core: 1, to: {connector: J2, pin: "1"}}
  - {from: {connector: J1, pin: "2"}, cable: W1, core: 2, to: {connector: J2, pin: "2"}}
`
	m, diags := mustValidate(t, doc, Options{})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Summary())
	}
	w1 := m.Cables["W1"]
	if got := w1.Cores[0].Color.Display; got != "WH-BU" {
		t.Errorf("core 1 color = %q, want WH-BU", got)
	}
	if w1.Cores[0].PairGroup != 1 || w1.Cores[3].PairGroup != 2 {
		t.Errorf("pair groups = %d, %d", w1.Cores[0].PairGroup, w1.Cores[3].PairGroup)
	}
	// Bare-number length defaults to meters.
	if w1.Length.Unit != "m" || w1.Length.Value != 3 {
		t.Errorf("length = %v", w1.Length)
	}
	// Cores 3 and 4 are declared but unwired.
	if !diags.HasWarnings() {
		t.Error("expected unused-core warnings")
	}
}

func TestValidateCoreIndexBounds(t *testing.T) {
	doc := `
meta: {id: HD-4, title: T, revision: A, date: 2026-01-01}
cables:
  W1:
    wirecount: 2
    cores:
      - {index: 0, color: RD}
      - {index: 3, color: BK}
      - {index: 1, color: GN}
      - {index: 1, color: YE}
`
	_, diags := mustValidate(t, doc, Options{})
	var rangeErrs, dupErrs int
	for _, d := range diags.Items() {
		if d.Severity != SeverityError {
			continue
		}
		switch d.Kind {
		case KindRange:
			rangeErrs++
		case KindSchema:
			if strings.Contains(d.Message, "duplicate core index") {
				dupErrs++
			}
		}
	}
	// Index 0, index 3, and the cores/wirecount mismatch.
	if rangeErrs != 3 {
		t.Errorf("range errors = %d, want 3:\n%s", rangeErrs, diags.Summary())
	}
	if dupErrs != 1 {
		t.Errorf("duplicate-index errors = %d, want 1:\n%s", dupErrs, diags.Summary())
	}
}

func TestValidateRejectsPartialCoreList(t *testing.T) {
	doc := `
meta: {id: HD-4b, title: T, revision: A, date: 2026-01-01}
cables:
  W1:
    wirecount: 4
    cores:
      - {index: 1, color: RD}
      - {index: 2, color: BK}
`
	m, diags := mustValidate(t, doc, Options{})
	if m != nil {
		t.Fatal("partial core list should not validate")
	}
	found := false
	for _, d := range diags.Items() {
		if d.Kind == KindRange && d.Path == "cables.W1.cores" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing cores/wirecount mismatch error:\n%s", diags.Summary())
	}
}

func TestValidateRejectsDuplicateEndpoints(t *testing.T) {
	doc := `
meta: {id: HD-4c, title: T, revision: A, date: 2026-01-01}
connectors:
  J1: {manufacturer: M, mpn: P, description: d, pincount: 2}
  J2: {manufacturer: M, mpn: P, description: d, pincount: 2}
cables:
  W1: {wirecount: 2, colors: [RD, BK], gauge: 22 AWG, length: 1}
connections:
  - {from: {connector: J1, pin: "1"}, cable: W1, core: 1, to: {connector: J2, pin: "1"}}
  - {from: {connector: J1, pin: "1"}, cable: W1, core: 2, to: {connector: J2, pin: "2"}}
`
	m, diags := mustValidate(t, doc, Options{})
	if m != nil {
		t.Fatal("double-wired pin should not validate")
	}
	if !strings.Contains(diags.Summary(), "already wired by connections[0]") {
		t.Errorf("missing duplicate-endpoint error:\n%s", diags.Summary())
	}
}

func TestValidateAccessories(t *testing.T) {
	doc := `
meta: {id: HD-5, title: T, revision: A, date: 2026-01-01}
parts:
  hs-6mm: {manufacturer: 3M, mpn: FP301-1/4, description: heatshrink 6mm}
connectors:
  J1:
    manufacturer: M
    mpn: P
    description: d
    pincount: 1
    accessories: [hs1, missing]
accessories:
  - {id: hs1, type: heatshrink, part: hs-6mm, quantity: {value: 30, unit: mm}, location: J1 backshell}
  - {id: hs1, type: heatshrink}
  - {id: z1, type: zipper}
`
	_, diags := mustValidate(t, doc, Options{})
	wantMsgs := []string{
		`duplicate accessory id "hs1"`,
		`unknown accessory type "zipper"`,
		`accessory "missing" is not declared`,
	}
	for _, want := range wantMsgs {
		if !strings.Contains(diags.Summary(), want) {
			t.Errorf("missing diagnostic %q:\n%s", want, diags.Summary())
		}
	}
}

func TestValidateAccessoryQuantityDefault(t *testing.T) {
	doc := `
meta: {id: HD-6, title: T, revision: A, date: 2026-01-01}
accessories:
  - {id: tie1, type: cable_tie}
`
	m, diags := mustValidate(t, doc, Options{})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Summary())
	}
	if q := m.Accessories[0].Quantity; q.Value != 1 || q.Unit != "pcs" {
		t.Errorf("default quantity = %v, want 1 pcs", q)
	}
}

func TestValidateStrictPromotesWarnings(t *testing.T) {
	doc := `
meta: {id: HD-7, title: T, revision: A, date: 2026-01-01}
connectors:
  J1: {manufacturer: M, mpn: P, description: d, pincount: 1}
`
	m, diags := mustValidate(t, doc, Options{})
	if diags.HasErrors() || m == nil {
		t.Fatalf("lenient run should pass with warnings:\n%s", diags.Summary())
	}
	if !diags.HasWarnings() {
		t.Fatal("expected an unused-connector warning")
	}

	m, diags = mustValidate(t, doc, Options{Strict: true})
	if m != nil || !diags.HasErrors() {
		t.Fatalf("strict run should fail:\n%s", diags.Summary())
	}
	if diags.HasWarnings() {
		t.Error("strict run should leave no warning-severity findings")
	}
}

func TestReferencedPartIDs(t *testing.T) {
	m, diags := mustValidate(t, minimalDoc, Options{})
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.Summary())
	}
	got := m.ReferencedPartIDs()
	want := []string{"conn-dt04", "wire-2c"}
	if len(got) != len(want) {
		t.Fatalf("referenced parts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("referenced parts = %v, want %v", got, want)
		}
	}
}
