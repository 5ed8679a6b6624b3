// bom.go — bill of materials aggregation.
package tables

import (
	"fmt"
	"sort"
	"strings"

	"harnessdoc/internal/harness"
)

// bomColumns is the fixed column set of the bill of materials.
var bomColumns = []string{
	"Item", "Qty", "Unit", "PN", "Manufacturer", "MPN", "Description",
	"Alternates", "Fields", "Designators",
}

// BOMLine is one aggregated bill-of-materials entry.
type BOMLine struct {
	Qty          float64
	Unit         string
	PN           string
	Manufacturer string
	MPN          string
	Description  string
	Alternates   []harness.Alternate
	Fields       harness.Fields
	// Designators lists the model ids consuming this line, in first-use
	// order.
	Designators []string
}

// BOM aggregates the model into bill-of-materials lines:
//
//   - Library parts used by connectors count in pieces, one per connector.
//   - Library parts used by cables sum declared lengths; mixed units stay
//     on separate lines.
//   - Inline connector parts aggregate by manufacturer and MPN.
//   - Accessories with a part reference sum quantities per part and unit.
//   - Accessories without a part reference each get their own line named by
//     their type.
//
// Line order is first-use order over the model's declaration order.
func BOM(m *harness.HarnessModel) []BOMLine {
	agg := newAggregator()

	for _, id := range m.ConnectorOrder {
		conn := m.Connectors[id]
		part := conn.PartIn(m)
		agg.add(lineKey(part, "pcs"), part, 1, "pcs", id)
	}
	for _, id := range m.CableOrder {
		cable := m.Cables[id]
		if cable.PartID == "" {
			continue
		}
		part := m.Parts[cable.PartID]
		qty, unit := cable.Length.Value, cable.Length.Unit
		if qty == 0 {
			qty, unit = 1, "pcs"
		}
		agg.add(lineKey(part, unit), part, qty, unit, id)
	}
	for i := range m.Accessories {
		acc := &m.Accessories[i]
		if acc.PartID != "" {
			part := m.Parts[acc.PartID]
			agg.add(lineKey(part, acc.Quantity.Unit), part, acc.Quantity.Value, acc.Quantity.Unit, acc.ID)
			continue
		}
		agg.addBare(acc)
	}
	return agg.lines
}

// BOMTable renders the aggregated lines as a table.
func BOMTable(m *harness.HarnessModel) Table {
	t := Table{Columns: bomColumns}
	for i, l := range BOM(m) {
		t.Rows = append(t.Rows, []string{
			fmt.Sprintf("%d", i+1),
			formatQty(l.Qty),
			l.Unit,
			l.PN,
			l.Manufacturer,
			l.MPN,
			l.Description,
			formatAlternates(l.Alternates),
			formatFields(l.Fields),
			strings.Join(l.Designators, ", "),
		})
	}
	return t
}

type aggregator struct {
	lines []BOMLine
	index map[string]int
}

func newAggregator() *aggregator {
	return &aggregator{index: make(map[string]int)}
}

// lineKey identifies an aggregation bucket. Library and inline parts both
// key on manufacturer+MPN so the same physical part declared twice still
// collapses to one line; the unit keeps lengths and pieces apart.
func lineKey(part *harness.Part, unit string) string {
	return part.Manufacturer + "\x00" + part.MPN + "\x00" + unit
}

func (a *aggregator) add(key string, part *harness.Part, qty float64, unit, designator string) {
	if i, ok := a.index[key]; ok {
		a.lines[i].Qty += qty
		a.lines[i].Designators = append(a.lines[i].Designators, designator)
		return
	}
	a.index[key] = len(a.lines)
	a.lines = append(a.lines, BOMLine{
		Qty:          qty,
		Unit:         unit,
		PN:           part.PrimaryPN,
		Manufacturer: part.Manufacturer,
		MPN:          part.MPN,
		Description:  part.Description,
		Alternates:   part.Alternates,
		Fields:       part.Fields,
		Designators:  []string{designator},
	})
}

// addBare appends a line for an accessory with no part library backing.
func (a *aggregator) addBare(acc *harness.Accessory) {
	desc := strings.ReplaceAll(string(acc.Type), "_", " ")
	if acc.Notes != "" {
		desc += ", " + acc.Notes
	}
	a.lines = append(a.lines, BOMLine{
		Qty:         acc.Quantity.Value,
		Unit:        acc.Quantity.Unit,
		Description: desc,
		Designators: []string{acc.ID},
	})
}

// formatAlternates renders substitutes as "Manufacturer MPN" entries.
func formatAlternates(alts []harness.Alternate) string {
	parts := make([]string, 0, len(alts))
	for _, alt := range alts {
		if alt.Manufacturer != "" {
			parts = append(parts, alt.Manufacturer+" "+alt.MPN)
		} else {
			parts = append(parts, alt.MPN)
		}
	}
	return strings.Join(parts, "; ")
}

// formatFields renders vendor fields in key order so output is stable.
func formatFields(f harness.Fields) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+f[k])
	}
	return strings.Join(parts, "; ")
}

func formatQty(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
