// wiring.go — point-to-point wiring list.
package tables

import (
	"fmt"
	"sort"

	"harnessdoc/internal/harness"
)

// wiringColumns is the fixed column set of the wiring list.
var wiringColumns = []string{
	"#", "From", "Pin", "Cable", "Core", "Color", "Label", "Pair", "Twist",
	"Gauge", "Shield", "To", "Pin", "Notes",
}

// WiringOrder selects the row order of the wiring list.
type WiringOrder int

const (
	// OrderDeclared keeps the document's connection declaration order.
	OrderDeclared WiringOrder = iota
	// OrderByCable groups rows by cable id in first-use order, cores
	// ascending within each cable.
	OrderByCable
)

// ParseWiringOrder maps a user-facing name to a WiringOrder.
func ParseWiringOrder(s string) (WiringOrder, error) {
	switch s {
	case "", "declared":
		return OrderDeclared, nil
	case "cable":
		return OrderByCable, nil
	}
	return OrderDeclared, fmt.Errorf("unknown wiring order %q (declared, cable)", s)
}

// Wiring builds the wiring list, numbered in output order. Pin cells show
// the declared label when the connector has one, otherwise the pin number.
func Wiring(m *harness.HarnessModel, order WiringOrder) Table {
	idx := make([]int, len(m.Connections))
	for i := range idx {
		idx[i] = i
	}
	if order == OrderByCable {
		rank := make(map[string]int)
		for _, c := range m.Connections {
			if _, ok := rank[c.Cable]; !ok {
				rank[c.Cable] = len(rank)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ca, cb := m.Connections[idx[a]], m.Connections[idx[b]]
			if ca.Cable != cb.Cable {
				return rank[ca.Cable] < rank[cb.Cable]
			}
			return ca.Core < cb.Core
		})
	}

	t := Table{Columns: wiringColumns}
	for n, i := range idx {
		c := m.Connections[i]
		cable := m.Cables[c.Cable]
		core := cable.CoreAt(c.Core)

		t.Rows = append(t.Rows, []string{
			fmt.Sprintf("%d", n+1),
			c.From.Connector,
			pinCell(m.Connectors[c.From.Connector], c.From.PinIndex),
			c.Cable,
			fmt.Sprintf("%d", c.Core),
			core.Color.Display,
			core.Label,
			pairCell(core),
			core.Twist,
			cable.Gauge,
			shieldCell(cable),
			c.To.Connector,
			pinCell(m.Connectors[c.To.Connector], c.To.PinIndex),
			c.Notes,
		})
	}
	return t
}

func pinCell(conn *harness.Connector, index int) string {
	if index >= 1 && index <= len(conn.Pinlabels) {
		return conn.Pinlabels[index-1]
	}
	return fmt.Sprintf("%d", index)
}

func pairCell(core *harness.Core) string {
	if core.PairGroup > 0 {
		return fmt.Sprintf("%d", core.PairGroup)
	}
	return ""
}

func shieldCell(cable *harness.Cable) string {
	if cable.Shield == nil {
		return ""
	}
	s := cable.Shield.Type
	if cable.Shield.Drain {
		s += " + drain"
	}
	return s
}
