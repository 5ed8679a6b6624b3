// Package tables derives the tabular artifacts of a harness document: the
// point-to-point wiring list and the bill of materials.
//
// Both tables are deterministic projections of the validated model. Row
// order follows the document's declaration order, never an alphabetical
// sort, so the author controls how the tables read.
package tables

import (
	"strings"
)

// Table is a rendered table: a header and rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// TSV renders the table as tab-separated values with a header line. Cell
// text is flattened: tabs and newlines become single spaces.
func (t Table) TSV() string {
	var b strings.Builder
	writeRow := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(flatten(c))
		}
		b.WriteByte('\n')
	}
	writeRow(t.Columns)
	for _, row := range t.Rows {
		writeRow(row)
	}
	return b.String()
}

func flatten(s string) string {
	r := strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")
	return r.Replace(s)
}
