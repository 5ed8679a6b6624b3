// table.go — rendering tables into sheet areas as SVG text.
package compose

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"harnessdoc/internal/tables"
)

const (
	tableFontSize = 7.0
	tableRowH     = tableFontSize * 1.5
	tablePad      = 3.0
	// charW approximates glyph advance for column sizing; exact metrics
	// are not available without a font renderer.
	charW = tableFontSize * 0.62
)

// tableSnippet generates the SVG fragment for one table. Delimiters are
// [[ ]] so the fragment's own braces never collide with field markers.
var tableSnippet = template.Must(template.New("table").Delims("[[", "]]").Parse(strings.TrimSpace(`
<g id="[[.ID]]" font-family="DejaVu Sans, sans-serif" font-size="[[.FontSize]]" fill="#000000">
[[- range .Texts]]
<text x="[[.X]]" y="[[.Y]]"[[- if .Bold]] font-weight="bold"[[- end]]>[[.Value]]</text>
[[- end]]
</g>
`)))

type tableText struct {
	X, Y  string
	Bold  bool
	Value string
}

type tableData struct {
	ID       string
	FontSize string
	Texts    []tableText
}

// injectTable replaces an area rect with the table rendered as text rows.
// Under the truncate policy, rows that do not fit the area height are
// dropped and replaced by a count of what was omitted; under the error
// policy an overflowing table fails the composition.
func (c *Composer) injectTable(id string, t tables.Table) error {
	el, a, err := c.areaOf(id)
	if err != nil {
		return err
	}

	rows := t.Rows
	capacity := int((a.h-2*tablePad)/tableRowH) - 1 // minus the header row
	if capacity < 0 {
		capacity = 0
	}
	truncated := 0
	if len(rows) > capacity {
		if c.opts.Overflow == OverflowError {
			return fmt.Errorf("%d rows exceed the area's capacity of %d", len(rows), capacity)
		}
		// Keep one slot for the omission marker.
		keep := capacity - 1
		if keep < 0 {
			keep = 0
		}
		truncated = len(rows) - keep
		rows = rows[:keep]
		c.log.Warn("table truncated to fit its area",
			zap.String("area", id),
			zap.Int("omitted_rows", truncated))
	}

	xs := columnOffsets(a, t.Columns, rows)
	data := tableData{ID: strings.TrimSuffix(id, "-area"), FontSize: fmtNum(tableFontSize)}

	y := a.y + tablePad + tableFontSize
	emit := func(cells []string, bold bool) {
		for i, cell := range cells {
			if i >= len(xs) || cell == "" {
				continue
			}
			data.Texts = append(data.Texts, tableText{
				X:     fmtNum(xs[i]),
				Y:     fmtNum(y),
				Bold:  bold,
				Value: xmlEscape(cell),
			})
		}
		y += tableRowH
	}

	emit(t.Columns, true)
	for _, row := range rows {
		emit(row, false)
	}
	if truncated > 0 {
		emit([]string{fmt.Sprintf("(+%d more rows, see the full table export)", truncated)}, false)
	}

	return c.renderInto(el, data)
}

// injectNotes fills the optional notes area with wrapped text. A template
// without a notes area simply drops the notes from the sheet.
func (c *Composer) injectNotes(notes string) {
	el, a, err := c.areaOf("notes-area")
	if err != nil {
		c.log.Debug("template has no notes area, notes omitted from sheet")
		return
	}

	data := tableData{ID: "notes", FontSize: fmtNum(tableFontSize)}
	maxChars := int((a.w - 2*tablePad) / charW)
	y := a.y + tablePad + tableFontSize
	for _, line := range wrapText(notes, maxChars) {
		if y > a.y+a.h {
			break
		}
		data.Texts = append(data.Texts, tableText{
			X:     fmtNum(a.x + tablePad),
			Y:     fmtNum(y),
			Value: xmlEscape(line),
		})
		y += tableRowH
	}
	if err := c.renderInto(el, data); err != nil {
		c.log.Warn("notes rendering failed", zap.Error(err))
	}
}

// renderInto expands the snippet and swaps it in for the area element.
func (c *Composer) renderInto(el *etree.Element, data tableData) error {
	var b strings.Builder
	if err := tableSnippet.Execute(&b, data); err != nil {
		return fmt.Errorf("render %s: %w", data.ID, err)
	}
	frag := etree.NewDocument()
	if err := frag.ReadFromString(b.String()); err != nil {
		return fmt.Errorf("render %s: %w", data.ID, err)
	}
	replaceWith(el, frag.Root().Copy())
	return nil
}

// columnOffsets lays columns across the area width, proportional to their
// widest cell.
func columnOffsets(a area, columns []string, rows [][]string) []float64 {
	widths := make([]float64, len(columns))
	measure := func(cells []string) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if w := float64(len(cell)) * charW; w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(columns)
	for _, row := range rows {
		measure(row)
	}

	total := 0.0
	for i := range widths {
		widths[i] += charW * 2 // column gap
		total += widths[i]
	}
	usable := a.w - 2*tablePad
	if total > usable && total > 0 {
		f := usable / total
		for i := range widths {
			widths[i] *= f
		}
	}

	xs := make([]float64, len(widths))
	x := a.x + tablePad
	for i, w := range widths {
		xs[i] = x
		x += w
	}
	return xs
}

func wrapText(s string, maxChars int) []string {
	if maxChars < 8 {
		maxChars = 8
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > maxChars {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
