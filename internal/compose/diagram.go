// diagram.go — scaling the rendered diagram into its sheet area.
package compose

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// injectDiagram replaces the diagram area rect with the diagram's content,
// scaled to fit the rect. Aspect ratio is preserved and the diagram is
// centered; a diagram smaller than the area is never scaled up.
func (c *Composer) injectDiagram(diagram []byte) error {
	el, a, err := c.areaOf("diagram-area")
	if err != nil {
		return err
	}

	src := etree.NewDocument()
	if err := src.ReadFromBytes(diagram); err != nil {
		return fmt.Errorf("parse diagram svg: %w", err)
	}
	root := src.Root()
	if root == nil || root.Tag != "svg" {
		return fmt.Errorf("diagram is not an svg document")
	}

	minX, minY, dw, dh, err := diagramBounds(root)
	if err != nil {
		return err
	}
	if dw <= 0 || dh <= 0 {
		return fmt.Errorf("diagram has no usable dimensions")
	}

	scale := a.w / dw
	if s := a.h / dh; s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	if scale < a.w/dw || scale < a.h/dh {
		c.log.Debug("diagram scaled to fit",
			zap.Float64("scale", scale),
			zap.Float64("diagram_w", dw),
			zap.Float64("diagram_h", dh))
	}

	// Center the scaled diagram inside the area.
	tx := a.x + (a.w-dw*scale)/2 - minX*scale
	ty := a.y + (a.h-dh*scale)/2 - minY*scale

	g := etree.NewElement("g")
	g.CreateAttr("id", "diagram")
	g.CreateAttr("transform", fmt.Sprintf("translate(%s %s) scale(%s)",
		fmtNum(tx), fmtNum(ty), fmtNum(scale)))
	for _, child := range root.ChildElements() {
		g.AddChild(child.Copy())
	}
	replaceWith(el, g)
	return nil
}

// diagramBounds reads the source coordinate system: viewBox when present,
// width/height attributes otherwise.
func diagramBounds(root *etree.Element) (minX, minY, w, h float64, err error) {
	if vb := root.SelectAttrValue("viewBox", ""); vb != "" {
		parts := strings.Fields(strings.ReplaceAll(vb, ",", " "))
		if len(parts) != 4 {
			return 0, 0, 0, 0, fmt.Errorf("diagram viewBox %q malformed", vb)
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			if vals[i], err = parseLength(p); err != nil {
				return 0, 0, 0, 0, fmt.Errorf("diagram viewBox %q: %w", vb, err)
			}
		}
		return vals[0], vals[1], vals[2], vals[3], nil
	}
	w, werr := parseLength(root.SelectAttrValue("width", ""))
	h, herr := parseLength(root.SelectAttrValue("height", ""))
	if werr != nil || herr != nil {
		return 0, 0, 0, 0, fmt.Errorf("diagram declares neither viewBox nor width/height")
	}
	return 0, 0, w, h, nil
}

// fmtNum renders a coordinate without trailing noise.
func fmtNum(f float64) string {
	s := fmt.Sprintf("%.3f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
