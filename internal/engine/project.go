// Package engine produces the layout-engine input document and runs the
// external layout/conversion tools that turn it into a diagram.
//
// The projection is a pure function of the validated model: same model in,
// byte-identical document out. Section and entry order follow the model's
// declaration order, so the projector never sorts.
package engine

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"harnessdoc/internal/harness"
)

// Project renders the layout-engine input YAML for the model. Connector and
// cable entries carry only what the layout engine draws; administrative
// fields (part numbers, alternates, custom fields) stay out of the diagram.
func Project(m *harness.HarnessModel) ([]byte, error) {
	root := mapping()

	connectors := mapping()
	for _, id := range m.ConnectorOrder {
		appendPair(connectors, scalar(id), projectConnector(m, m.Connectors[id]))
	}
	appendPair(root, scalar("connectors"), connectors)

	cables := mapping()
	for _, id := range m.CableOrder {
		appendPair(cables, scalar(id), projectCable(m.Cables[id]))
	}
	appendPair(root, scalar("cables"), cables)

	connections := &yaml.Node{Kind: yaml.SequenceNode}
	for _, batch := range batchConnections(m.Connections) {
		connections.Content = append(connections.Content, projectBatch(batch))
	}
	appendPair(root, scalar("connections"), connections)

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode engine input: %w", err)
	}
	return out, nil
}

func projectConnector(m *harness.HarnessModel, c *harness.Connector) *yaml.Node {
	n := mapping()
	appendPair(n, scalar("pincount"), intScalar(c.Pincount))
	if len(c.Pinlabels) > 0 {
		appendPair(n, scalar("pinlabels"), stringSeq(c.Pinlabels))
	}
	if part := c.PartIn(m); part != nil {
		appendPair(n, scalar("type"), scalar(part.Description))
		if part.ResolvedImage != "" {
			img := mapping()
			appendPair(img, scalar("src"), scalar(part.ResolvedImage))
			if part.Image != nil && part.Image.Caption != "" {
				appendPair(img, scalar("caption"), scalar(part.Image.Caption))
			}
			if part.Image != nil && part.Image.Height != "" {
				appendPair(img, scalar("height"), scalar(part.Image.Height))
			}
			appendPair(n, scalar("image"), img)
		}
	}
	if c.Notes != "" {
		appendPair(n, scalar("notes"), scalar(c.Notes))
	}
	return n
}

func projectCable(c *harness.Cable) *yaml.Node {
	n := mapping()
	appendPair(n, scalar("wirecount"), intScalar(c.Wirecount))

	colors := &yaml.Node{Kind: yaml.SequenceNode}
	// One display token per conductor slot; slots without a declared core
	// render as empty strings so the engine keeps the numbering aligned.
	for i := 1; i <= c.Wirecount; i++ {
		display := ""
		if core := c.CoreAt(i); core != nil {
			display = core.Color.Display
		}
		colors.Content = append(colors.Content, scalar(display))
	}
	appendPair(n, scalar("colors"), colors)

	if c.Gauge != "" {
		appendPair(n, scalar("gauge"), scalar(c.Gauge))
	}
	if c.Length.Value > 0 {
		appendPair(n, scalar("length"), scalar(c.Length.String()))
	}
	if c.Shield != nil {
		appendPair(n, scalar("shield"), scalar(c.Shield.Type))
	}
	if c.Notes != "" {
		appendPair(n, scalar("notes"), scalar(c.Notes))
	}
	return n
}

// batch groups consecutive connections sharing endpoints and cable into one
// drawn bundle.
type batch struct {
	from, cable, to string
	fromPins        []int
	cores           []int
	toPins          []int
}

// batchConnections folds the declared connection list into bundles. Only
// consecutive rows merge, so the author's ordering decides the drawing
// order.
func batchConnections(conns []harness.Connection) []batch {
	var out []batch
	for _, c := range conns {
		if n := len(out); n > 0 {
			b := &out[n-1]
			if b.from == c.From.Connector && b.cable == c.Cable && b.to == c.To.Connector {
				b.fromPins = append(b.fromPins, c.From.PinIndex)
				b.cores = append(b.cores, c.Core)
				b.toPins = append(b.toPins, c.To.PinIndex)
				continue
			}
		}
		out = append(out, batch{
			from:     c.From.Connector,
			cable:    c.Cable,
			to:       c.To.Connector,
			fromPins: []int{c.From.PinIndex},
			cores:    []int{c.Core},
			toPins:   []int{c.To.PinIndex},
		})
	}
	return out
}

// projectBatch renders one bundle as the engine's triple form:
//
//	- J1: [1, 2]
//	- W1: [1, 2]
//	- J2: [1, 2]
func projectBatch(b batch) *yaml.Node {
	triple := &yaml.Node{Kind: yaml.SequenceNode, Style: 0}
	triple.Content = append(triple.Content,
		singlePair(b.from, intSeq(b.fromPins)),
		singlePair(b.cable, intSeq(b.cores)),
		singlePair(b.to, intSeq(b.toPins)),
	)
	return triple
}

// ---------------------------------------------------------------------------
// yaml.Node construction helpers
// ---------------------------------------------------------------------------

func mapping() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode} }

func appendPair(m *yaml.Node, k, v *yaml.Node) {
	m.Content = append(m.Content, k, v)
}

func singlePair(key string, v *yaml.Node) *yaml.Node {
	m := mapping()
	appendPair(m, scalar(key), v)
	return m
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

func intScalar(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

func stringSeq(ss []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, s := range ss {
		n.Content = append(n.Content, scalar(s))
	}
	return n
}

func intSeq(is []int) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, i := range is {
		n.Content = append(n.Content, intScalar(i))
	}
	return n
}
