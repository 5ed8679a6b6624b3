// parse.go — raw document decoding.
//
// The source document is decoded through yaml.Node rather than straight into
// structs, for two reasons: mapping sections (parts, connectors, cables) are
// keyed by id and their declaration order must survive into the model, and
// node line numbers let diagnostics point at the offending entry.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rawDocument mirrors the top level of the source YAML before validation.
// The metadata block is accepted under both its documented name and the
// short form.
type rawDocument struct {
	Metadata    *DocumentMeta  `yaml:"metadata"`
	Meta        *DocumentMeta  `yaml:"meta"`
	Parts       yaml.Node      `yaml:"parts"`
	Connectors  yaml.Node      `yaml:"connectors"`
	Cables      yaml.Node      `yaml:"cables"`
	Connections []rawConnection `yaml:"connections"`
	Accessories []rawAccessory  `yaml:"accessories"`
	Notes       string          `yaml:"notes"`
}

// rawConnector carries both variants' fields; validation decides which
// variant the entry is, and rejects entries that mix them.
type rawConnector struct {
	Part string `yaml:"part"`

	Manufacturer string      `yaml:"manufacturer"`
	MPN          string      `yaml:"mpn"`
	PN           string      `yaml:"pn"`
	Description  string      `yaml:"description"`
	Alternates   []Alternate `yaml:"alternates"`
	Fields       Fields      `yaml:"fields"`
	Image        *ImageSpec  `yaml:"image"`

	Pincount    int      `yaml:"pincount"`
	Pinlabels   []string `yaml:"pinlabels"`
	Pins        []PinDef `yaml:"pins"`
	Accessories []string `yaml:"accessories"`
	Notes       string   `yaml:"notes"`
}

type rawCore struct {
	Index int    `yaml:"index"`
	Color string `yaml:"color"`
	Label string `yaml:"label"`
	Pair  int    `yaml:"pair"`
	Twist string `yaml:"twist"`
}

type rawCable struct {
	Part      string      `yaml:"part"`
	Wirecount int         `yaml:"wirecount"`
	Colors    []string    `yaml:"colors"`
	Cores     []rawCore   `yaml:"cores"`
	Gauge     string      `yaml:"gauge"`
	Length    rawQuantity `yaml:"length"`
	Shield    *ShieldSpec `yaml:"shield"`
	Notes     string      `yaml:"notes"`
}

type rawEndpoint struct {
	Connector string `yaml:"connector"`
	Pin       string `yaml:"pin"`
}

type rawConnection struct {
	From  rawEndpoint `yaml:"from"`
	Cable string      `yaml:"cable"`
	Core  int         `yaml:"core"`
	To    rawEndpoint `yaml:"to"`
	Notes string      `yaml:"notes"`
}

type rawAccessory struct {
	ID       string      `yaml:"id"`
	Type     string      `yaml:"type"`
	Part     string      `yaml:"part"`
	Quantity rawQuantity `yaml:"quantity"`
	Location string      `yaml:"location"`
	Notes    string      `yaml:"notes"`
}

// rawQuantity accepts either a bare number (unit defaults per context) or a
// {value, unit} mapping.
type rawQuantity struct {
	Value float64
	Unit  string
	set   bool
}

func (q *rawQuantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		q.Value = v
		q.set = true
		return nil
	}
	var m struct {
		Value float64 `yaml:"value"`
		Unit  string  `yaml:"unit"`
	}
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	q.Value = m.Value
	q.Unit = m.Unit
	q.set = true
	return nil
}

// orderedEntry is one key/value pair from a mapping section, in declaration
// order.
type orderedEntry struct {
	key  string
	node *yaml.Node
	line int
}

// orderedEntries flattens a mapping node into declaration-ordered entries.
// A zero (absent) node yields nil; a non-mapping node is an error.
func orderedEntries(section string, node yaml.Node) ([]orderedEntry, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping keyed by id", section)
	}
	entries := make([]orderedEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		entries = append(entries, orderedEntry{
			key:  k.Value,
			node: node.Content[i+1],
			line: k.Line,
		})
	}
	return entries, nil
}

// ParseFile reads and decodes a harness document. Decode failures are
// returned as errors; semantic problems are left to Validate.
func ParseFile(path string) (*rawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read harness document: %w", err)
	}
	return Parse(data)
}

// Parse decodes a harness document from bytes.
func Parse(data []byte) (*rawDocument, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode harness document: %w", err)
	}
	if raw.Meta == nil {
		raw.Meta = raw.Metadata
	}
	return &raw, nil
}
