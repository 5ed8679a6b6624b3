// Package harness defines the typed wiring-harness model and the validator
// that builds it from a raw declarative document.
//
// A HarnessModel is created once per input document by Validate, is
// read-only for the remainder of the build, and is discarded when the
// build completes. All cross references (part ids, connector pins, cable
// cores, accessory ids) are resolved during validation, so downstream
// stages never re-check them.
package harness

import (
	"fmt"
	"strings"

	"harnessdoc/internal/wirecolor"
)

// ---------------------------------------------------------------------------
// Common value types
// ---------------------------------------------------------------------------

// Quantity is a measured value with its unit string ("2.5 m", "120 mm").
type Quantity struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
}

func (q Quantity) String() string {
	if q.Value == float64(int64(q.Value)) {
		return fmt.Sprintf("%d %s", int64(q.Value), q.Unit)
	}
	return fmt.Sprintf("%g %s", q.Value, q.Unit)
}

// ImageSpec is a declared image reference on a part.
type ImageSpec struct {
	Src     string `yaml:"src"`
	Caption string `yaml:"caption,omitempty"`
	Height  string `yaml:"height,omitempty"`
}

// Fields is an open-ended string-keyed mapping for vendor/custom fields.
// It has no fixed field set and is read-only after validation.
type Fields map[string]string

// ---------------------------------------------------------------------------
// Parts
// ---------------------------------------------------------------------------

// Alternate is an acceptable substitute for a primary part.
type Alternate struct {
	Manufacturer string `yaml:"manufacturer"`
	MPN          string `yaml:"mpn"`
	VendorSKU    string `yaml:"vendor_sku,omitempty"`
	URL          string `yaml:"url,omitempty"`
}

// Part is one entry in the document's part library.
type Part struct {
	ID           string      `yaml:"id"`
	PrimaryPN    string      `yaml:"pn,omitempty"`
	Manufacturer string      `yaml:"manufacturer"`
	MPN          string      `yaml:"mpn"`
	Description  string      `yaml:"description"`
	Alternates   []Alternate `yaml:"alternates,omitempty"`
	Fields       Fields      `yaml:"fields,omitempty"`
	Image        *ImageSpec  `yaml:"image,omitempty"`

	// ResolvedImage is filled in by the image resolver after validation.
	// Empty means no image was resolved (permitted under allow-missing).
	ResolvedImage string `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Connectors
// ---------------------------------------------------------------------------

// ConnectorVariant tags the two mutually exclusive connector declarations.
type ConnectorVariant string

const (
	// ConnectorLibrary references a Part from the parts library by id.
	ConnectorLibrary ConnectorVariant = "library"
	// ConnectorInline carries its part fields inline, without a library entry.
	ConnectorInline ConnectorVariant = "inline"
)

// PinDef is an optional detailed pin record.
type PinDef struct {
	Number      int    `yaml:"number"`
	Label       string `yaml:"label,omitempty"`
	Description string `yaml:"description,omitempty"`
	Signal      string `yaml:"signal,omitempty"`
}

// Connector is one connector in the harness. Exactly one of PartID (library
// variant) or Inline (ad hoc variant) is set; Variant says which. Consumers
// switch on Variant exhaustively rather than probing optional fields.
type Connector struct {
	ID      string           `yaml:"id"`
	Variant ConnectorVariant `yaml:"variant"`
	PartID  string           `yaml:"part,omitempty"`
	Inline  *Part            `yaml:"inline,omitempty"`

	Pincount    int      `yaml:"pincount"`
	Pinlabels   []string `yaml:"pinlabels,omitempty"`
	Pins        []PinDef `yaml:"pins,omitempty"`
	Accessories []string `yaml:"accessories,omitempty"`
	Notes       string   `yaml:"notes,omitempty"`
}

// PartIn returns the connector's part definition, resolving the library
// variant against m. Returns nil for a library variant whose part is absent
// (never the case after validation).
func (c *Connector) PartIn(m *HarnessModel) *Part {
	switch c.Variant {
	case ConnectorLibrary:
		return m.Parts[c.PartID]
	case ConnectorInline:
		return c.Inline
	}
	return nil
}

// PinIndex resolves a pin reference (a 1-based number or a declared label)
// to its 1-based index. ok is false for out-of-range numbers and unknown
// labels.
func (c *Connector) PinIndex(ref string) (int, bool) {
	if n, err := parseInt(ref); err == nil {
		if n >= 1 && n <= c.Pincount {
			return n, true
		}
		return 0, false
	}
	for i, label := range c.Pinlabels {
		if label == ref {
			return i + 1, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Cables
// ---------------------------------------------------------------------------

// Core is a single conductor within a cable. Index is 1-based and unique
// within the cable.
type Core struct {
	Index     int             `yaml:"index"`
	Token     string          `yaml:"color"`
	Color     wirecolor.Color `yaml:"-"`
	Label     string          `yaml:"label,omitempty"`
	PairGroup int             `yaml:"pair,omitempty"`
	Twist     string          `yaml:"twist,omitempty"`
}

// ShieldSpec describes cable shielding.
type ShieldSpec struct {
	Type     string  `yaml:"type"`
	Coverage float64 `yaml:"coverage,omitempty"`
	Drain    bool    `yaml:"drain,omitempty"`
}

// Cable is one cable in the harness. PartID is optional; a cable without a
// part reference still carries its own wire geometry.
type Cable struct {
	ID        string      `yaml:"id"`
	PartID    string      `yaml:"part,omitempty"`
	Wirecount int         `yaml:"wirecount"`
	Cores     []Core      `yaml:"cores"`
	Gauge     string      `yaml:"gauge"`
	Length    Quantity    `yaml:"length"`
	Shield    *ShieldSpec `yaml:"shield,omitempty"`
	Notes     string      `yaml:"notes,omitempty"`
}

// CoreAt returns the core with the given 1-based index, or nil.
func (c *Cable) CoreAt(index int) *Core {
	for i := range c.Cores {
		if c.Cores[i].Index == index {
			return &c.Cores[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------------

// Endpoint is one side of a connection. Pin holds the reference as written
// (number or label); PinIndex is the resolved 1-based index.
type Endpoint struct {
	Connector string `yaml:"connector"`
	Pin       string `yaml:"pin"`
	PinIndex  int    `yaml:"-"`
}

// Connection wires one connector pin to another through one cable core.
type Connection struct {
	From  Endpoint `yaml:"from"`
	Cable string   `yaml:"cable"`
	Core  int      `yaml:"core"`
	To    Endpoint `yaml:"to"`
	Notes string   `yaml:"notes,omitempty"`
}

func (c Connection) String() string {
	return fmt.Sprintf("%s:%s -> [%s:%d] -> %s:%s",
		c.From.Connector, c.From.Pin, c.Cable, c.Core, c.To.Connector, c.To.Pin)
}

// ---------------------------------------------------------------------------
// Accessories
// ---------------------------------------------------------------------------

// AccessoryType is the closed set of accessory categories.
type AccessoryType string

const (
	AccHeatshrink AccessoryType = "heatshrink"
	AccLabel      AccessoryType = "label"
	AccCableTie   AccessoryType = "cable_tie"
	AccConduit    AccessoryType = "conduit"
	AccTape       AccessoryType = "tape"
	AccGrommet    AccessoryType = "grommet"
	AccClip       AccessoryType = "clip"
	AccSleeve     AccessoryType = "sleeve"
)

var accessoryTypes = map[AccessoryType]bool{
	AccHeatshrink: true, AccLabel: true, AccCableTie: true, AccConduit: true,
	AccTape: true, AccGrommet: true, AccClip: true, AccSleeve: true,
}

// IsAccessoryType reports whether t names a member of the closed set.
func IsAccessoryType(t string) bool {
	return accessoryTypes[AccessoryType(t)]
}

// AccessoryTypeNames lists the closed set in a stable order, for messages.
func AccessoryTypeNames() []string {
	return []string{
		string(AccHeatshrink), string(AccLabel), string(AccCableTie),
		string(AccConduit), string(AccTape), string(AccGrommet),
		string(AccClip), string(AccSleeve),
	}
}

// Accessory is a supplementary assembly component.
type Accessory struct {
	ID       string        `yaml:"id"`
	Type     AccessoryType `yaml:"type"`
	PartID   string        `yaml:"part,omitempty"`
	Quantity Quantity      `yaml:"quantity"`
	Location string        `yaml:"location,omitempty"`
	Notes    string        `yaml:"notes,omitempty"`
}

// ---------------------------------------------------------------------------
// Document metadata and aggregate
// ---------------------------------------------------------------------------

// DocumentMeta is the per-document administrative block. Immutable once
// validated.
type DocumentMeta struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Revision    string `yaml:"revision"`
	Date        string `yaml:"date"`
	Author      string `yaml:"author,omitempty"`
	Approver    string `yaml:"approver,omitempty"`
	Project     string `yaml:"project,omitempty"`
	Sheet       int    `yaml:"sheet,omitempty"`
	TotalSheets int    `yaml:"total_sheets,omitempty"`
	Custom      Fields `yaml:"custom,omitempty"`
}

// HarnessModel is the validated aggregate. Collections keyed by id also
// carry declaration-order slices so every derived artifact is deterministic
// without sorting away the author's ordering.
type HarnessModel struct {
	Meta DocumentMeta

	Parts     map[string]*Part
	PartOrder []string

	Connectors     map[string]*Connector
	ConnectorOrder []string

	Cables     map[string]*Cable
	CableOrder []string

	Connections []Connection
	Accessories []Accessory

	Notes string
}

// ReferencedPartIDs returns the ids of parts actually used by a connector,
// cable, or accessory, in first-reference order.
func (m *HarnessModel) ReferencedPartIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, cid := range m.ConnectorOrder {
		if conn := m.Connectors[cid]; conn.Variant == ConnectorLibrary {
			add(conn.PartID)
		}
	}
	for _, cid := range m.CableOrder {
		add(m.Cables[cid].PartID)
	}
	for _, acc := range m.Accessories {
		add(acc.PartID)
	}
	return ids
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
