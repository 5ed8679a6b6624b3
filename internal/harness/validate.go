// validate.go — builds the typed model from a raw document.
//
// Validation runs in four accumulating passes: structural checks, wire color
// normalization, cross-reference resolution, and usage analysis. Passes
// never stop at the first finding; the caller receives every diagnostic the
// document produces in one run. A model is returned only when no
// error-severity finding was recorded.
package harness

import (
	"fmt"

	"harnessdoc/internal/wirecolor"
)

// Options adjusts validation behavior.
type Options struct {
	// Strict promotes every warning to an error after all passes complete.
	Strict bool
}

// Validate checks raw against the model rules and assembles the typed
// HarnessModel. On any error-severity diagnostic the model is nil; the
// diagnostics are always returned in full.
func Validate(raw *rawDocument, opts Options) (*HarnessModel, *Diagnostics) {
	v := &validator{raw: raw, diags: &Diagnostics{}}

	v.checkMeta()
	v.buildParts()
	v.buildConnectors()
	v.buildCables()
	v.normalizeColors()
	v.buildAccessories()
	v.resolveReferences()
	v.checkUsage()

	if opts.Strict {
		v.diags.Promote()
	}
	if v.diags.HasErrors() {
		return nil, v.diags
	}
	return v.model, v.diags
}

type validator struct {
	raw   *rawDocument
	diags *Diagnostics
	model *HarnessModel
}

// ---------------------------------------------------------------------------
// Pass 1: structure
// ---------------------------------------------------------------------------

func (v *validator) checkMeta() {
	v.model = &HarnessModel{
		Parts:      make(map[string]*Part),
		Connectors: make(map[string]*Connector),
		Cables:     make(map[string]*Cable),
		Notes:      v.raw.Notes,
	}
	if v.raw.Meta == nil {
		v.diags.Errorf(KindSchema, "meta", "missing document metadata block")
		return
	}
	v.model.Meta = *v.raw.Meta
	required := []struct{ name, val string }{
		{"id", v.raw.Meta.ID},
		{"title", v.raw.Meta.Title},
		{"revision", v.raw.Meta.Revision},
		{"date", v.raw.Meta.Date},
	}
	for _, f := range required {
		if f.val == "" {
			v.diags.Errorf(KindSchema, "meta."+f.name, "required field is empty")
		}
	}
	if s, t := v.raw.Meta.Sheet, v.raw.Meta.TotalSheets; t > 0 && (s < 1 || s > t) {
		v.diags.Errorf(KindRange, "meta.sheet", "sheet %d outside 1..%d", s, t)
	}
}

func (v *validator) buildParts() {
	entries, err := orderedEntries("parts", v.raw.Parts)
	if err != nil {
		v.diags.Errorf(KindSchema, "parts", "%v", err)
		return
	}
	for _, e := range entries {
		path := "parts." + e.key
		if _, dup := v.model.Parts[e.key]; dup {
			v.diags.Errorf(KindSchema, path, "duplicate part id (line %d)", e.line)
			continue
		}
		var p Part
		if err := e.node.Decode(&p); err != nil {
			v.diags.Errorf(KindSchema, path, "bad part entry: %v", err)
			continue
		}
		p.ID = e.key
		if p.Manufacturer == "" {
			v.diags.Errorf(KindSchema, path+".manufacturer", "required field is empty")
		}
		if p.MPN == "" {
			v.diags.Errorf(KindSchema, path+".mpn", "required field is empty")
		}
		if p.Description == "" {
			v.diags.Errorf(KindSchema, path+".description", "required field is empty")
		}
		for i, alt := range p.Alternates {
			if alt.Manufacturer == "" || alt.MPN == "" {
				v.diags.Errorf(KindSchema, fmt.Sprintf("%s.alternates[%d]", path, i),
					"alternate needs both manufacturer and mpn")
			}
		}
		v.model.Parts[e.key] = &p
		v.model.PartOrder = append(v.model.PartOrder, e.key)
	}
}

func (v *validator) buildConnectors() {
	entries, err := orderedEntries("connectors", v.raw.Connectors)
	if err != nil {
		v.diags.Errorf(KindSchema, "connectors", "%v", err)
		return
	}
	for _, e := range entries {
		path := "connectors." + e.key
		if _, dup := v.model.Connectors[e.key]; dup {
			v.diags.Errorf(KindSchema, path, "duplicate connector id (line %d)", e.line)
			continue
		}
		var rc rawConnector
		if err := e.node.Decode(&rc); err != nil {
			v.diags.Errorf(KindSchema, path, "bad connector entry: %v", err)
			continue
		}
		conn := &Connector{
			ID:          e.key,
			Pincount:    rc.Pincount,
			Pinlabels:   rc.Pinlabels,
			Pins:        rc.Pins,
			Accessories: rc.Accessories,
			Notes:       rc.Notes,
		}

		hasInline := rc.Manufacturer != "" || rc.MPN != "" || rc.Description != ""
		switch {
		case rc.Part != "" && hasInline:
			v.diags.Errorf(KindSchema, path,
				"connector mixes a part reference with inline part fields; use one or the other")
			continue
		case rc.Part != "":
			conn.Variant = ConnectorLibrary
			conn.PartID = rc.Part
		case hasInline:
			conn.Variant = ConnectorInline
			conn.Inline = &Part{
				ID:           e.key,
				PrimaryPN:    rc.PN,
				Manufacturer: rc.Manufacturer,
				MPN:          rc.MPN,
				Description:  rc.Description,
				Alternates:   rc.Alternates,
				Fields:       rc.Fields,
				Image:        rc.Image,
			}
			if rc.Manufacturer == "" || rc.MPN == "" {
				v.diags.Errorf(KindSchema, path,
					"inline connector needs both manufacturer and mpn")
			}
		default:
			v.diags.Errorf(KindSchema, path,
				"connector needs either a part reference or inline manufacturer/mpn")
			continue
		}

		if rc.Pincount < 1 {
			v.diags.Errorf(KindRange, path+".pincount", "pincount must be at least 1, got %d", rc.Pincount)
		}
		if len(rc.Pinlabels) > 0 && rc.Pincount >= 1 && len(rc.Pinlabels) != rc.Pincount {
			v.diags.Errorf(KindSchema, path+".pinlabels",
				"%d labels declared for %d pins", len(rc.Pinlabels), rc.Pincount)
		}
		seen := make(map[int]bool)
		for i, pd := range rc.Pins {
			ppath := fmt.Sprintf("%s.pins[%d]", path, i)
			if pd.Number < 1 || (rc.Pincount >= 1 && pd.Number > rc.Pincount) {
				v.diags.Errorf(KindRange, ppath, "pin number %d outside 1..%d", pd.Number, rc.Pincount)
				continue
			}
			if seen[pd.Number] {
				v.diags.Errorf(KindSchema, ppath, "duplicate pin number %d", pd.Number)
			}
			seen[pd.Number] = true
		}

		v.model.Connectors[e.key] = conn
		v.model.ConnectorOrder = append(v.model.ConnectorOrder, e.key)
	}
}

func (v *validator) buildCables() {
	entries, err := orderedEntries("cables", v.raw.Cables)
	if err != nil {
		v.diags.Errorf(KindSchema, "cables", "%v", err)
		return
	}
	for _, e := range entries {
		path := "cables." + e.key
		if _, dup := v.model.Cables[e.key]; dup {
			v.diags.Errorf(KindSchema, path, "duplicate cable id (line %d)", e.line)
			continue
		}
		var rc rawCable
		if err := e.node.Decode(&rc); err != nil {
			v.diags.Errorf(KindSchema, path, "bad cable entry: %v", err)
			continue
		}
		cable := &Cable{
			ID:        e.key,
			PartID:    rc.Part,
			Wirecount: rc.Wirecount,
			Gauge:     rc.Gauge,
			Length:    Quantity{Value: rc.Length.Value, Unit: rc.Length.Unit},
			Shield:    rc.Shield,
			Notes:     rc.Notes,
		}
		if cable.Length.Unit == "" && rc.Length.set {
			cable.Length.Unit = "m"
		}
		if rc.Wirecount < 1 {
			v.diags.Errorf(KindRange, path+".wirecount", "wirecount must be at least 1, got %d", rc.Wirecount)
		}

		switch {
		case len(rc.Colors) > 0 && len(rc.Cores) > 0:
			v.diags.Errorf(KindSchema, path,
				"cable declares both a colors list and a cores list; use one or the other")
		case len(rc.Colors) > 0:
			// Shorthand: one token per conductor, indices assigned in order.
			if rc.Wirecount >= 1 && len(rc.Colors) != rc.Wirecount {
				v.diags.Errorf(KindRange, path+".colors",
					"%d colors declared for wirecount %d", len(rc.Colors), rc.Wirecount)
			}
			for i, tok := range rc.Colors {
				cable.Cores = append(cable.Cores, Core{Index: i + 1, Token: tok})
			}
		case len(rc.Cores) > 0:
			// Every conductor needs a core record; a partial list is a
			// mismatch, never a silent truncation.
			if rc.Wirecount >= 1 && len(rc.Cores) != rc.Wirecount {
				v.diags.Errorf(KindRange, path+".cores",
					"%d cores declared for wirecount %d", len(rc.Cores), rc.Wirecount)
			}
			seen := make(map[int]bool)
			for i, core := range rc.Cores {
				cpath := fmt.Sprintf("%s.cores[%d]", path, i)
				if core.Index < 1 || (rc.Wirecount >= 1 && core.Index > rc.Wirecount) {
					v.diags.Errorf(KindRange, cpath+".index",
						"core index %d outside 1..%d", core.Index, rc.Wirecount)
					continue
				}
				if seen[core.Index] {
					v.diags.Errorf(KindSchema, cpath+".index", "duplicate core index %d", core.Index)
					continue
				}
				seen[core.Index] = true
				cable.Cores = append(cable.Cores, Core{
					Index:     core.Index,
					Token:     core.Color,
					Label:     core.Label,
					PairGroup: core.Pair,
					Twist:     core.Twist,
				})
			}
		default:
			v.diags.Errorf(KindSchema, path, "cable declares no conductor colors")
		}

		if rc.Shield != nil {
			if c := rc.Shield.Coverage; c != 0 && (c < 0 || c > 100) {
				v.diags.Errorf(KindRange, path+".shield.coverage",
					"coverage %g outside 0..100", c)
			}
		}

		v.model.Cables[e.key] = cable
		v.model.CableOrder = append(v.model.CableOrder, e.key)
	}
}

// ---------------------------------------------------------------------------
// Pass 2: wire colors
// ---------------------------------------------------------------------------

func (v *validator) normalizeColors() {
	for _, id := range v.model.CableOrder {
		cable := v.model.Cables[id]
		for i := range cable.Cores {
			core := &cable.Cores[i]
			c, err := wirecolor.Normalize(core.Token)
			if err != nil {
				v.diags.Errorf(KindColor,
					fmt.Sprintf("cables.%s.cores[%d].color", id, core.Index),
					"%v", err)
				continue
			}
			core.Color = c
		}
	}
}

// ---------------------------------------------------------------------------
// Pass 3: accessories and cross references
// ---------------------------------------------------------------------------

func (v *validator) buildAccessories() {
	seen := make(map[string]bool)
	for i, ra := range v.raw.Accessories {
		path := fmt.Sprintf("accessories[%d]", i)
		if ra.ID == "" {
			v.diags.Errorf(KindSchema, path+".id", "required field is empty")
			continue
		}
		if seen[ra.ID] {
			v.diags.Errorf(KindSchema, path+".id", "duplicate accessory id %q", ra.ID)
			continue
		}
		seen[ra.ID] = true
		if !IsAccessoryType(ra.Type) {
			v.diags.Errorf(KindSchema, path+".type",
				"unknown accessory type %q (one of %v)", ra.Type, AccessoryTypeNames())
			continue
		}
		qty := Quantity{Value: ra.Quantity.Value, Unit: ra.Quantity.Unit}
		if !ra.Quantity.set {
			qty = Quantity{Value: 1, Unit: "pcs"}
		} else if qty.Unit == "" {
			qty.Unit = "pcs"
		}
		if qty.Value <= 0 {
			v.diags.Errorf(KindRange, path+".quantity", "quantity must be positive, got %g", qty.Value)
		}
		v.model.Accessories = append(v.model.Accessories, Accessory{
			ID:       ra.ID,
			Type:     AccessoryType(ra.Type),
			PartID:   ra.Part,
			Quantity: qty,
			Location: ra.Location,
			Notes:    ra.Notes,
		})
	}
}

func (v *validator) resolveReferences() {
	m := v.model

	for _, id := range m.ConnectorOrder {
		conn := m.Connectors[id]
		if conn.Variant == ConnectorLibrary {
			if _, ok := m.Parts[conn.PartID]; !ok {
				v.diags.Errorf(KindReference, "connectors."+id+".part",
					"part %q is not in the parts library", conn.PartID)
			}
		}
	}
	for _, id := range m.CableOrder {
		cable := m.Cables[id]
		if cable.PartID != "" {
			if _, ok := m.Parts[cable.PartID]; !ok {
				v.diags.Errorf(KindReference, "cables."+id+".part",
					"part %q is not in the parts library", cable.PartID)
			}
		}
	}

	accIDs := make(map[string]bool, len(m.Accessories))
	for i := range m.Accessories {
		acc := &m.Accessories[i]
		accIDs[acc.ID] = true
		if acc.PartID != "" {
			if _, ok := m.Parts[acc.PartID]; !ok {
				v.diags.Errorf(KindReference, fmt.Sprintf("accessories[%d].part", i),
					"part %q is not in the parts library", acc.PartID)
			}
		}
	}
	for _, id := range m.ConnectorOrder {
		conn := m.Connectors[id]
		for i, ref := range conn.Accessories {
			if !accIDs[ref] {
				v.diags.Errorf(KindReference,
					fmt.Sprintf("connectors.%s.accessories[%d]", id, i),
					"accessory %q is not declared", ref)
			}
		}
	}

	usedEndpoints := make(map[string]int)
	for i, rc := range v.raw.Connections {
		path := fmt.Sprintf("connections[%d]", i)
		conn := Connection{
			From:  Endpoint{Connector: rc.From.Connector, Pin: rc.From.Pin},
			Cable: rc.Cable,
			Core:  rc.Core,
			To:    Endpoint{Connector: rc.To.Connector, Pin: rc.To.Pin},
			Notes: rc.Notes,
		}
		ok := true
		ok = v.resolveEndpoint(&conn.From, path+".from") && ok
		ok = v.resolveEndpoint(&conn.To, path+".to") && ok

		cable, found := m.Cables[rc.Cable]
		if !found {
			v.diags.Errorf(KindReference, path+".cable", "cable %q is not declared", rc.Cable)
			ok = false
		} else if cable.CoreAt(rc.Core) == nil {
			v.diags.Errorf(KindReference, path+".core",
				"cable %q has no core %d", rc.Cable, rc.Core)
			ok = false
		}

		// A connector pin carries exactly one connection.
		for _, side := range []struct {
			name string
			ep   Endpoint
		}{{"from", conn.From}, {"to", conn.To}} {
			if side.ep.PinIndex == 0 {
				continue
			}
			key := fmt.Sprintf("%s:%d", side.ep.Connector, side.ep.PinIndex)
			if prev, dup := usedEndpoints[key]; dup {
				v.diags.Errorf(KindReference, fmt.Sprintf("%s.%s", path, side.name),
					"pin %s of connector %q is already wired by connections[%d]",
					side.ep.Pin, side.ep.Connector, prev)
				ok = false
				continue
			}
			usedEndpoints[key] = i
		}

		if ok {
			m.Connections = append(m.Connections, conn)
		}
	}
}

func (v *validator) resolveEndpoint(ep *Endpoint, path string) bool {
	conn, found := v.model.Connectors[ep.Connector]
	if !found {
		v.diags.Errorf(KindReference, path+".connector",
			"connector %q is not declared", ep.Connector)
		return false
	}
	idx, ok := conn.PinIndex(ep.Pin)
	if !ok {
		v.diags.Errorf(KindReference, path+".pin",
			"connector %q has no pin %q", ep.Connector, ep.Pin)
		return false
	}
	ep.PinIndex = idx
	return true
}

// ---------------------------------------------------------------------------
// Pass 4: usage warnings
// ---------------------------------------------------------------------------

func (v *validator) checkUsage() {
	m := v.model

	usedConn := make(map[string]bool)
	usedCore := make(map[string]map[int]bool)
	for _, c := range m.Connections {
		usedConn[c.From.Connector] = true
		usedConn[c.To.Connector] = true
		if usedCore[c.Cable] == nil {
			usedCore[c.Cable] = make(map[int]bool)
		}
		usedCore[c.Cable][c.Core] = true
	}

	for _, id := range m.ConnectorOrder {
		if !usedConn[id] {
			v.diags.Warnf(KindReference, "connectors."+id,
				"connector is never wired by any connection")
		}
	}
	for _, id := range m.CableOrder {
		cable := m.Cables[id]
		if usedCore[id] == nil {
			v.diags.Warnf(KindReference, "cables."+id,
				"cable is never used by any connection")
			continue
		}
		for _, core := range cable.Cores {
			if !usedCore[id][core.Index] {
				v.diags.Warnf(KindReference,
					fmt.Sprintf("cables.%s.cores[%d]", id, core.Index),
					"core is never used by any connection")
			}
		}
	}

	referenced := make(map[string]bool)
	for _, id := range m.ReferencedPartIDs() {
		referenced[id] = true
	}
	for _, id := range m.PartOrder {
		if !referenced[id] {
			v.diags.Warnf(KindReference, "parts."+id,
				"part is never referenced by a connector, cable, or accessory")
		}
	}
}
