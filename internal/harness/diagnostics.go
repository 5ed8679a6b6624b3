// diagnostics.go — accumulated validation findings with document paths.
package harness

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind classifies what a diagnostic is about.
type Kind string

const (
	// KindSchema covers structural problems: missing required fields,
	// wrong shapes, unknown enum members, duplicate ids.
	KindSchema Kind = "schema"
	// KindReference covers dangling cross references between sections.
	KindReference Kind = "reference"
	// KindRange covers numeric values outside their permitted range.
	KindRange Kind = "range"
	// KindColor covers unrecognized wire color tokens.
	KindColor Kind = "color"
)

// Diagnostic is one validation finding. Path locates the offending value in
// the source document using dotted keys ("connectors.J1.pincount").
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Path     string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s: %s", d.Severity, d.Kind, d.Path, d.Message)
}

// Diagnostics collects findings across all validation passes. The zero value
// is ready to use.
type Diagnostics struct {
	items []Diagnostic
}

func (ds *Diagnostics) add(sev Severity, kind Kind, path, format string, args ...any) {
	ds.items = append(ds.items, Diagnostic{
		Severity: sev,
		Kind:     kind,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errorf records an error-severity finding.
func (ds *Diagnostics) Errorf(kind Kind, path, format string, args ...any) {
	ds.add(SeverityError, kind, path, format, args...)
}

// Warnf records a warning-severity finding.
func (ds *Diagnostics) Warnf(kind Kind, path, format string, args ...any) {
	ds.add(SeverityWarning, kind, path, format, args...)
}

// Items returns all findings in the order recorded.
func (ds *Diagnostics) Items() []Diagnostic { return ds.items }

// HasErrors reports whether any error-severity finding was recorded.
func (ds *Diagnostics) HasErrors() bool {
	for _, d := range ds.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any warning-severity finding was recorded.
func (ds *Diagnostics) HasWarnings() bool {
	for _, d := range ds.items {
		if d.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Promote rewrites every warning as an error. Used by strict mode after all
// passes have run, so the findings themselves are identical either way.
func (ds *Diagnostics) Promote() {
	for i := range ds.items {
		if ds.items[i].Severity == SeverityWarning {
			ds.items[i].Severity = SeverityError
		}
	}
}

// Summary renders all findings one per line.
func (ds *Diagnostics) Summary() string {
	var b strings.Builder
	for _, d := range ds.items {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
