// Package build orchestrates the document pipeline: validate, resolve
// images, project the diagram input, run the layout engine, derive tables,
// and compose the final sheet.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"harnessdoc/internal/compose"
	"harnessdoc/internal/engine"
	"harnessdoc/internal/harness"
	"harnessdoc/internal/images"
	"harnessdoc/internal/tables"
)

// Options configures one pipeline run.
type Options struct {
	// OutDir is where per-document output directories are created.
	OutDir string
	// Strict promotes validation warnings to errors.
	Strict bool
	// LintOnly stops after validation; nothing is written.
	LintOnly bool
	// SkipDiagram omits the layout engine stage; the sheet keeps its
	// diagram area empty. Used when no engine is installed.
	SkipDiagram bool
	// Formats lists extra sheet formats to convert to ("pdf", "png").
	Formats []string
	// Template is the sheet template; nil selects the built-in.
	Template []byte
	// WiringOrder selects the wiring list row order.
	WiringOrder tables.WiringOrder
	// Overflow decides what an overfull sheet table does.
	Overflow compose.OverflowPolicy
}

// Result is the outcome of building one document.
type Result struct {
	// Doc is the input document path.
	Doc string
	// Diags holds every validation finding, also on success.
	Diags *harness.Diagnostics
	// Outputs lists the files written, in creation order.
	Outputs []string
	// Err is the first hard failure, nil on success.
	Err error
}

// Status maps a set of results onto the process exit code: 0 for success,
// 2 when any document produced warnings, 1 when any document failed.
func Status(results []Result) int {
	code := 0
	for _, r := range results {
		if r.Err != nil || (r.Diags != nil && r.Diags.HasErrors()) {
			return 1
		}
		if r.Diags != nil && r.Diags.HasWarnings() {
			code = 2
		}
	}
	return code
}

// Pipeline builds harness documents. One Pipeline serves a whole batch; the
// image resolver and cache behind it are shared and concurrency safe.
type Pipeline struct {
	opts     Options
	resolver *images.Resolver
	runner   *engine.Runner
	log      *zap.Logger
}

func NewPipeline(opts Options, resolver *images.Resolver, runner *engine.Runner, log *zap.Logger) *Pipeline {
	if opts.Template == nil {
		opts.Template = compose.DefaultTemplate()
	}
	return &Pipeline{opts: opts, resolver: resolver, runner: runner, log: log}
}

// Build runs the full pipeline for one document.
func (p *Pipeline) Build(ctx context.Context, docPath string) Result {
	res := Result{Doc: docPath}
	log := p.log.With(zap.String("doc", docPath))

	raw, err := harness.ParseFile(docPath)
	if err != nil {
		res.Err = err
		return res
	}
	model, diags := harness.Validate(raw, harness.Options{Strict: p.opts.Strict})
	res.Diags = diags
	if model == nil {
		res.Err = fmt.Errorf("%s: validation failed", docPath)
		return res
	}
	log.Info("document validated",
		zap.Int("connectors", len(model.ConnectorOrder)),
		zap.Int("cables", len(model.CableOrder)),
		zap.Int("connections", len(model.Connections)))
	if p.opts.LintOnly {
		return res
	}

	if err := p.resolveImages(ctx, model, diags); err != nil {
		res.Err = err
		return res
	}

	outDir := filepath.Join(p.opts.OutDir, docStem(docPath))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Err = fmt.Errorf("create output dir: %w", err)
		return res
	}
	write := func(name string, data []byte) (string, error) {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		res.Outputs = append(res.Outputs, path)
		return path, nil
	}

	engineInput, err := engine.Project(model)
	if err != nil {
		res.Err = err
		return res
	}
	inputPath, err := write("engine.yaml", engineInput)
	if err != nil {
		res.Err = err
		return res
	}

	var diagram []byte
	if !p.opts.SkipDiagram {
		svgPath, err := p.runner.Layout(ctx, inputPath)
		if err != nil {
			res.Err = err
			return res
		}
		res.Outputs = append(res.Outputs, svgPath)
		if diagram, err = os.ReadFile(svgPath); err != nil {
			res.Err = fmt.Errorf("read diagram: %w", err)
			return res
		}
	}

	wiring := tables.Wiring(model, p.opts.WiringOrder)
	bom := tables.BOMTable(model)
	if _, err := write("wiring.tsv", []byte(wiring.TSV())); err != nil {
		res.Err = err
		return res
	}
	if _, err := write("bom.tsv", []byte(bom.TSV())); err != nil {
		res.Err = err
		return res
	}

	composer, err := compose.New(p.opts.Template, compose.Options{Overflow: p.opts.Overflow}, log)
	if err != nil {
		res.Err = err
		return res
	}
	sheet, err := composer.Compose(compose.Input{
		Meta:    model.Meta,
		Diagram: diagram,
		BOM:     bom,
		Wiring:  wiring,
		Notes:   model.Notes,
	})
	if err != nil {
		res.Err = err
		return res
	}
	sheetPath, err := write("sheet.svg", sheet)
	if err != nil {
		res.Err = err
		return res
	}

	for _, format := range p.opts.Formats {
		out := filepath.Join(outDir, "sheet."+strings.ToLower(format))
		if err := p.runner.Convert(ctx, sheetPath, out); err != nil {
			res.Err = err
			return res
		}
		res.Outputs = append(res.Outputs, out)
	}

	log.Info("document built", zap.Int("outputs", len(res.Outputs)))
	return res
}

// resolveImages fills ResolvedImage on every part the document uses. A part
// without an image becomes a warning, not a failure, unless the resolver's
// policy requires images.
func (p *Pipeline) resolveImages(ctx context.Context, m *harness.HarnessModel, diags *harness.Diagnostics) error {
	for _, id := range m.ReferencedPartIDs() {
		part := m.Parts[id]
		r, err := p.resolver.Resolve(ctx, part)
		if err != nil {
			return err
		}
		if r.Missing {
			diags.Warnf(harness.KindReference, "parts."+id, "no image found")
			continue
		}
		part.ResolvedImage = r.Path
	}
	for _, id := range m.ConnectorOrder {
		conn := m.Connectors[id]
		if conn.Variant != harness.ConnectorInline {
			continue
		}
		r, err := p.resolver.Resolve(ctx, conn.Inline)
		if err != nil {
			return err
		}
		if r.Missing {
			continue
		}
		conn.Inline.ResolvedImage = r.Path
	}
	return nil
}

// docStem names a document's output directory after its file name.
func docStem(docPath string) string {
	base := filepath.Base(docPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
