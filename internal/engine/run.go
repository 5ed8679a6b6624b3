// run.go — external layout engine and converter invocation.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ToolError describes a failed external tool run with enough context to
// debug it: the command line, the exit state, and the tool's stderr.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Config names the external tools. Zero values select the defaults.
type Config struct {
	// LayoutTool renders the engine input YAML into an SVG diagram.
	LayoutTool string
	// ConvertTool converts the composed SVG sheet into other formats
	// (PDF, PNG). Only needed when such outputs are requested.
	ConvertTool string
}

const (
	defaultLayoutTool  = "wireviz"
	defaultConvertTool = "rsvg-convert"
)

// Runner shells out to the layout engine and converters.
type Runner struct {
	cfg Config
	log *zap.Logger
}

func NewRunner(cfg Config, log *zap.Logger) *Runner {
	if cfg.LayoutTool == "" {
		cfg.LayoutTool = defaultLayoutTool
	}
	if cfg.ConvertTool == "" {
		cfg.ConvertTool = defaultConvertTool
	}
	return &Runner{cfg: cfg, log: log}
}

// Layout runs the layout engine over inputPath and returns the path of the
// SVG it produced. The engine writes its outputs next to the input, named
// after the input's stem.
func (r *Runner) Layout(ctx context.Context, inputPath string) (string, error) {
	args := []string{"--format", "s", "--output-dir", filepath.Dir(inputPath), inputPath}
	if err := r.run(ctx, r.cfg.LayoutTool, args); err != nil {
		return "", err
	}
	svg := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".svg"
	if _, err := os.Stat(svg); err != nil {
		return "", fmt.Errorf("layout engine produced no %s: %w", filepath.Base(svg), err)
	}
	return svg, nil
}

// Convert renders svgPath into outPath; the target format follows outPath's
// extension (.pdf or .png).
func (r *Runner) Convert(ctx context.Context, svgPath, outPath string) error {
	var format string
	switch ext := strings.ToLower(filepath.Ext(outPath)); ext {
	case ".pdf":
		format = "pdf"
	case ".png":
		format = "png"
	default:
		return fmt.Errorf("convert: unsupported output format %q", ext)
	}
	args := []string{"--format", format, "--output", outPath, svgPath}
	return r.run(ctx, r.cfg.ConvertTool, args)
}

func (r *Runner) run(ctx context.Context, tool string, args []string) error {
	r.log.Debug("running external tool",
		zap.String("tool", tool),
		zap.Strings("args", args))
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: tool, Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}
