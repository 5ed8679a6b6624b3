package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"harnessdoc/internal/build"
	"harnessdoc/internal/compose"
	"harnessdoc/internal/engine"
	"harnessdoc/internal/harness"
	"harnessdoc/internal/images"
	"harnessdoc/internal/logging"
	"harnessdoc/internal/settings"
	"harnessdoc/internal/tables"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) (int, error)
}

var commands = []command{
	{
		name:  "build",
		short: "Build documentation sheets from harness documents",
		usage: "harnessdoc build [flags] <doc.yaml>...",
		long: `Validate each document, resolve part images, render the wiring
diagram, derive the wiring list and bill of materials, and compose
the final SVG sheet.

Outputs land in <outdir>/<document-stem>/. Exit code is 0 on success,
2 when any document produced warnings, 1 on failure.
`,
		run: runBuild,
	},
	{
		name:  "lint",
		short: "Validate harness documents without building",
		usage: "harnessdoc lint [flags] <doc.yaml>...",
		long: `Run full validation and print every finding. Nothing is written.

Exit code is 0 when clean, 2 with warnings, 1 with errors.
`,
		run: runLint,
	},
	{
		name:  "images",
		short: "Resolve and cache part images",
		usage: "harnessdoc images [flags] <doc.yaml>...",
		long: `Resolve an image for every part the documents reference, fetching
and caching as needed, and report where each came from. With -update,
cached images are re-fetched.
`,
		run: runImages,
	},
	{
		name:  "init",
		short: "Scaffold a new harness document project",
		usage: "harnessdoc init <dir>",
		long: `Create a project directory with a starter harness document and a
.harnessdoc/settings.yaml. Prompts for the document metadata.
`,
		run: runInit,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "harnessdoc — wiring harness documentation builder\n\n")
	fmt.Fprintf(w, "Usage:\n  harnessdoc <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'harnessdoc help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "harnessdoc: unknown command %q\n\nRun 'harnessdoc help' for usage.\n", name)
}

func dispatch(args []string) (int, error) {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return 0, nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return 0, nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return 1, fmt.Errorf("unknown command %q\n\nRun 'harnessdoc help' for usage.", args[0])
}

// buildFlags is the flag set shared by build, lint, and images.
type buildFlags struct {
	fs        *flag.FlagSet
	outDir    string
	strict    bool
	jobs      int
	update    bool
	offline   bool
	formats   string
	template  string
	imageDir  string
	wireOrder string
	overflow  string
	noDiag    bool
	verbose   bool
	quiet     bool
}

func newBuildFlags(name string) *buildFlags {
	f := &buildFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.StringVar(&f.outDir, "o", "", "output directory (default: ./build, or settings)")
	f.fs.BoolVar(&f.strict, "strict", false, "treat warnings as errors")
	f.fs.IntVar(&f.jobs, "jobs", 4, "documents built concurrently")
	f.fs.BoolVar(&f.update, "update", false, "re-fetch cached images")
	f.fs.BoolVar(&f.offline, "offline", false, "never fetch images from vendors")
	f.fs.StringVar(&f.formats, "format", "", "extra sheet formats, comma separated (pdf,png)")
	f.fs.StringVar(&f.template, "template", "", "sheet template SVG (default: built-in A4)")
	f.fs.StringVar(&f.imageDir, "images", "", "local image override directory")
	f.fs.StringVar(&f.wireOrder, "wiring-order", "", "wiring list row order: declared or cable")
	f.fs.StringVar(&f.overflow, "overflow", "", "overfull sheet tables: truncate or error")
	f.fs.BoolVar(&f.noDiag, "no-diagram", false, "skip the layout engine stage")
	f.fs.BoolVar(&f.verbose, "v", false, "verbose logging")
	f.fs.BoolVar(&f.quiet, "q", false, "log warnings only")
	return f
}

// parseOverflow maps the flag value onto a composition policy.
func parseOverflow(s string) (compose.OverflowPolicy, error) {
	switch s {
	case "", "truncate":
		return compose.OverflowTruncate, nil
	case "error":
		return compose.OverflowError, nil
	}
	return compose.OverflowTruncate, fmt.Errorf("unknown overflow policy %q (truncate, error)", s)
}

// expandDocs resolves glob patterns in args against the filesystem. A
// pattern with no match is kept literally so the pipeline reports the
// missing file.
func expandDocs(args []string) []string {
	var docs []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil || len(matches) == 0 {
			docs = append(docs, arg)
			continue
		}
		docs = append(docs, matches...)
	}
	return docs
}

// setup assembles the shared pipeline pieces from flags and settings.
func setup(f *buildFlags, lintOnly bool) (*build.Pipeline, *images.CacheService, *zap.Logger, error) {
	log, err := logging.New(logging.Config{Verbose: f.verbose, Quiet: f.quiet})
	if err != nil {
		return nil, nil, nil, err
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := settings.Load(root)
	if err != nil {
		return nil, nil, nil, err
	}

	cache, err := images.OpenCache(cfg.CacheDir(root))
	if err != nil {
		return nil, nil, nil, err
	}

	overrideDir := f.imageDir
	if overrideDir == "" {
		overrideDir = cfg.ImageDir(root)
	}
	policy := images.MissingPolicy("")
	if cfg != nil && cfg.Images.Missing != "" {
		policy = images.MissingPolicy(cfg.Images.Missing)
	}
	rate := 0.0
	if cfg != nil {
		rate = cfg.Images.RatePerSecond
	}
	resolver := images.NewResolver(images.Config{
		DocDir:      root,
		OverrideDir: overrideDir,
		Offline:     f.offline || cfg.IsOffline(),
		Update:      f.update,
		Policy:      policy,
	}, cache, images.NewVendorScraper(rate, log), log)

	var toolCfg engine.Config
	if cfg != nil {
		toolCfg = engine.Config{LayoutTool: cfg.Tools.Layout, ConvertTool: cfg.Tools.Convert}
	}
	runner := engine.NewRunner(toolCfg, log)

	outDir := f.outDir
	if outDir == "" {
		outDir = cfg.OutputDir(root)
	}
	templatePath := f.template
	if templatePath == "" {
		templatePath = cfg.TemplatePath(root)
	}
	var template []byte
	if templatePath != "" {
		if template, err = os.ReadFile(templatePath); err != nil {
			return nil, nil, nil, fmt.Errorf("read template: %w", err)
		}
	}
	var formats []string
	for _, s := range strings.Split(f.formats, ",") {
		if s = strings.TrimSpace(s); s != "" {
			formats = append(formats, s)
		}
	}
	wiringOrder, err := tables.ParseWiringOrder(f.wireOrder)
	if err != nil {
		return nil, nil, nil, err
	}
	overflow, err := parseOverflow(f.overflow)
	if err != nil {
		return nil, nil, nil, err
	}

	p := build.NewPipeline(build.Options{
		OutDir:      outDir,
		Strict:      f.strict || cfg.IsStrict(),
		LintOnly:    lintOnly,
		SkipDiagram: f.noDiag,
		Formats:     formats,
		Template:    template,
		WiringOrder: wiringOrder,
		Overflow:    overflow,
	}, resolver, runner, log)
	return p, cache, log, nil
}

func reportResults(results []build.Result) {
	for _, r := range results {
		if r.Diags != nil {
			for _, d := range r.Diags.Items() {
				fmt.Fprintf(os.Stderr, "%s: %s\n", r.Doc, d)
			}
		}
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: error: %v\n", r.Doc, r.Err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// build / lint
// ---------------------------------------------------------------------------

func runBuild(args []string) (int, error) {
	return runPipeline("build", args, false)
}

func runLint(args []string) (int, error) {
	return runPipeline("lint", args, true)
}

func runPipeline(name string, args []string, lintOnly bool) (int, error) {
	f := newBuildFlags(name)
	if err := f.fs.Parse(args); err != nil {
		return 1, err
	}
	docs := expandDocs(f.fs.Args())
	if len(docs) == 0 {
		return 1, fmt.Errorf("usage: harnessdoc %s [flags] <doc.yaml>...", name)
	}

	p, cache, log, err := setup(f, lintOnly)
	if err != nil {
		return 1, err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	results := p.Batch(ctx, docs, f.jobs)
	if err := cache.Close(); err != nil {
		return 1, err
	}
	reportResults(results)

	if !lintOnly {
		for _, r := range results {
			for _, out := range r.Outputs {
				fmt.Println(out)
			}
		}
	}
	return build.Status(results), nil
}

// ---------------------------------------------------------------------------
// images
// ---------------------------------------------------------------------------

func runImages(args []string) (int, error) {
	f := newBuildFlags("images")
	if err := f.fs.Parse(args); err != nil {
		return 1, err
	}
	docs := expandDocs(f.fs.Args())
	if len(docs) == 0 {
		return 1, fmt.Errorf("usage: harnessdoc images [flags] <doc.yaml>...")
	}

	log, err := logging.New(logging.Config{Verbose: f.verbose, Quiet: f.quiet})
	if err != nil {
		return 1, err
	}
	defer log.Sync()

	root, err := os.Getwd()
	if err != nil {
		return 1, err
	}
	cfg, err := settings.Load(root)
	if err != nil {
		return 1, err
	}
	cache, err := images.OpenCache(cfg.CacheDir(root))
	if err != nil {
		return 1, err
	}
	overrideDir := f.imageDir
	if overrideDir == "" {
		overrideDir = cfg.ImageDir(root)
	}
	resolver := images.NewResolver(images.Config{
		DocDir:      root,
		OverrideDir: overrideDir,
		Offline:     f.offline || cfg.IsOffline(),
		Update:      f.update,
	}, cache, images.NewVendorScraper(0, log), log)

	ctx, cancel := signalContext()
	defer cancel()

	exit := 0
	for _, doc := range docs {
		raw, err := harness.ParseFile(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", doc, err)
			exit = 1
			continue
		}
		model, diags := harness.Validate(raw, harness.Options{Strict: f.strict})
		if model == nil {
			fmt.Fprint(os.Stderr, diags.Summary())
			exit = 1
			continue
		}
		for _, id := range model.ReferencedPartIDs() {
			res, err := resolver.Resolve(ctx, model.Parts[id])
			switch {
			case err != nil:
				fmt.Fprintf(os.Stderr, "%s: %v\n", doc, err)
				exit = 1
			case res.Missing:
				fmt.Printf("%s\t%s\tmissing\n", doc, id)
				if exit == 0 {
					exit = 2
				}
			default:
				fmt.Printf("%s\t%s\t%s\t%s\n", doc, id, res.Source, res.Path)
			}
		}
	}
	if err := cache.Close(); err != nil {
		return 1, err
	}
	return exit, nil
}

func main() {
	code, err := dispatch(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "harnessdoc: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
