package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/synthgen/internal/annotate"
	"github.com/banshee-data/synthgen/internal/config"
	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/engine/flat"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/generate"
	"github.com/banshee-data/synthgen/internal/ledger"
	"github.com/banshee-data/synthgen/internal/monitoring"
	"github.com/banshee-data/synthgen/internal/preview"
	"github.com/banshee-data/synthgen/internal/report"
	"github.com/banshee-data/synthgen/internal/timeutil"
)

func newRuntime(stderr io.Writer, level string) *monitoring.Runtime {
	return monitoring.NewRuntime(monitoring.NewLogger(stderr, level), timeutil.RealClock{})
}

// parseResume accepts "", a non-negative iteration or "auto".
func parseResume(v string) (checkpoint int, auto bool, err error) {
	switch v {
	case "":
		return 0, false, nil
	case "auto":
		return 0, true, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false, usageErr("-resume must be a non-negative iteration or 'auto', got %q", v)
	}
	return n, false, nil
}

// ledgerPath resolves a relative ledger path against the output root.
func ledgerPath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func openLedger(rt *monitoring.Runtime, root, path string) (*ledger.Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return ledger.Open(rt, ledgerPath(root, path))
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("generate", stderr)
	cfgPath := fs.String("config", "", "Run configuration (.yaml or .yml)")
	resume := fs.String("resume", "", "First iteration to render, or 'auto' to continue from the ledger")
	output := fs.String("output", "", "Override render.output.filepath")
	level := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *cfgPath == "" {
		return usageErr("-config is required")
	}
	checkpoint, auto, err := parseResume(*resume)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(*cfgPath)
	if err != nil {
		return err
	}
	rt := newRuntime(stderr, *level)
	root := cfg.Render.Output.Filepath
	if *output != "" {
		root = *output
	}
	if root == "" {
		return usageErr("no output path: set render.output.filepath or -output")
	}

	sc, err := cfg.FlatScene()
	if err != nil {
		return err
	}
	fsys := fsutil.OSFileSystem{}
	renderer := flat.NewRenderer(sc, fsys, cfg.Profile(engine.ModeReal))
	opts := generate.Options{
		Root:       root,
		Prefix:     cfg.Render.Output.FilenamePrefix,
		Seed:       cfg.GetSeed(),
		Iterations: cfg.GetIterations(),
		Checkpoint: checkpoint,
		SaveReal:   cfg.Render.GetSaveReal(),
		SaveMask:   cfg.Render.GetSaveMask(),
		Real:       cfg.Profile(engine.ModeReal),
		Mask:       cfg.Profile(engine.ModeMask),
		MaxShades:  cfg.Palette.GetMaxShades(),
	}

	var (
		store *ledger.Store
		hash  = ledger.HashConfig(raw)
	)
	switch {
	case cfg.Ledger.Enabled:
		store, err = openLedger(rt, root, cfg.Ledger.GetPath())
		if err != nil {
			return err
		}
		defer store.Close()
		if auto {
			if opts.Checkpoint, err = store.ResumeAuto(ctx, root, hash); err != nil {
				return err
			}
			if opts.Seed == 0 && opts.Checkpoint > 0 {
				seed, ok, err := store.LastSeed(ctx, root, hash)
				if err != nil {
					return err
				}
				if ok {
					opts.Seed = seed
				}
			}
			rt.Log.Info("resuming from ledger", "iteration", opts.Checkpoint)
		}
	case auto:
		return usageErr("-resume auto needs ledger.enabled in the configuration")
	}

	g, err := generate.New(rt, fsys, sc, renderer, cfg.Classes(), cfg.Views(), opts)
	if err != nil {
		return err
	}
	if store != nil {
		var run *ledger.Run
		run, err = store.BeginRun(ctx, ledger.RunInfo{
			OutputRoot: root,
			ConfigHash: hash,
			Seed:       g.Seed(),
			Iterations: opts.Iterations,
			Checkpoint: opts.Checkpoint,
		})
		if err != nil {
			return err
		}
		g.WithRecorder(run)
		// err is the named result, so the ledger sees the final outcome.
		defer func() {
			if ferr := run.Finish(err); ferr != nil {
				rt.Log.Error("ledger finish failed", "error", ferr)
			}
		}()
	}
	if opts.Checkpoint >= opts.Iterations {
		rt.Log.Info("all iterations complete", "iterations", opts.Iterations)
	}

	stats, err := g.Run(ctx)
	fmt.Fprintf(stdout, "seed %d: %d iterations, %d real, %d mask images in %s\n",
		stats.Seed, stats.Iterations, stats.Reals, stats.Masks, stats.Elapsed.Round(time.Millisecond))
	return err
}

func runAnnotate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("annotate", stderr)
	root := fs.String("root", "", "Dataset root containing metadata.csv and mask/ (defaults to the configured output)")
	cfgPath := fs.String("config", "", "Optional run configuration for annotate and ledger settings")
	width := fs.Int("width", 0, "Working width in pixels (default 320)")
	height := fs.Int("height", 0, "Working height in pixels (default keeps aspect)")
	minPixels := fs.Int("min-pixels", 0, "Pixels a colour must exceed to be annotated (default 40)")
	force := fs.Bool("force", false, "Overwrite an existing annotations.csv")
	level := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt := newRuntime(stderr, *level)

	var (
		opts annotate.Options
		cfg  *config.Config
	)
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
		opts = cfg.AnnotateOptions()
		if *root == "" {
			*root = cfg.Render.Output.Filepath
		}
	}
	if *root == "" {
		return usageErr("-root or -config is required")
	}
	if *width > 0 {
		opts.Width = *width
	}
	if *height > 0 {
		opts.Height = *height
	}
	if *minPixels > 0 {
		opts.MinPixels = *minPixels
	}

	a := annotate.NewAnnotator(rt, fsutil.OSFileSystem{}, opts)
	a.Force = *force
	res, err := a.Run(ctx, *root)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.Ledger.Enabled {
		store, err := ledger.Open(rt, ledgerPath(*root, cfg.Ledger.GetPath()))
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.ReplaceAnnotations(ctx, *root, res.Records); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "%d masks, %d records written to %s\n",
		res.Masks, len(res.Records), filepath.Join(*root, annotate.AnnotationsFile))
	return nil
}

func runReport(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("report", stderr)
	root := fs.String("root", "", "Annotated dataset root (required)")
	bins := fs.Int("bins", report.DefaultBins, "Histogram bins for box areas")
	level := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *root == "" {
		return usageErr("-root is required")
	}
	r := report.NewReporter(newRuntime(stderr, *level), fsutil.OSFileSystem{})
	r.Bins = *bins
	s, err := r.Run(*root)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCOUNT\tIMAGES\tMEAN AREA\tMEDIAN AREA")
	for _, l := range s.Labels {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.4f\t%.4f\n", l.Label, l.Count, l.Files, l.MeanArea, l.MedianArea)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "report written to %s\n", filepath.Join(*root, report.Dir))
	return nil
}

func runPreview(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("preview", stderr)
	root := fs.String("root", "", "Annotated dataset root (required)")
	limit := fs.Int("limit", 0, "Maximum previews to write (0 writes all)")
	labels := fs.Bool("labels", true, "Draw label text above boxes")
	bg := fs.Int("bg", 125, "Alpha of black mask pixels, 0-255")
	level := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *root == "" {
		return usageErr("-root is required")
	}
	if *bg < 0 || *bg > 255 {
		return usageErr("-bg must be in 0-255, got %d", *bg)
	}
	opts := preview.DefaultOptions()
	opts.Limit = *limit
	opts.Labels = *labels
	opts.Background = uint8(*bg)
	n, err := preview.NewPreviewer(newRuntime(stderr, *level), fsutil.OSFileSystem{}, opts).Run(ctx, *root)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d previews written to %s\n", n, filepath.Join(*root, preview.Dir))
	return nil
}

func runRuns(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("runs", stderr)
	db := fs.String("db", "", "Ledger database path (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *db == "" {
		return usageErr("-db is required")
	}
	store, err := ledger.Open(monitoring.Nop(), *db)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSEED\tDONE\tRENDERS\tSTARTED\tROOT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d/%d\t%d\t%s\t%s\n", r.ID, r.Status, r.Seed, r.Completed, r.Iterations,
			r.Renders, r.StartedAt.Format(time.RFC3339), r.OutputRoot)
	}
	return tw.Flush()
}

func runMigrate(_ context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	db := fs.String("db", "", "Ledger database path (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *db == "" {
		return usageErr("-db is required")
	}
	action := "version"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	store, err := ledger.Open(monitoring.Nop(), *db)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "up":
		err = store.MigrateUp()
	case "down":
		err = store.MigrateDown()
	case "version":
	default:
		return usageErr("unknown migrate action %q (want up, down or version)", action)
	}
	if err != nil {
		return err
	}
	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
