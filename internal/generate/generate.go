// Package generate drives a dataset run: it builds and persists the colour
// catalogue, then for every iteration randomizes the scene, walks the camera
// views and renders a real and a mask image per shot.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/banshee-data/synthgen/internal/annotate"
	"github.com/banshee-data/synthgen/internal/camera"
	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/imageio"
	"github.com/banshee-data/synthgen/internal/monitoring"
	"github.com/banshee-data/synthgen/internal/scene"
	"github.com/banshee-data/synthgen/internal/security"
)

// Recorder receives progress as images are written. ledger.Run satisfies
// it.
type Recorder interface {
	RecordRender(ctx context.Context, iteration, view, frame int, mode, path string) error
	CompleteIteration(ctx context.Context, iteration, instances int) error
}

// Options configures a run.
type Options struct {
	Root       string
	Prefix     string
	Seed       uint64 // zero derives a seed from the clock
	Iterations int
	Checkpoint int // first iteration to render
	SaveReal   bool
	SaveMask   bool
	Real       engine.Profile
	Mask       engine.Profile
	MaxShades  int
}

// Stats summarizes a finished or interrupted run.
type Stats struct {
	Seed       uint64
	Iterations int // iterations completed by this run
	Reals      int
	Masks      int
	Elapsed    time.Duration
}

// Generator owns the catalogue, the lifecycle controller and the renderer
// for one run.
type Generator struct {
	rt       *monitoring.Runtime
	fsys     fsutil.FileSystem
	host     engine.Host
	renderer engine.Renderer
	classes  []*catalog.Class
	views    []camera.View
	cat      *catalog.Catalog
	opts     Options
	rec      Recorder
}

// New validates opts and builds the catalogue. Palette and configuration
// errors surface here, before anything is written.
func New(rt *monitoring.Runtime, fsys fsutil.FileSystem, host engine.Host, renderer engine.Renderer,
	classes []*catalog.Class, views []camera.View, opts Options) (*Generator, error) {
	if rt == nil {
		rt = monitoring.Nop()
	}
	if !opts.SaveReal && !opts.SaveMask {
		return nil, errors.New("generate: neither real nor mask output enabled")
	}
	if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	if opts.Checkpoint < 0 {
		return nil, fmt.Errorf("generate: negative checkpoint %d", opts.Checkpoint)
	}
	if opts.MaxShades == 0 {
		opts.MaxShades = 255
	}
	cat, err := catalog.Build(classes, opts.MaxShades)
	if err != nil {
		return nil, fmt.Errorf("build catalogue: %w", err)
	}
	return &Generator{
		rt:       rt,
		fsys:     fsys,
		host:     host,
		renderer: renderer,
		classes:  classes,
		views:    views,
		cat:      cat,
		opts:     opts,
	}, nil
}

// WithRecorder attaches a progress recorder.
func (g *Generator) WithRecorder(r Recorder) *Generator {
	g.rec = r
	return g
}

// Catalog is the catalogue the run paints with.
func (g *Generator) Catalog() *catalog.Catalog { return g.cat }

// Seed returns the effective root seed, deriving and fixing one from the
// clock when none was configured.
func (g *Generator) Seed() uint64 {
	if g.opts.Seed == 0 {
		g.opts.Seed = uint64(g.rt.Clock.Now().UnixNano())
		g.rt.Log.Info("derived seed from clock", "seed", g.opts.Seed)
	}
	return g.opts.Seed
}

// FrameName is the base name shared by the real and mask image of a shot.
// view is zero-based and frame one-based.
func FrameName(prefix string, iteration, view, frame int, format string) string {
	return fmt.Sprintf("%semitter_%04d_cam_%04d_%04d.%s", prefix, iteration, view, frame, imageio.Ext(format))
}

// IterationRNG returns the random stream of one iteration. It depends only
// on the root seed and the index, so any iteration can be replayed alone.
func IterationRNG(seed uint64, iteration int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(iteration)))
}

// Run renders iterations [Checkpoint, Iterations). Every exit path,
// cancellation and renderer failure included, restores the host and the
// renderer before returning.
func (g *Generator) Run(ctx context.Context) (stats Stats, err error) {
	start := g.rt.Clock.Now()
	stats.Seed = g.Seed()

	root := g.opts.Root
	for _, dir := range []string{root, filepath.Join(root, annotate.RealDir), filepath.Join(root, annotate.MaskDir)} {
		if err := g.fsys.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := g.cat.Save(g.fsys, filepath.Join(root, catalog.MetadataFile)); err != nil {
		return stats, err
	}
	g.rt.Log.Info("catalogue written", "entries", g.cat.Len(), "root", root)

	enum, err := camera.NewEnumerator(g.views)
	if err != nil {
		return stats, err
	}
	ctrl, err := scene.New(g.rt, g.host, g.classes, g.cat)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := errors.Join(ctrl.Close(), g.renderer.RestoreDefaults()); cerr != nil {
			g.rt.Log.Error("cleanup failed", "error", cerr)
			err = errors.Join(err, fmt.Errorf("cleanup: %w", cerr))
		}
		stats.Elapsed = g.rt.Clock.Now().Sub(start)
	}()

	loc := engine.HostLocator{Host: g.host}
	shots := enum.All()
	for it := g.opts.Checkpoint; it < g.opts.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			g.rt.Log.Warn("run cancelled", "iteration", it)
			return stats, err
		}
		rng := IterationRNG(stats.Seed, it)
		if err := ctrl.Randomize(rng); err != nil {
			return stats, err
		}
		if err := ctrl.Materialize(); err != nil {
			return stats, fmt.Errorf("iteration %d: %w", it, err)
		}
		instances := len(ctrl.Live())
		g.rt.Log.Info("iteration materialized", "iteration", it, "instances", instances)

		for _, shot := range shots {
			if err := ctx.Err(); err != nil {
				g.rt.Log.Warn("run cancelled", "iteration", it, "shot", shot.String())
				return stats, err
			}
			if err := g.shoot(ctx, ctrl, enum.View(shot.View), loc, rng, it, shot, &stats); err != nil {
				return stats, err
			}
		}

		if err := ctrl.Unmask(); err != nil {
			return stats, err
		}
		if err := ctrl.Cleanup(); err != nil {
			return stats, fmt.Errorf("iteration %d cleanup: %w", it, err)
		}
		if g.rec != nil {
			if err := g.rec.CompleteIteration(ctx, it, instances); err != nil {
				return stats, err
			}
		}
		stats.Iterations++
		g.rt.Log.Info("iteration complete", "iteration", it, "of", g.opts.Iterations)
	}
	return stats, nil
}

func (g *Generator) shoot(ctx context.Context, ctrl *scene.Controller, v camera.View, loc camera.Locator,
	rng *rand.Rand, it int, shot camera.Shot, stats *Stats) error {
	pose, err := v.Pose(shot.Frame, loc, rng)
	if err != nil {
		return fmt.Errorf("iteration %d %s: %w", it, shot, err)
	}
	if err := g.renderer.SetCamera(pose); err != nil {
		return err
	}

	if g.opts.SaveReal {
		if err := ctrl.Unmask(); err != nil {
			return err
		}
		p := filepath.Join(g.opts.Root, annotate.RealDir, FrameName(g.opts.Prefix, it, shot.View, shot.Frame, g.opts.Real.Format))
		if err := g.render(ctx, g.opts.Real, p, it, shot); err != nil {
			return err
		}
		stats.Reals++
	}
	if g.opts.SaveMask {
		if err := ctrl.Mask(); err != nil {
			return err
		}
		p := filepath.Join(g.opts.Root, annotate.MaskDir, FrameName(g.opts.Prefix, it, shot.View, shot.Frame, g.opts.Mask.Format))
		if err := g.render(ctx, g.opts.Mask, p, it, shot); err != nil {
			return err
		}
		stats.Masks++
	}
	return nil
}

func (g *Generator) render(ctx context.Context, prof engine.Profile, p string, it int, shot camera.Shot) error {
	if err := security.WithinRoot(p, g.opts.Root); err != nil {
		return err
	}
	if err := g.renderer.SetProfile(prof); err != nil {
		return fmt.Errorf("set %s profile: %w", prof.Mode, err)
	}
	if err := g.renderer.Render(ctx, p); err != nil {
		return fmt.Errorf("render %s: %w", p, err)
	}
	g.rt.Log.Debug("rendered", "mode", prof.Mode.String(), "path", p)
	if g.rec != nil {
		if err := g.rec.RecordRender(ctx, it, shot.View, shot.Frame, prof.Mode.String(), p); err != nil {
			return err
		}
	}
	return nil
}
