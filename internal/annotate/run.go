package annotate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/imageio"
	"github.com/banshee-data/synthgen/internal/monitoring"
)

// ErrOutputExists is returned when annotations.csv is already present and
// Force is not set.
var ErrOutputExists = errors.New("annotate: output exists")

// Dataset subdirectories.
const (
	RealDir = "real"
	MaskDir = "mask"
)

// Result summarizes one batch pass.
type Result struct {
	Masks   int
	Reals   int
	Records []Record
}

// Annotator runs the extractor over a dataset tree.
type Annotator struct {
	rt   *monitoring.Runtime
	fsys fsutil.FileSystem
	opts Options

	// Force replaces an existing annotations.csv.
	Force bool
}

// NewAnnotator returns an annotator reading and writing through fsys.
func NewAnnotator(rt *monitoring.Runtime, fsys fsutil.FileSystem, opts Options) *Annotator {
	if rt == nil {
		rt = monitoring.Nop()
	}
	return &Annotator{rt: rt, fsys: fsys, opts: opts.withDefaults()}
}

// ListImages returns the decodable images directly under dir, sorted by
// name.
func ListImages(fsys fsutil.FileSystem, dir string) ([]string, error) {
	var out []string
	for _, ext := range imageio.Extensions {
		m, err := fsys.Glob(filepath.Join(dir, "*."+ext))
		if err != nil {
			return nil, err
		}
		out = append(out, m...)
	}
	slices.SortFunc(out, func(a, b string) int { return strings.Compare(filepath.Base(a), filepath.Base(b)) })
	return slices.Compact(out), nil
}

// Run annotates every mask under root/mask and writes root/annotations.csv.
// Nothing is written if the pass fails or ctx is cancelled.
func (a *Annotator) Run(ctx context.Context, root string) (Result, error) {
	var res Result
	out := filepath.Join(root, AnnotationsFile)
	if a.fsys.Exists(out) && !a.Force {
		return res, fmt.Errorf("%w: %s", ErrOutputExists, out)
	}

	cat, err := catalog.Load(a.fsys, filepath.Join(root, catalog.MetadataFile))
	if err != nil {
		return res, err
	}
	masks, err := ListImages(a.fsys, filepath.Join(root, MaskDir))
	if err != nil {
		return res, err
	}
	reals, err := ListImages(a.fsys, filepath.Join(root, RealDir))
	if err != nil {
		return res, err
	}
	res.Masks, res.Reals = len(masks), len(reals)
	if res.Masks != res.Reals {
		a.rt.Log.Warn("real and mask counts differ", "real", res.Reals, "mask", res.Masks)
	}

	ext := NewExtractor(cat, a.opts)
	start := a.rt.Clock.Now()
	for _, path := range masks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		img, err := imageio.ReadFile(a.fsys, path)
		if err != nil {
			return res, err
		}
		recs := ext.Extract(img, filepath.Base(path))
		a.rt.Log.Debug("annotated", "file", filepath.Base(path), "records", len(recs))
		res.Records = append(res.Records, recs...)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, res.Records); err != nil {
		return res, err
	}
	w, err := a.fsys.Create(out)
	if err != nil {
		return res, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return res, fmt.Errorf("write %s: %w", out, err)
	}
	if err := w.Close(); err != nil {
		return res, fmt.Errorf("write %s: %w", out, err)
	}
	a.rt.Log.Info("annotations written", "path", out, "masks", res.Masks,
		"records", len(res.Records), "elapsed", a.rt.Clock.Since(start))
	return res, nil
}

// Load reads root/annotations.csv.
func Load(fsys fsutil.FileSystem, root string) ([]Record, error) {
	f, err := fsys.Open(filepath.Join(root, AnnotationsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
