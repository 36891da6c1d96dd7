// Package annotate turns identity-colour mask renders into normalized
// bounding boxes. A mask is downsampled with nearest-neighbour resampling,
// so no pixel takes a colour that was not rendered, and then scanned once
// with an accumulator per catalogue colour.
package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/transform"

	"github.com/banshee-data/synthgen/internal/bbox"
	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/palette"
)

// Defaults for Options.
const (
	DefaultWidth     = 320
	DefaultMinPixels = 40
)

// Options tune the extractor.
type Options struct {
	// Width is the working width in pixels. The height keeps the mask's
	// aspect ratio unless Height is set.
	Width  int
	Height int
	// MinPixels is the area a colour must exceed to produce a record.
	MinPixels int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.MinPixels <= 0 {
		o.MinPixels = DefaultMinPixels
	}
	return o
}

// Record is one detected object in one mask.
type Record struct {
	bbox.NormLabelColor
	Shade   int // mat_idx
	ClassID int // object_idx
	Pixels  int // matched area at the working resolution
}

// Extractor finds catalogue colours in mask rasters.
type Extractor struct {
	cat  *catalog.Catalog
	opts Options
}

// NewExtractor builds an extractor over cat.
func NewExtractor(cat *catalog.Catalog, opts Options) *Extractor {
	return &Extractor{cat: cat, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (e *Extractor) Options() Options { return e.opts }

// WorkingSize is the resolution a w×h mask is scanned at.
func (e *Extractor) WorkingSize(w, h int) bbox.Dim {
	ww := e.opts.Width
	hh := e.opts.Height
	if hh <= 0 {
		hh = int(math.Round(float64(h) * float64(ww) / float64(w)))
	}
	return bbox.Dim{W: ww, H: max(1, hh)}
}

// Prepare resamples img to the working size. A raster already at that size
// is only converted.
func (e *Extractor) Prepare(img image.Image) *image.RGBA {
	b := img.Bounds()
	dim := e.WorkingSize(b.Dx(), b.Dy())
	if b.Dx() == dim.W && b.Dy() == dim.H {
		if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
			return rgba
		}
		out := image.NewRGBA(image.Rect(0, 0, dim.W, dim.H))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	return transform.Resize(img, dim.W, dim.H, transform.NearestNeighbor)
}

type acc struct {
	n                      int
	minX, minY, maxX, maxY int
}

// Extract returns a record for every catalogue colour covering more than
// MinPixels of the working raster, in catalogue order. filename is copied
// into each record.
func (e *Extractor) Extract(img image.Image, filename string) []Record {
	if img.Bounds().Empty() {
		return nil
	}
	work := e.Prepare(img)
	dim := bbox.Dim{W: work.Bounds().Dx(), H: work.Bounds().Dy()}

	found := make(map[color.RGBA]*acc)
	for y := 0; y < dim.H; y++ {
		row := work.Pix[y*work.Stride : y*work.Stride+dim.W*4]
		for x := 0; x < dim.W; x++ {
			c := color.RGBA{R: row[x*4], G: row[x*4+1], B: row[x*4+2], A: 0xff}
			if c == catalog.Background {
				continue
			}
			a, ok := found[c]
			if !ok {
				if _, known := e.cat.Lookup(c); !known {
					continue
				}
				a = &acc{minX: x, minY: y, maxX: x, maxY: y}
				found[c] = a
			}
			a.n++
			a.minX = min(a.minX, x)
			a.maxX = max(a.maxX, x)
			a.minY = min(a.minY, y)
			a.maxY = max(a.maxY, y)
		}
	}

	var out []Record
	for _, ent := range e.cat.Entries() {
		a, ok := found[ent.Color]
		if !ok || a.n <= e.opts.MinPixels {
			continue
		}
		box := bbox.FromPixelRect(a.minX, a.minY, a.maxX, a.maxY, dim).ToNorm()
		out = append(out, Record{
			NormLabelColor: box.Labeled(ent.Label, ent.LabelIndex, filename).Colored(palette.Hex(ent.Color)),
			Shade:          ent.Shade,
			ClassID:        ent.ClassID,
			Pixels:         a.n,
		})
	}
	return out
}
