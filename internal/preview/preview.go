// Package preview composites each real render with its mask and draws the
// annotated boxes on top, for eyeballing a dataset.
package preview

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/transform"

	"github.com/banshee-data/synthgen/internal/annotate"
	"github.com/banshee-data/synthgen/internal/bbox"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/imageio"
	"github.com/banshee-data/synthgen/internal/monitoring"
	"github.com/banshee-data/synthgen/internal/palette"
)

// Dir is the output directory under the dataset root.
const Dir = "preview"

// Options control the overlay.
type Options struct {
	// Background is the alpha given to black mask pixels before blending.
	Background uint8
	LineWidth  float64
	Labels     bool
	// Limit caps the number of previews; zero writes all.
	Limit int
}

// DefaultOptions mirrors the compositing of the mask overlay tool.
func DefaultOptions() Options {
	return Options{Background: 125, LineWidth: 2, Labels: true}
}

// Composite multiplies and then adds the mask over im at half
// opacity. Black mask pixels carry alpha bg.
func Composite(im, mask image.Image, bg uint8) *image.RGBA {
	b := im.Bounds()
	if mask.Bounds().Size() != b.Size() {
		mask = transform.Resize(mask, b.Dx(), b.Dy(), transform.NearestNeighbor)
	}
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mb := mask.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.RGBAModel.Convert(mask.At(mb.Min.X+x, mb.Min.Y+y)).(color.RGBA)
			if c.R == 0 && c.G == 0 && c.B == 0 {
				c.A = bg
			}
			m.SetRGBA(x, y, c)
		}
	}
	r := image.NewRGBA(m.Bounds())
	draw.Draw(r, r.Bounds(), im, b.Min, draw.Src)

	comp := blend.Opacity(r, blend.Multiply(r, m), 0.5)
	return blend.Opacity(comp, blend.Add(comp, m), 0.5)
}

// DrawBoxes outlines each record in its identity colour.
func DrawBoxes(img *image.RGBA, recs []annotate.Record, opt Options) *image.RGBA {
	dim := bbox.Dim{W: img.Bounds().Dx(), H: img.Bounds().Dy()}
	dc := gg.NewContextForRGBA(img)
	dc.SetLineWidth(opt.LineWidth)
	for _, r := range recs {
		c, err := palette.ParseHex(r.Color)
		if err != nil {
			c = color.RGBA{R: 255, A: 255}
		}
		p := r.ToPixel(dim)
		dc.SetColor(c)
		dc.DrawRectangle(float64(p.X1), float64(p.Y1), float64(p.Width()), float64(p.Height()))
		dc.Stroke()
		if opt.Labels {
			dc.DrawString(r.Label, float64(p.X1)+2, float64(p.Y1)-3)
		}
	}
	return img
}

// Previewer writes overlays for a dataset.
type Previewer struct {
	rt   *monitoring.Runtime
	fsys fsutil.FileSystem
	opts Options
}

// NewPreviewer returns a previewer writing through fsys.
func NewPreviewer(rt *monitoring.Runtime, fsys fsutil.FileSystem, opts Options) *Previewer {
	if rt == nil {
		rt = monitoring.Nop()
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	return &Previewer{rt: rt, fsys: fsys, opts: opts}
}

// Run writes root/preview/<name>.png for every real image with a mask of
// the same name. It returns the number of previews written.
func (p *Previewer) Run(ctx context.Context, root string) (int, error) {
	recs, err := annotate.Load(p.fsys, root)
	if err != nil {
		return 0, err
	}
	byFile := make(map[string][]annotate.Record)
	for _, r := range recs {
		byFile[r.Filename] = append(byFile[r.Filename], r)
	}

	reals, err := annotate.ListImages(p.fsys, filepath.Join(root, annotate.RealDir))
	if err != nil {
		return 0, err
	}
	out := filepath.Join(root, Dir)
	n := 0
	for _, rp := range reals {
		if p.opts.Limit > 0 && n >= p.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		name := filepath.Base(rp)
		mp := filepath.Join(root, annotate.MaskDir, name)
		if !p.fsys.Exists(mp) {
			p.rt.Log.Warn("no mask for real image", "file", name)
			continue
		}
		im, err := imageio.ReadFile(p.fsys, rp)
		if err != nil {
			return n, err
		}
		mask, err := imageio.ReadFile(p.fsys, mp)
		if err != nil {
			return n, err
		}
		img := DrawBoxes(Composite(im, mask, p.opts.Background), byFile[name], p.opts)
		dst := filepath.Join(out, strings.TrimSuffix(name, filepath.Ext(name))+".png")
		if err := imageio.WriteFile(p.fsys, dst, img, imageio.PNG, imageio.Options{}); err != nil {
			return n, err
		}
		n++
	}
	p.rt.Log.Info("previews written", "dir", out, "count", n)
	return n, nil
}
