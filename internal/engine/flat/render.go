package flat

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"
	"sync"

	"git.sr.ht/~sbinet/gg"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/camera"
	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/imageio"
)

// ErrNoCamera is returned by Render before SetCamera.
var ErrNoCamera = errors.New("flat: camera not set")

const nearPlane = 1e-3

var (
	skyTop    = color.RGBA{R: 150, G: 190, B: 230, A: 255}
	skyBottom = color.RGBA{R: 225, G: 235, B: 245, A: 255}
	ground    = color.RGBA{R: 110, G: 120, B: 100, A: 255}
)

// Rendered records one completed render.
type Rendered struct {
	Path string
	Mode engine.Mode
}

// Renderer implements engine.Renderer over a Scene.
type Renderer struct {
	scene *Scene
	fsys  fsutil.FileSystem

	mu       sync.Mutex
	defaults engine.Profile
	profile  engine.Profile
	pose     *camera.Pose
	history  []Rendered
}

var _ engine.Renderer = (*Renderer)(nil)

// NewRenderer writes renders of scene through fsys. defaults is restored by
// RestoreDefaults.
func NewRenderer(scene *Scene, fsys fsutil.FileSystem, defaults engine.Profile) *Renderer {
	return &Renderer{scene: scene, fsys: fsys, defaults: defaults, profile: defaults}
}

// SetCamera places the camera.
func (r *Renderer) SetCamera(p camera.Pose) error {
	if p.Zoom <= 0 || p.SensorWidth <= 0 {
		return fmt.Errorf("flat: invalid lens %.1fmm on %.1fmm sensor", p.Zoom, p.SensorWidth)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pose = &p
	return nil
}

// SetProfile switches render settings.
func (r *Renderer) SetProfile(p engine.Profile) error {
	f, err := imageio.Normalize(p.Format)
	if err != nil {
		return err
	}
	if w, h := p.Size(); w <= 0 || h <= 0 {
		return fmt.Errorf("flat: invalid resolution %dx%d", w, h)
	}
	p.Format = f
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = p
	return nil
}

// Profile returns the active settings.
func (r *Renderer) Profile() engine.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Render rasterizes the scene and writes it to path.
func (r *Renderer) Render(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, prof, err := r.raster()
	if err != nil {
		return err
	}
	f, err := imageio.Normalize(prof.Format)
	if err != nil {
		return err
	}
	opt := imageio.Options{Compression: prof.Compression, Depth: prof.ColorDepth, Mode: prof.ColorMode}
	if err := imageio.WriteFile(r.fsys, path, img, f, opt); err != nil {
		return fmt.Errorf("flat: write %s: %w", path, err)
	}
	r.mu.Lock()
	r.history = append(r.history, Rendered{Path: path, Mode: prof.Mode})
	r.mu.Unlock()
	return nil
}

// Raster renders the current state without writing it.
func (r *Renderer) Raster() (*image.RGBA, error) {
	img, _, err := r.raster()
	return img, err
}

func (r *Renderer) raster() (*image.RGBA, engine.Profile, error) {
	r.mu.Lock()
	prof := r.profile
	pose := r.pose
	r.mu.Unlock()
	if pose == nil {
		return nil, prof, ErrNoCamera
	}
	w, h := prof.Size()
	if w <= 0 || h <= 0 {
		return nil, prof, fmt.Errorf("flat: invalid resolution %dx%d", w, h)
	}
	cam := newProjector(*pose, w, h)
	objs := r.scene.snapshot()
	if prof.Mode == engine.ModeMask {
		return rasterMask(cam, objs, w, h), prof, nil
	}
	return r.rasterReal(cam, objs, w, h), prof, nil
}

// Renders lists completed renders in order.
func (r *Renderer) Renders() []Rendered {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}

// RestoreDefaults reverts the profile and clears the camera.
func (r *Renderer) RestoreDefaults() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = r.defaults
	r.pose = nil
	return nil
}

// projector maps world points to pixel coordinates.
type projector struct {
	pos             r3.Vec
	right, up, back r3.Vec
	focal           float64 // pixels
	cx, cy          float64
}

func newProjector(p camera.Pose, w, h int) projector {
	right, up, back := p.Basis()
	return projector{
		pos:   p.Position,
		right: right, up: up, back: back,
		focal: p.Zoom / p.SensorWidth * float64(w),
		cx:    float64(w) / 2,
		cy:    float64(h) / 2,
	}
}

// project returns pixel coordinates and depth; ok is false behind the camera.
func (p projector) project(v r3.Vec) (x, y, depth float64, ok bool) {
	d := r3.Sub(v, p.pos)
	depth = -r3.Dot(d, p.back)
	if depth <= nearPlane {
		return 0, 0, depth, false
	}
	x = p.cx + p.focal*r3.Dot(d, p.right)/depth
	y = p.cy - p.focal*r3.Dot(d, p.up)/depth
	return x, y, depth, true
}

type disc struct {
	x, y, r, depth float64
	obj            Object
}

// discs projects visible spheres and orders them far to near.
func discs(cam projector, objs []Object) []disc {
	var out []disc
	for _, o := range objs {
		if o.Emitter || o.Radius <= 0 {
			continue
		}
		x, y, depth, ok := cam.project(o.Location)
		if !ok {
			continue
		}
		out = append(out, disc{x: x, y: y, r: cam.focal * o.Radius / depth, depth: depth, obj: o})
	}
	slices.SortStableFunc(out, func(a, b disc) int {
		switch {
		case a.depth > b.depth:
			return -1
		case a.depth < b.depth:
			return 1
		}
		return 0
	})
	return out
}

// rasterMask paints flat slots exactly. Objects without a flat slot occlude
// in background black.
func rasterMask(cam projector, objs []Object, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	for _, d := range discs(cam, objs) {
		c := color.RGBA{A: 0xff}
		if len(d.obj.Slots) > 0 && d.obj.Slots[0].Flat {
			c = d.obj.Slots[0].Color
			c.A = 0xff
		}
		fillDisc(img, d.x, d.y, d.r, c)
	}
	return img
}

// fillDisc sets every pixel whose centre lies within r of (cx, cy).
func fillDisc(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	b := img.Bounds()
	y0 := max(b.Min.Y, int(math.Floor(cy-r)))
	y1 := min(b.Max.Y-1, int(math.Ceil(cy+r)))
	x0 := max(b.Min.X, int(math.Floor(cx-r)))
	x1 := min(b.Max.X-1, int(math.Ceil(cx+r)))
	r2 := r * r
	for y := y0; y <= y1; y++ {
		dy := float64(y) + 0.5 - cy
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// rasterReal shades the scene: sky gradient, emitter patches, then lit
// spheres in their material colours.
func (r *Renderer) rasterReal(cam projector, objs []Object, w, h int) *image.RGBA {
	dc := gg.NewContext(w, h)
	sky := gg.NewLinearGradient(0, 0, 0, float64(h))
	sky.AddColorStop(0, skyTop)
	sky.AddColorStop(1, skyBottom)
	dc.SetFillStyle(sky)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	for _, o := range objs {
		if !o.Emitter {
			continue
		}
		ex, ey := o.Extent[0], o.Extent[1]
		corners := []r3.Vec{
			{X: o.Location.X - ex, Y: o.Location.Y - ey, Z: o.Location.Z},
			{X: o.Location.X + ex, Y: o.Location.Y - ey, Z: o.Location.Z},
			{X: o.Location.X + ex, Y: o.Location.Y + ey, Z: o.Location.Z},
			{X: o.Location.X - ex, Y: o.Location.Y + ey, Z: o.Location.Z},
		}
		inFront := true
		for i, c := range corners {
			x, y, _, ok := cam.project(c)
			if !ok {
				inFront = false
				break
			}
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		if !inFront {
			dc.ClearPath()
			continue
		}
		dc.ClosePath()
		dc.SetColor(r.surface(o, ground))
		dc.Fill()
	}

	for _, d := range discs(cam, objs) {
		base := r.surface(d.obj, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		if len(d.obj.Slots) > 0 && d.obj.Slots[0].Flat {
			dc.SetColor(base)
		} else {
			hl := d.r * 0.35
			shade := gg.NewRadialGradient(d.x-hl, d.y-hl, 0, d.x, d.y, d.r)
			shade.AddColorStop(0, lighten(base, 0.45))
			shade.AddColorStop(0.7, base)
			shade.AddColorStop(1, darken(base, 0.5))
			dc.SetFillStyle(shade)
		}
		dc.DrawCircle(d.x, d.y, d.r)
		dc.Fill()
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return out
}

func (r *Renderer) surface(o Object, fallback color.RGBA) color.RGBA {
	if len(o.Slots) == 0 {
		return fallback
	}
	s := o.Slots[0]
	if s.Flat {
		return s.Color
	}
	return r.scene.MaterialColor(s.Material)
}

func lighten(c color.RGBA, f float64) color.RGBA {
	l := func(v uint8) uint8 { return uint8(float64(v) + (255-float64(v))*f) }
	return color.RGBA{R: l(c.R), G: l(c.G), B: l(c.B), A: 0xff}
}

func darken(c color.RGBA, f float64) color.RGBA {
	d := func(v uint8) uint8 { return uint8(float64(v) * (1 - f)) }
	return color.RGBA{R: d(c.R), G: d(c.G), B: d(c.B), A: 0xff}
}
