// Package bbox holds the bounding-box forms used by annotations: a
// normalized box in [0,1] image coordinates and a pixel box bound to an
// explicit image size. Labeled and colored variants wrap either form.
package bbox

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Dim is an image size in pixels.
type Dim struct {
	W, H int
}

// Norm is a box in normalized image coordinates. Right and bottom edges are
// exclusive, so a box covering pixel columns [a,b] has X2 = (b+1)/W.
type Norm struct {
	X1, Y1, X2, Y2 float64
}

// Pixel is a box in integer pixel coordinates within Dim.
type Pixel struct {
	X1, Y1, X2, Y2 int
	Dim            Dim
}

// NewNorm orders the corners and clamps them to [0,1].
func NewNorm(x1, y1, x2, y2 float64) Norm {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Norm{X1: clamp01(x1), Y1: clamp01(y1), X2: clamp01(x2), Y2: clamp01(y2)}
}

// FromXYWH builds a normalized box from a top-left corner and size.
func FromXYWH(x, y, w, h float64) Norm {
	return NewNorm(x, y, x+w, y+h)
}

// FromCXCYWH builds a normalized box from its centre and size.
func FromCXCYWH(cx, cy, w, h float64) Norm {
	return NewNorm(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
}

// Valid reports whether the corners are ordered and inside [0,1].
func (b Norm) Valid() bool {
	return b.X1 <= b.X2 && b.Y1 <= b.Y2 &&
		b.X1 >= 0 && b.Y1 >= 0 && b.X2 <= 1 && b.Y2 <= 1
}

func (b Norm) Width() float64  { return b.X2 - b.X1 }
func (b Norm) Height() float64 { return b.Y2 - b.Y1 }
func (b Norm) Area() float64   { return b.Width() * b.Height() }
func (b Norm) CX() float64     { return b.X1 + b.Width()/2 }
func (b Norm) CY() float64     { return b.Y1 + b.Height()/2 }

// XYWH returns the top-left corner and size.
func (b Norm) XYWH() (x, y, w, h float64) {
	return b.X1, b.Y1, b.Width(), b.Height()
}

// ContainsPoint reports whether (x,y) lies inside the box, edges included.
func (b Norm) ContainsPoint(x, y float64) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}

// Contains reports whether o lies entirely inside b.
func (b Norm) Contains(o Norm) bool {
	return b.ContainsPoint(o.X1, o.Y1) && b.ContainsPoint(o.X2, o.Y2)
}

// Expand grows the box by per of its width and height on every side,
// clamped to the image.
func (b Norm) Expand(per float64) Norm {
	dw, dh := b.Width()*per, b.Height()*per
	return NewNorm(b.X1-dw, b.Y1-dh, b.X2+dw, b.Y2+dh)
}

// Translate shifts each edge by the given deltas, clamped to the image.
func (b Norm) Translate(dx1, dy1, dx2, dy2 float64) Norm {
	return NewNorm(b.X1+dx1, b.Y1+dy1, b.X2+dx2, b.Y2+dy2)
}

// Jitter moves each edge by a uniform amount in ±per of the box size.
func (b Norm) Jitter(rng *rand.Rand, per float64) Norm {
	w, h := b.Width()*per, b.Height()*per
	u := func(d float64) float64 { return (rng.Float64()*2 - 1) * d }
	return b.Translate(u(w), u(h), u(w), u(h))
}

// ToPixel rounds the box to the nearest pixel edges of dim.
func (b Norm) ToPixel(dim Dim) Pixel {
	return Pixel{
		X1:  int(math.Round(b.X1 * float64(dim.W))),
		Y1:  int(math.Round(b.Y1 * float64(dim.H))),
		X2:  int(math.Round(b.X2 * float64(dim.W))),
		Y2:  int(math.Round(b.Y2 * float64(dim.H))),
		Dim: dim,
	}
}

// Labeled attaches class identity and source frame.
func (b Norm) Labeled(label string, labelIndex int, filename string) NormLabel {
	return NormLabel{Norm: b, Label: label, LabelIndex: labelIndex, Filename: filename}
}

func (b Norm) String() string {
	return fmt.Sprintf("(%.4f,%.4f)-(%.4f,%.4f)", b.X1, b.Y1, b.X2, b.Y2)
}

// FromPixelRect builds a pixel box from an inclusive min/max pixel range,
// making the right and bottom edges exclusive.
func FromPixelRect(minX, minY, maxX, maxY int, dim Dim) Pixel {
	return Pixel{X1: minX, Y1: minY, X2: maxX + 1, Y2: maxY + 1, Dim: dim}
}

// FromXYWHDim builds a pixel box from corner and size.
func FromXYWHDim(x, y, w, h int, dim Dim) Pixel {
	return Pixel{X1: x, Y1: y, X2: x + w, Y2: y + h, Dim: dim}
}

func (p Pixel) Width() int  { return p.X2 - p.X1 }
func (p Pixel) Height() int { return p.Y2 - p.Y1 }
func (p Pixel) Area() int   { return p.Width() * p.Height() }
func (p Pixel) CX() int     { return p.X1 + p.Width()/2 }
func (p Pixel) CY() int     { return p.Y1 + p.Height()/2 }

// Translate shifts each edge, clamped to the image.
func (p Pixel) Translate(dx1, dy1, dx2, dy2 int) Pixel {
	return Pixel{
		X1:  clampInt(p.X1+dx1, 0, p.Dim.W),
		Y1:  clampInt(p.Y1+dy1, 0, p.Dim.H),
		X2:  clampInt(p.X2+dx2, 0, p.Dim.W),
		Y2:  clampInt(p.Y2+dy2, 0, p.Dim.H),
		Dim: p.Dim,
	}
}

// ToNorm divides by the bound image size.
func (p Pixel) ToNorm() Norm {
	w, h := float64(p.Dim.W), float64(p.Dim.H)
	if w == 0 || h == 0 {
		return Norm{}
	}
	return NewNorm(float64(p.X1)/w, float64(p.Y1)/h, float64(p.X2)/w, float64(p.Y2)/h)
}

// Rescale maps the box onto another image size.
func (p Pixel) Rescale(dim Dim) Pixel {
	return p.ToNorm().ToPixel(dim)
}

// Labeled attaches class identity and source frame.
func (p Pixel) Labeled(label string, labelIndex int, filename string) PixelLabel {
	return PixelLabel{Pixel: p, Label: label, LabelIndex: labelIndex, Filename: filename}
}

// NormLabel is a normalized box tied to a class label and a source frame.
type NormLabel struct {
	Norm
	Label      string
	LabelIndex int
	Filename   string
}

// Colored attaches the identity colour, formatted as 0xrrggbb.
func (l NormLabel) Colored(hex string) NormLabelColor {
	return NormLabelColor{NormLabel: l, Color: hex}
}

// ToPixel keeps the label while converting the geometry.
func (l NormLabel) ToPixel(dim Dim) PixelLabel {
	return PixelLabel{Pixel: l.Norm.ToPixel(dim), Label: l.Label, LabelIndex: l.LabelIndex, Filename: l.Filename}
}

// PixelLabel is a pixel box tied to a class label and a source frame.
type PixelLabel struct {
	Pixel
	Label      string
	LabelIndex int
	Filename   string
}

// Colored attaches the identity colour.
func (l PixelLabel) Colored(hex string) PixelLabelColor {
	return PixelLabelColor{PixelLabel: l, Color: hex}
}

// ToNorm keeps the label while converting the geometry.
func (l PixelLabel) ToNorm() NormLabel {
	return NormLabel{Norm: l.Pixel.ToNorm(), Label: l.Label, LabelIndex: l.LabelIndex, Filename: l.Filename}
}

// NormLabelColor is the shape written to annotations.csv.
type NormLabelColor struct {
	NormLabel
	Color string
}

// ToPixel converts to a pixel box on dim.
func (c NormLabelColor) ToPixel(dim Dim) PixelLabelColor {
	return PixelLabelColor{PixelLabel: c.NormLabel.ToPixel(dim), Color: c.Color}
}

// PixelLabelColor is a colored pixel box, used for previews.
type PixelLabelColor struct {
	PixelLabel
	Color string
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
