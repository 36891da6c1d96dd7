// Package palette allocates identity colors for mask renders.
//
// Class colors are fully saturated hues spread evenly around the colour
// wheel, excluding both endpoints so the first and last class never meet at
// the red wraparound. Each class then gets a ramp of shades that keep its hue
// and saturation and step the value down towards zero; one shade per
// instance slot.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
)

// MaxShades is the largest ramp InstanceShades will produce. With k <= 255
// the value step 1/k is at least one 8-bit level, so adjacent shades never
// round to the same byte.
const MaxShades = 255

var (
	// ErrNegativeCount is returned when a negative number of class colors is requested.
	ErrNegativeCount = errors.New("palette: negative color count")
	// ErrInvalidShadeCount is returned for a shade ramp of zero or fewer entries.
	ErrInvalidShadeCount = errors.New("palette: shade count must be positive")
	// ErrTooManyShades is returned when a ramp would exceed MaxShades.
	ErrTooManyShades = errors.New("palette: shade count exceeds 8-bit limit")
)

// ClassColors returns n fully saturated colors with hues (i+1)/(n+1).
func ClassColors(n int) ([]color.RGBA, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCount, n)
	}
	if n == 0 {
		return []color.RGBA{}, nil
	}
	// n+2 points over [0,1], dropping both ends.
	hues := floats.Span(make([]float64, n+2), 0, 1)[1 : n+1]
	out := make([]color.RGBA, n)
	for i, h := range hues {
		out[i] = Quantize(colorful.Hsv(h*360, 1, 1))
	}
	return out, nil
}

// InstanceShades returns k colors sharing base's hue and saturation with
// value (k-j)/k for j in [0,k). The first shade is the brightest.
func InstanceShades(base color.Color, k int) ([]color.RGBA, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidShadeCount, k)
	}
	if k > MaxShades {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyShades, k, MaxShades)
	}
	c, _ := colorful.MakeColor(base)
	h, s, _ := c.Hsv()
	// Span over [0,1] with k+1 points, reversed and without the zero.
	values := floats.Span(make([]float64, k+1), 0, 1)
	out := make([]color.RGBA, k)
	for j := 0; j < k; j++ {
		out[j] = Quantize(colorful.Hsv(h, s, values[k-j]))
	}
	return out, nil
}

// Quantize rounds a float colour to 8 bits per channel with full alpha.
func Quantize(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Hex formats c as 0xrrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("0x%02x%02x%02x", c.R, c.G, c.B)
}

// Packed returns c as a 0xRRGGBB integer.
func Packed(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// FromPacked converts a 0xRRGGBB integer to an opaque colour.
func FromPacked(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// ParseHex accepts "0xrrggbb", "#rrggbb" or "rrggbb".
func ParseHex(s string) (color.RGBA, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	t = strings.TrimPrefix(t, "#")
	if len(t) != 6 {
		return color.RGBA{}, fmt.Errorf("palette: invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("palette: invalid hex colour %q: %w", s, err)
	}
	return FromPacked(uint32(v)), nil
}
