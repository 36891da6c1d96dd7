package bbox

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormOrdersAndClamps(t *testing.T) {
	b := NewNorm(0.8, 1.2, -0.1, 0.3)
	want := Norm{X1: 0, Y1: 0.3, X2: 0.8, Y2: 1}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("NewNorm mismatch (-want +got):\n%s", diff)
	}
	if !b.Valid() {
		t.Errorf("expected valid box, got %v", b)
	}
	if (Norm{X1: 0.5, X2: 0.4, Y2: 1}).Valid() {
		t.Error("unordered box reported valid")
	}
}

func TestRoundTripWithinOnePixel(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	dims := []Dim{{W: 320, H: 240}, {W: 1920, H: 1080}, {W: 17, H: 5}}
	for _, dim := range dims {
		for i := 0; i < 200; i++ {
			b := NewNorm(rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64())
			back := b.ToPixel(dim).ToNorm()
			tx, ty := 1/float64(dim.W), 1/float64(dim.H)
			require.InDelta(t, b.X1, back.X1, tx)
			require.InDelta(t, b.Y1, back.Y1, ty)
			require.InDelta(t, b.X2, back.X2, tx)
			require.InDelta(t, b.Y2, back.Y2, ty)
			require.True(t, back.Valid())
		}
	}
}

func TestPixelRoundTripExact(t *testing.T) {
	dim := Dim{W: 320, H: 180}
	p := FromPixelRect(10, 20, 49, 99, dim)
	assert.Equal(t, 40, p.Width())
	assert.Equal(t, 80, p.Height())
	assert.Equal(t, p, p.ToNorm().ToPixel(dim))

	up := p.Rescale(Dim{W: 640, H: 360})
	assert.Equal(t, Pixel{X1: 20, Y1: 40, X2: 100, Y2: 200, Dim: Dim{W: 640, H: 360}}, up)
}

func TestConstructors(t *testing.T) {
	a := FromXYWH(0.1, 0.2, 0.3, 0.4)
	b := FromCXCYWH(0.25, 0.4, 0.3, 0.4)
	const eps = 1e-12
	assert.InDelta(t, a.X1, b.X1, eps)
	assert.InDelta(t, a.Y1, b.Y1, eps)
	assert.InDelta(t, a.X2, b.X2, eps)
	assert.InDelta(t, a.Y2, b.Y2, eps)

	x, y, w, h := a.XYWH()
	assert.InDelta(t, 0.1, x, eps)
	assert.InDelta(t, 0.2, y, eps)
	assert.InDelta(t, 0.3, w, eps)
	assert.InDelta(t, 0.4, h, eps)
	assert.InDelta(t, 0.12, a.Area(), eps)
	assert.InDelta(t, 0.25, a.CX(), eps)
	assert.InDelta(t, 0.4, a.CY(), eps)

	p := FromXYWHDim(4, 6, 10, 2, Dim{W: 100, H: 100})
	assert.Equal(t, Pixel{X1: 4, Y1: 6, X2: 14, Y2: 8, Dim: Dim{W: 100, H: 100}}, p)
	assert.Equal(t, 20, p.Area())
	assert.Equal(t, 9, p.CX())
}

func TestContainsAndExpand(t *testing.T) {
	outer := NewNorm(0.1, 0.1, 0.9, 0.9)
	inner := NewNorm(0.2, 0.3, 0.4, 0.5)
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.True(t, outer.ContainsPoint(0.1, 0.9))
	assert.False(t, outer.ContainsPoint(0.95, 0.5))

	e := inner.Expand(0.5)
	assert.InDelta(t, 0.1, e.X1, 1e-12)
	assert.InDelta(t, 0.2, e.Y1, 1e-12)
	assert.InDelta(t, 0.5, e.X2, 1e-12)
	assert.InDelta(t, 0.6, e.Y2, 1e-12)

	clamped := outer.Expand(1)
	assert.Equal(t, Norm{X1: 0, Y1: 0, X2: 1, Y2: 1}, clamped)
}

func TestTranslateClamps(t *testing.T) {
	n := NewNorm(0.1, 0.1, 0.2, 0.2).Translate(-0.5, 0, 0.9, 0.05)
	assert.Equal(t, 0.0, n.X1)
	assert.Equal(t, 1.0, n.X2)
	assert.InDelta(t, 0.25, n.Y2, 1e-12)

	p := Pixel{X1: 5, Y1: 5, X2: 10, Y2: 10, Dim: Dim{W: 12, H: 12}}.Translate(-10, 1, 5, 1)
	assert.Equal(t, Pixel{X1: 0, Y1: 6, X2: 12, Y2: 11, Dim: Dim{W: 12, H: 12}}, p)
}

func TestJitterBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	b := NewNorm(0.4, 0.4, 0.6, 0.6)
	for i := 0; i < 100; i++ {
		j := b.Jitter(rng, 0.1)
		if math.Abs(j.X1-b.X1) > 0.02+1e-12 || math.Abs(j.Y2-b.Y2) > 0.02+1e-12 {
			t.Fatalf("jitter out of bounds: %v", j)
		}
	}
}

func TestLabeledVariants(t *testing.T) {
	dim := Dim{W: 100, H: 50}
	n := NewNorm(0.1, 0.2, 0.5, 0.6)
	c := n.Labeled("boat", 3, "mask/a.png").Colored("0x00ffff")
	assert.Equal(t, "boat", c.Label)
	assert.Equal(t, 3, c.LabelIndex)
	assert.Equal(t, "0x00ffff", c.Color)

	pc := c.ToPixel(dim)
	assert.Equal(t, Pixel{X1: 10, Y1: 10, X2: 50, Y2: 30, Dim: dim}, pc.Pixel)
	assert.Equal(t, "mask/a.png", pc.Filename)
	assert.Equal(t, "0x00ffff", pc.Color)

	back := pc.PixelLabel.ToNorm()
	assert.Equal(t, "boat", back.Label)
	assert.InDelta(t, 0.6, back.Y2, 1e-12)
}

func TestZeroDimToNorm(t *testing.T) {
	assert.Equal(t, Norm{}, Pixel{X2: 3, Y2: 3}.ToNorm())
}
