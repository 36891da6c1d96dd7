package palette

import (
	"errors"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassColors(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 3, 7, 24, 100} {
		cols, err := ClassColors(n)
		require.NoError(t, err)
		require.Len(t, cols, n)

		seen := make(map[color.RGBA]bool, n)
		for i, c := range cols {
			assert.Falsef(t, seen[c], "n=%d: duplicate colour %v at %d", n, c, i)
			seen[c] = true

			cf, _ := colorful.MakeColor(c)
			_, s, v := cf.Hsv()
			assert.InDeltaf(t, 1.0, s, 0.01, "n=%d i=%d saturation", n, i)
			assert.InDeltaf(t, 1.0, v, 0.01, "n=%d i=%d value", n, i)
		}
	}
}

func TestClassColorsHues(t *testing.T) {
	t.Parallel()

	cols, err := ClassColors(3)
	require.NoError(t, err)
	// 90, 180 and 270 degrees.
	want := []color.RGBA{
		{R: 128, G: 255, B: 0, A: 255},
		{R: 0, G: 255, B: 255, A: 255},
		{R: 128, G: 0, B: 255, A: 255},
	}
	assert.Equal(t, want, cols)
}

func TestClassColorsEdgeCases(t *testing.T) {
	t.Parallel()

	cols, err := ClassColors(0)
	require.NoError(t, err)
	assert.Empty(t, cols)

	_, err = ClassColors(-1)
	assert.True(t, errors.Is(err, ErrNegativeCount))
}

func TestInstanceShades(t *testing.T) {
	t.Parallel()

	base := color.RGBA{R: 0, G: 255, B: 255, A: 255}
	for _, k := range []int{1, 2, 5, 40, 128, MaxShades} {
		shades, err := InstanceShades(base, k)
		require.NoError(t, err)
		require.Len(t, shades, k)
		assert.Equal(t, base, shades[0], "first shade keeps full value")

		prev := 2.0
		seen := make(map[color.RGBA]bool, k)
		for j, c := range shades {
			require.Falsef(t, seen[c], "k=%d: shade %d collides after quantization", k, j)
			seen[c] = true

			cf, _ := colorful.MakeColor(c)
			h, s, v := cf.Hsv()
			assert.Lessf(t, v, prev, "k=%d: value not decreasing at %d", k, j)
			prev = v
			// Hue and saturation survive rounding except where the value is
			// so low that the channels collapse to a few levels.
			if v > 0.2 {
				assert.InDeltaf(t, 180, h, 2, "k=%d j=%d hue", k, j)
				assert.InDeltaf(t, 1.0, s, 0.02, "k=%d j=%d saturation", k, j)
			}
		}
	}
}

func TestInstanceShadesErrors(t *testing.T) {
	t.Parallel()

	base := color.RGBA{R: 255, A: 255}
	_, err := InstanceShades(base, 0)
	assert.ErrorIs(t, err, ErrInvalidShadeCount)
	_, err = InstanceShades(base, -3)
	assert.ErrorIs(t, err, ErrInvalidShadeCount)
	_, err = InstanceShades(base, MaxShades+1)
	assert.ErrorIs(t, err, ErrTooManyShades)
}

func TestHexRoundTrip(t *testing.T) {
	t.Parallel()

	c := color.RGBA{R: 0x12, G: 0xab, B: 0x0f, A: 0xff}
	assert.Equal(t, "0x12ab0f", Hex(c))
	assert.Equal(t, uint32(0x12ab0f), Packed(c))
	assert.Equal(t, c, FromPacked(0x12ab0f))

	for _, s := range []string{"0x12ab0f", "#12ab0f", "12AB0F", " 0X12ab0f "} {
		got, err := ParseHex(s)
		require.NoError(t, err, s)
		assert.Equal(t, c, got, s)
	}

	_, err := ParseHex("0x12ab")
	assert.Error(t, err)
	_, err = ParseHex("zzzzzz")
	assert.Error(t, err)
}
