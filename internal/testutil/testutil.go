// Package testutil provides shared test utilities and fixtures.
//
// The raster helpers build masks the way the flat engine renders them: exact
// identity colours on a black background.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/imageio"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Canvas returns a w×h raster cleared to opaque black.
func Canvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	return img
}

// FillRect paints the half-open rectangle [x0,x1)×[y0,y1).
func FillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	c.A = 0xff
	draw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(c), image.Point{}, draw.Src)
}

// CountColor counts pixels exactly equal to c.
func CountColor(img image.Image, c color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.RGBAModel.Convert(img.At(x, y)).(color.RGBA) == c {
				n++
			}
		}
	}
	return n
}

// WritePNG encodes img to path on fsys, creating parent directories.
func WritePNG(t testing.TB, fsys fsutil.FileSystem, path string, img image.Image) {
	t.Helper()
	if err := imageio.WriteFile(fsys, path, img, imageio.PNG, imageio.Options{}); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
