// Package imageio encodes and decodes the raster formats a render may be
// written in.
package imageio

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/banshee-data/synthgen/internal/fsutil"
)

// Format names, lower case.
const (
	PNG  = "png"
	JPEG = "jpeg"
	TIFF = "tiff"
	BMP  = "bmp"
)

// Normalize maps a configured file format to a Format name. Blender style
// names ("PNG", "JPEG", "TIFF", "BMP") and extensions ("jpg", "tif") are
// accepted.
func Normalize(format string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "tiff", "tif":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return "", fmt.Errorf("imageio: unsupported format %q", format)
}

// Ext is the file extension for a format, without the dot.
func Ext(format string) string {
	switch format {
	case JPEG:
		return "jpg"
	case TIFF:
		return "tif"
	}
	return format
}

// Lossless reports whether a format preserves exact pixel values.
func Lossless(format string) bool { return format != JPEG }

// Options control encoding.
type Options struct {
	// Compression is 0-100. 0 stores PNG uncompressed; for JPEG the quality
	// is 100-Compression.
	Compression int
	// Depth is 8 or 16 bits per channel. 16 applies to PNG and TIFF.
	Depth int
	// Mode is RGB, RGBA or BW. BW writes greyscale.
	Mode string
}

// Encode writes img in format.
func Encode(w io.Writer, img image.Image, format string, opt Options) error {
	wide := opt.Depth == 16 && (format == PNG || format == TIFF)
	switch {
	case opt.Mode == "BW" && wide:
		img = convert(image.NewGray16(img.Bounds()), img)
	case opt.Mode == "BW":
		img = convert(image.NewGray(img.Bounds()), img)
	case wide:
		img = convert(image.NewRGBA64(img.Bounds()), img)
	}
	switch format {
	case PNG:
		enc := png.Encoder{CompressionLevel: pngLevel(opt.Compression)}
		return enc.Encode(w, img)
	case JPEG:
		q := 100 - opt.Compression
		if q < 1 || q > 100 {
			q = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case TIFF:
		c := tiff.Uncompressed
		if opt.Compression > 0 {
			c = tiff.Deflate
		}
		return tiff.Encode(w, img, &tiff.Options{Compression: c})
	case BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("imageio: unsupported format %q", format)
}

func pngLevel(c int) png.CompressionLevel {
	switch {
	case c <= 0:
		return png.NoCompression
	case c < 50:
		return png.BestSpeed
	case c < 90:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

func convert(dst draw.Image, img image.Image) image.Image {
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// Decode reads any supported format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// WriteFile encodes img to path on fsys, choosing the codec from format.
func WriteFile(fsys fsutil.FileSystem, path string, img image.Image, format string, opt Options) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format, opt); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile decodes the image at path.
func ReadFile(fsys fsutil.FileSystem, path string) (image.Image, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Extensions lists the file extensions Decode can read, for globbing.
var Extensions = []string{"png", "jpg", "jpeg", "tif", "tiff", "bmp"}
