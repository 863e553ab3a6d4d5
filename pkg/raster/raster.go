// Package raster loads, encodes and transforms decoded images.
package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// ErrUndecodable is returned when a file cannot be read or decoded as an image
var ErrUndecodable = errors.New("undecodable image")

// SaveOptions controls how an image is encoded on disk
type SaveOptions struct {
	// Format is one of jpg, png or webp. Empty means derive it from the path.
	Format   string
	Quality  int
	Lossless bool
}

// DefaultSaveOptions returns the encoding used for thumbnails when nothing else is configured
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{Quality: 90}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// Load loads an image from a file path with WebP support
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, path, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return img, nil
}

// Decode decodes an image from byte data with WebP support
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: unknown or unsupported format", ErrUndecodable)
}

// FormatFor returns the output format implied by a file name
func FormatFor(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

// Save saves an image to a file with the configured format and quality
func Save(img image.Image, path string, opts SaveOptions) error {
	if opts.Format == "" {
		opts.Format = FormatFor(path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(f, img, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes img to w. An empty Format encodes JPEG.
func Encode(w io.Writer, img image.Image, opts SaveOptions) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultSaveOptions().Quality
	}

	switch strings.ToLower(opts.Format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

// Rotate returns a copy of img rotated clockwise by r
func Rotate(img image.Image, r types.Rotation) *image.NRGBA {
	switch r {
	case types.Rotate90:
		// imaging rotates counter-clockwise
		return imaging.Rotate270(img)
	case types.Rotate180:
		return imaging.Rotate180(img)
	case types.Rotate270:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// Info returns basic information about an image
func Info(img image.Image) ImageInfo {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	info := ImageInfo{Width: w, Height: h, Area: w * h}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}

// Validate checks that an image is large enough to be worth processing
func Validate(img image.Image, minSize int) error {
	if img == nil {
		return fmt.Errorf("image is nil")
	}
	info := Info(img)
	if info.Width == 0 || info.Height == 0 {
		return fmt.Errorf("image has zero dimensions")
	}
	if info.Width < minSize || info.Height < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %dx%d)", info.Width, info.Height, minSize, minSize)
	}
	return nil
}

// EncodeBase64 converts an image to base64 for sending to vision models
func EncodeBase64(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if quality <= 0 {
			quality = 85
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
