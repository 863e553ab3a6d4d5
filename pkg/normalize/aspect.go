package normalize

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	maxAspect    = 1.4
	minAspect    = 0.7
	aspectShrink = 0.9
)

// CorrectAspect squeezes panoramas and very tall frames toward a usable shape.
// A W/H ratio above 1.4 makes the width int(0.9*H); below 0.7 the height becomes int(0.9*W).
// Anything in between is returned untouched.
func CorrectAspect(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img, false
	}

	ratio := float64(w) / float64(h)
	switch {
	case ratio > maxAspect:
		return imaging.Resize(img, int(aspectShrink*float64(h)), h, imaging.Linear), true
	case ratio < minAspect:
		return imaging.Resize(img, w, int(aspectShrink*float64(w)), imaging.Linear), true
	default:
		return img, false
	}
}
