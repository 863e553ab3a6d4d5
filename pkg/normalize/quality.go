package normalize

import (
	"image"
)

const (
	// DefaultMarginFraction is trimmed from every edge before measuring whiteness
	DefaultMarginFraction = 0.1
	// DefaultWhiteRatioThreshold is the largest white fraction a usable frame may have
	DefaultWhiteRatioThreshold = 0.30
	// whiteLuma is the luma value above which a pixel counts as white
	whiteLuma = 240
)

// WhiteRatio returns the fraction of near-white pixels in the central region of img.
// The central region excludes int(margin*min(W,H)) pixels from each edge.
func WhiteRatio(img image.Image, margin float64) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	trim := int(margin * float64(min(w, h)))

	x0, y0 := b.Min.X+trim, b.Min.Y+trim
	x1, y1 := b.Max.X-trim, b.Max.Y-trim
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	white := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if luma(img, x, y) > whiteLuma {
				white++
			}
		}
	}
	return float64(white) / float64((x1-x0)*(y1-y0))
}

// IsUsable reports whether the central region of img is not dominated by white pixels
func IsUsable(img image.Image, margin, threshold float64) bool {
	return WhiteRatio(img, margin) <= threshold
}

// luma returns the BT.601 luma of the pixel at (x, y) on a 0-255 scale
func luma(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}
