// Package cropper turns a detected face into a 3:4 portrait crop that lies fully inside the raster.
package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// ErrEmptyCrop is returned when no valid portrait region fits the raster
var ErrEmptyCrop = errors.New("empty crop")

// Default thumbnail resolution
const (
	DefaultWidth  = 192
	DefaultHeight = 248
)

// AspectRatio represents a width:height ratio
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Portrait is the only ratio crops are produced in
var Portrait = AspectRatio{3, 4, "portrait"}

// WidthFor returns floor(height * Width / Height)
func (a AspectRatio) WidthFor(height int) int {
	return height * a.Width / a.Height
}

// Strategy proposes an unclamped portrait rectangle around a face
type Strategy interface {
	Name() string
	Propose(face types.FaceRegion) image.Rectangle
}

// MarginSplit expands the face box by independent fractions of its height above and below,
// then derives the width from the portrait ratio, centered on the face.
type MarginSplit struct {
	Top    float64
	Bottom float64
}

// Name implements Strategy
func (m MarginSplit) Name() string { return "margin_split" }

// Propose implements Strategy
func (m MarginSplit) Propose(face types.FaceRegion) image.Rectangle {
	yTop := int(float64(face.Y) - float64(face.Height)*m.Top)
	yBottom := int(float64(face.Y) + float64(face.Height)*(1+m.Bottom))

	cropH := yBottom - yTop
	cropW := Portrait.WidthFor(cropH)
	if cropW <= 0 {
		return image.Rectangle{}
	}

	xc := face.X + face.Width/2
	xLeft := int(math.Floor(float64(xc) - float64(cropW)/2))

	return image.Rect(xLeft, yTop, xLeft+cropW, yTop+cropH)
}

// UniformPad pads the face box by a fraction of its longer side on every edge,
// then grows the padded box to the smallest portrait rectangle around the same center.
type UniformPad struct {
	Fraction float64
}

// Name implements Strategy
func (u UniformPad) Name() string { return "uniform_pad" }

// Propose implements Strategy
func (u UniformPad) Propose(face types.FaceRegion) image.Rectangle {
	pad := int(u.Fraction * float64(max(face.Width, face.Height)))
	bw := face.Width + 2*pad
	bh := face.Height + 2*pad
	if bw <= 0 || bh <= 0 {
		return image.Rectangle{}
	}

	cropH := bh
	if bw*Portrait.Height > bh*Portrait.Width {
		// too wide for the ratio; height grows to ceil(bw*4/3)
		cropH = (bw*Portrait.Height + Portrait.Width - 1) / Portrait.Width
	}
	cropW := Portrait.WidthFor(cropH)

	// doubled centers keep the arithmetic in integers
	cx2 := 2*(face.X-pad) + bw
	cy2 := 2*(face.Y-pad) + bh
	left := int(math.Floor(float64(cx2-cropW) / 2))
	top := int(math.Floor(float64(cy2-cropH) / 2))

	return image.Rect(left, top, left+cropW, top+cropH)
}

// ParseStrategy builds a strategy from its configured name
func ParseStrategy(name string, marginTop, marginBottom, padding float64) (Strategy, error) {
	switch name {
	case "margin_split", "":
		return MarginSplit{Top: marginTop, Bottom: marginBottom}, nil
	case "uniform_pad":
		return UniformPad{Fraction: padding}, nil
	default:
		return nil, fmt.Errorf("unknown crop strategy %q", name)
	}
}

// ComputeCrop places the strategy's proposal inside a width x height raster.
// An edge that falls outside the raster shifts the whole region back in; a region that
// cannot fit without changing its size yields ErrEmptyCrop.
func ComputeCrop(face types.FaceRegion, width, height int, strategy Strategy) (types.CropRegion, error) {
	if width <= 0 || height <= 0 {
		return types.CropRegion{}, fmt.Errorf("%w: raster is %dx%d", ErrEmptyCrop, width, height)
	}
	if face.Width <= 0 || face.Height <= 0 {
		return types.CropRegion{}, fmt.Errorf("%w: face has no area", ErrEmptyCrop)
	}

	r := strategy.Propose(face)
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return types.CropRegion{}, fmt.Errorf("%w: %s produced no area", ErrEmptyCrop, strategy.Name())
	}
	if r.Dy() > height || r.Dx() > width {
		return types.CropRegion{}, fmt.Errorf("%w: %dx%d crop does not fit %dx%d raster",
			ErrEmptyCrop, r.Dx(), r.Dy(), width, height)
	}

	top, bottom := shiftInside(r.Min.Y, r.Max.Y, height)
	left, right := shiftInside(r.Min.X, r.Max.X, width)

	return types.CropRegion{X: left, Y: top, Width: right - left, Height: bottom - top}, nil
}

// shiftInside moves [lo, hi) into [0, limit) without changing its length.
// The caller guarantees hi-lo <= limit.
func shiftInside(lo, hi, limit int) (int, int) {
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		diff := hi - limit
		lo = max(0, lo-diff)
		hi = limit
	}
	return lo, hi
}

// Render cuts crop out of img and resizes it with an area-averaging filter
func Render(img image.Image, crop types.CropRegion, width, height int) (*image.NRGBA, error) {
	if crop.Empty() {
		return nil, ErrEmptyCrop
	}
	b := img.Bounds()
	rect := crop.Rect().Add(b.Min)
	if !rect.In(b) {
		return nil, fmt.Errorf("%w: crop %v outside raster %v", ErrEmptyCrop, rect, b)
	}

	cropped := imaging.Crop(img, rect)
	return imaging.Resize(cropped, width, height, imaging.Box), nil
}

// Cropper combines a strategy with the output resolution
type Cropper struct {
	strategy Strategy
	width    int
	height   int
}

// New creates a Cropper producing width x height thumbnails
func New(strategy Strategy, width, height int) *Cropper {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Cropper{strategy: strategy, width: width, height: height}
}

// Strategy returns the configured strategy
func (c *Cropper) Strategy() Strategy {
	return c.strategy
}

// Crop computes the crop for face on img and renders the thumbnail
func (c *Cropper) Crop(img image.Image, face types.FaceRegion) (*image.NRGBA, types.CropRegion, error) {
	b := img.Bounds()
	region, err := ComputeCrop(face, b.Dx(), b.Dy(), c.strategy)
	if err != nil {
		return nil, types.CropRegion{}, err
	}
	out, err := Render(img, region, c.width, c.height)
	if err != nil {
		return nil, region, err
	}
	return out, region, nil
}
