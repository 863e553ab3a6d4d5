// Package detection locates faces in rasters.
//
// Every back-end implements Locator. An empty result means the back-end ran and saw no face;
// a non-nil error means the back-end itself failed and the caller must not treat it as "no face".
package detection

import (
	"context"
	"errors"
	"image"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// ErrBackendUnavailable is returned when a back-end was not compiled in or cannot be reached
var ErrBackendUnavailable = errors.New("detector back-end unavailable")

// Locator finds face regions in pixel coordinates of the given raster
type Locator interface {
	Name() string
	Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error)
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func(ctx context.Context, img image.Image) ([]types.FaceRegion, error)

// Name implements Locator
func (f LocatorFunc) Name() string { return "func" }

// Detect implements Locator
func (f LocatorFunc) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	return f(ctx, img)
}

// Largest returns the region with the largest area. Ties keep the first region encountered.
func Largest(regions []types.FaceRegion) (types.FaceRegion, bool) {
	if len(regions) == 0 {
		return types.FaceRegion{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area() > best.Area() {
			best = r
		}
	}
	return best, true
}

// clipToBounds intersects a pixel rectangle with the raster bounds, relative to the raster origin
func clipToBounds(r image.Rectangle, b image.Rectangle) (types.FaceRegion, bool) {
	w, h := b.Dx(), b.Dy()
	r = r.Intersect(image.Rect(0, 0, w, h))
	if r.Empty() {
		return types.FaceRegion{}, false
	}
	return types.FaceRegion{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}, true
}
