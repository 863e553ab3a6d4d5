//go:build !gocv

package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// HaarLocator is unavailable in builds without the gocv tag
type HaarLocator struct{}

// NewHaarLocator always fails; rebuild with -tags gocv to enable OpenCV
func NewHaarLocator(cfg HaarConfig) (*HaarLocator, error) {
	return nil, fmt.Errorf("%w: haar requires a build with -tags gocv", ErrBackendUnavailable)
}

// Name implements Locator
func (l *HaarLocator) Name() string { return "haar" }

// Detect implements Locator
func (l *HaarLocator) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	return nil, ErrBackendUnavailable
}

// Close is a no-op
func (l *HaarLocator) Close() error { return nil }
