//go:build gocv

package detection

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// HaarLocator detects faces with an OpenCV Haar cascade
type HaarLocator struct {
	mu  sync.Mutex
	cls gocv.CascadeClassifier
	cfg HaarConfig
}

// NewHaarLocator loads the cascade XML named in cfg
func NewHaarLocator(cfg HaarConfig) (*HaarLocator, error) {
	if cfg.CascadePath == "" {
		return nil, fmt.Errorf("%w: haar cascade path not configured", ErrBackendUnavailable)
	}
	cls := gocv.NewCascadeClassifier()
	if !cls.Load(cfg.CascadePath) {
		cls.Close()
		return nil, fmt.Errorf("failed to load haar cascade %s", cfg.CascadePath)
	}
	return &HaarLocator{cls: cls, cfg: cfg}, nil
}

// Name implements Locator
func (l *HaarLocator) Name() string { return "haar" }

// Detect implements Locator
func (l *HaarLocator) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	minSize := image.Pt(l.cfg.MinSize, l.cfg.MinSize)
	l.mu.Lock()
	rects := l.cls.DetectMultiScaleWithParams(gray, l.cfg.ScaleFactor, l.cfg.MinNeighbors, 0, minSize, image.Pt(0, 0))
	l.mu.Unlock()

	bounds := img.Bounds()
	regions := make([]types.FaceRegion, 0, len(rects))
	for _, r := range rects {
		if region, ok := clipToBounds(r, bounds); ok {
			regions = append(regions, region)
		}
	}
	return regions, nil
}

// Close releases the classifier
func (l *HaarLocator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cls.Close()
}
