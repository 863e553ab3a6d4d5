package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// SaliencyConfig holds the parameters of the saliency locator
type SaliencyConfig struct {
	// SubjectScale is the side of the reported subject box relative to the best square crop
	SubjectScale float64
}

// DefaultSaliencyConfig returns the default saliency parameters
func DefaultSaliencyConfig() SaliencyConfig {
	return SaliencyConfig{SubjectScale: 0.5}
}

// SaliencyLocator reports the most salient (skin, edges, saturation) area of a raster as a
// single subject box. It always finds something, so it belongs at the end of a fallback chain.
type SaliencyLocator struct {
	analyzer smartcrop.Analyzer
	cfg      SaliencyConfig
}

// NewSaliencyLocator creates a smartcrop-backed locator
func NewSaliencyLocator(cfg SaliencyConfig) *SaliencyLocator {
	if cfg.SubjectScale <= 0 || cfg.SubjectScale > 1 {
		cfg.SubjectScale = DefaultSaliencyConfig().SubjectScale
	}
	return &SaliencyLocator{
		analyzer: smartcrop.NewAnalyzer(&resizer{filter: imaging.Linear}),
		cfg:      cfg,
	}
}

// Name implements Locator
func (l *SaliencyLocator) Name() string { return "saliency" }

// Detect implements Locator
func (l *SaliencyLocator) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	if side == 0 {
		return nil, nil
	}

	best, err := l.analyzer.FindBestCrop(img, side, side)
	if err != nil {
		return nil, fmt.Errorf("finding best crop: %w", err)
	}
	best = best.Sub(bounds.Min)

	subject := int(float64(min(best.Dx(), best.Dy())) * l.cfg.SubjectScale)
	if subject <= 0 {
		return nil, nil
	}
	cx := best.Min.X + best.Dx()/2
	cy := best.Min.Y + best.Dy()/2
	r := image.Rect(cx-subject/2, cy-subject/2, cx-subject/2+subject, cy-subject/2+subject)

	region, ok := clipToBounds(r, bounds)
	if !ok {
		return nil, nil
	}
	return []types.FaceRegion{region}, nil
}

// resizer implements the smartcrop.Resizer interface with imaging
type resizer struct {
	filter imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}
