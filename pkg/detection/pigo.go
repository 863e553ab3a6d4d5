package detection

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/brunocoulet-rtm/portraits/asset"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// PigoConfig holds the cascade parameters for the pigo back-end
type PigoConfig struct {
	CascadePath  string
	MinSize      int
	MaxSize      int // 0 means the shorter raster side
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
	// MaxDimension downscales large rasters before detection; 0 disables it
	MaxDimension int
}

// DefaultPigoConfig returns strict parameters suited to the primary tier
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      60,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
		MaxDimension: 1200,
	}
}

// PigoLocator detects faces with a pixel-intensity-comparison cascade
type PigoLocator struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
}

// NewPigoLocator loads the cascade file named in cfg, or the bundled facefinder when no path is set
func NewPigoLocator(cfg PigoConfig) (*PigoLocator, error) {
	if cfg.CascadePath == "" {
		data, err := asset.GetModel(asset.FaceFinder)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return NewPigoLocatorFromCascade(data, cfg)
	}
	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoLocatorFromCascade(data, cfg)
}

// NewPigoLocatorFromCascade unpacks an in-memory cascade
func NewPigoLocatorFromCascade(cascade []byte, cfg PigoConfig) (*PigoLocator, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &PigoLocator{classifier: classifier, cfg: cfg}, nil
}

// Name implements Locator
func (l *PigoLocator) Name() string { return "pigo" }

// Detect implements Locator
func (l *PigoLocator) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	scale := 1.0
	work := img
	if m := l.cfg.MaxDimension; m > 0 && (bounds.Dx() > m || bounds.Dy() > m) {
		if bounds.Dx() >= bounds.Dy() {
			scale = float64(m) / float64(bounds.Dx())
		} else {
			scale = float64(m) / float64(bounds.Dy())
		}
		work = imaging.Resize(img, int(float64(bounds.Dx())*scale), int(float64(bounds.Dy())*scale), imaging.Linear)
	}

	src := pigo.ImgToNRGBA(work)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	maxSize := l.cfg.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     l.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: l.cfg.ShiftFactor,
		ScaleFactor: l.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, l.cfg.IoUThreshold)

	regions := make([]types.FaceRegion, 0, len(dets))
	for _, d := range dets {
		if d.Q < l.cfg.MinQuality {
			continue
		}
		half := float64(d.Scale) / 2
		r := image.Rect(
			int((float64(d.Col)-half)/scale),
			int((float64(d.Row)-half)/scale),
			int((float64(d.Col)+half)/scale),
			int((float64(d.Row)+half)/scale),
		)
		if region, ok := clipToBounds(r, bounds); ok {
			region.Score = float64(d.Q)
			regions = append(regions, region)
		}
	}
	return regions, nil
}
