// Package portraits turns photographs into face-anchored 3:4 portrait thumbnails.
//
// A photograph goes through up to two tiers. The primary tier runs one detector pass on the
// upright raster and crops with MarginSplit. If it rejects the file for a retryable reason
// (no face, crop does not fit, washed-out scan) the fallback tier gets a turn: it checks the
// white-pixel ratio, squeezes extreme aspect ratios, tries the raster at 0°, 90°, 180° and
// 270°, and crops with UniformPad. A detector error is never treated as "no face": it is
// returned to the caller.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/brunocoulet-rtm/portraits"
//		"github.com/brunocoulet-rtm/portraits/pkg/detection"
//		"github.com/brunocoulet-rtm/portraits/pkg/raster"
//	)
//
//	func main() {
//		strict, err := detection.NewPigoLocator(detection.DefaultPigoConfig())
//		if err != nil {
//			log.Fatal(err)
//		}
//		lenient := detection.NewSaliencyLocator(detection.DefaultSaliencyConfig())
//
//		p, err := portraits.New(strict, lenient)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := p.ProcessFile(context.Background(), "photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if !res.Outcome.Success() {
//			log.Printf("rejected: %s", res.Outcome.Reason)
//			return
//		}
//		if err := p.SaveThumbnail(res, "photo_portrait.jpg", raster.DefaultSaveOptions()); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Normalize (pkg/normalize): EXIF orientation, white-pixel quality gate, aspect correction
//  2. Detection (pkg/detection): pigo, Haar, vision-model and saliency face locators
//  3. Cropper (pkg/cropper): 3:4 crop geometry and box-filter rendering
//  4. Pipeline (pkg/pipeline): the tier state machine, the retry orchestrator and batch runs
//  5. Storage (pkg/storage): input, accepted and rejected buckets
//
// The portraits command (cmd/portraits) wraps all of it for directory batches.
package portraits

import (
	"context"
	"fmt"
	"image"

	"github.com/brunocoulet-rtm/portraits/pkg/detection"
	"github.com/brunocoulet-rtm/portraits/pkg/normalize"
	"github.com/brunocoulet-rtm/portraits/pkg/pipeline"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
)

// Version of the portraits library
const Version = "0.3.0"

// Portraits provides a high-level interface over the two-tier pipeline
type Portraits struct {
	orchestrator *pipeline.Orchestrator
}

// New creates a Portraits with the default tier settings. fallback may be nil.
func New(primary, fallback detection.Locator) (*Portraits, error) {
	if primary == nil {
		return nil, fmt.Errorf("a primary locator is required")
	}
	p := pipeline.PrimaryDefaults(primary)
	if fallback == nil {
		return NewWithTiers(p, nil)
	}
	f := pipeline.FallbackDefaults(fallback)
	return NewWithTiers(p, &f)
}

// NewWithTiers creates a Portraits from explicit tier configurations. fallback may be nil.
func NewWithTiers(primary pipeline.TierConfig, fallback *pipeline.TierConfig) (*Portraits, error) {
	pt, err := pipeline.NewTier(primary)
	if err != nil {
		return nil, err
	}
	var ft *pipeline.Tier
	if fallback != nil {
		if ft, err = pipeline.NewTier(*fallback); err != nil {
			return nil, err
		}
	}
	o, err := pipeline.NewOrchestrator(pt, ft)
	if err != nil {
		return nil, err
	}
	return &Portraits{orchestrator: o}, nil
}

// Orchestrator exposes the underlying orchestrator, e.g. to build a pipeline.Batch
func (p *Portraits) Orchestrator() *pipeline.Orchestrator {
	return p.orchestrator
}

// ProcessImage runs a decoded image through the tiers. No EXIF orientation is applied.
func (p *Portraits) ProcessImage(ctx context.Context, img image.Image) (pipeline.Result, error) {
	return p.orchestrator.ProcessImage(ctx, "", img, normalize.OrientationNormal)
}

// ProcessFile loads path, applies its EXIF orientation and runs it through the tiers
func (p *Portraits) ProcessFile(ctx context.Context, path string) (pipeline.Result, error) {
	return p.orchestrator.Process(ctx, path)
}

// SaveThumbnail writes the thumbnail of a successful result to path
func (p *Portraits) SaveThumbnail(res pipeline.Result, path string, opts raster.SaveOptions) error {
	if !res.Outcome.Success() || res.Image == nil {
		return fmt.Errorf("no thumbnail: %s", res.Outcome.Reason)
	}
	return raster.Save(res.Image, path, opts)
}

// LoadImage loads an image from file
func LoadImage(path string) (image.Image, error) {
	return raster.Load(path)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
