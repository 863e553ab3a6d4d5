// Package pipeline runs files through the primary and fallback tiers and places the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/brunocoulet-rtm/portraits/pkg/cropper"
	"github.com/brunocoulet-rtm/portraits/pkg/detection"
	"github.com/brunocoulet-rtm/portraits/pkg/normalize"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// FaultError reports a detector failure. It aborts the batch and is never a rejection.
type FaultError struct {
	Tier    types.Tier
	Locator string
	Input   string
	Err     error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s tier: detector %s failed on %s: %v", e.Tier, e.Locator, e.Input, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// IsFault reports whether err carries a detector failure
func IsFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}

// TierConfig describes one pass over a file
type TierConfig struct {
	Name             types.Tier
	Locator          detection.Locator
	Cropper          *cropper.Cropper
	ApplyOrientation bool
	QualityGate      bool
	MarginFraction   float64
	WhiteThreshold   float64
	AspectCorrection bool
	RotationSearch   bool
}

// PrimaryDefaults returns the cheap, strict pass: one detection on the upright raster
func PrimaryDefaults(locator detection.Locator) TierConfig {
	return TierConfig{
		Name:             types.TierPrimary,
		Locator:          locator,
		Cropper:          cropper.New(cropper.MarginSplit{Top: 0.2, Bottom: 0.2}, cropper.DefaultWidth, cropper.DefaultHeight),
		ApplyOrientation: true,
		MarginFraction:   normalize.DefaultMarginFraction,
		WhiteThreshold:   normalize.DefaultWhiteRatioThreshold,
	}
}

// FallbackDefaults returns the lenient pass: quality gate, aspect correction and rotation search
func FallbackDefaults(locator detection.Locator) TierConfig {
	return TierConfig{
		Name:             types.TierFallback,
		Locator:          locator,
		Cropper:          cropper.New(cropper.UniformPad{Fraction: 0.2}, cropper.DefaultWidth, cropper.DefaultHeight),
		ApplyOrientation: true,
		QualityGate:      true,
		MarginFraction:   normalize.DefaultMarginFraction,
		WhiteThreshold:   normalize.DefaultWhiteRatioThreshold,
		AspectCorrection: true,
		RotationSearch:   true,
	}
}

// Result is the outcome of a tier together with the rendered thumbnail on success
type Result struct {
	Outcome types.Outcome
	Image   *image.NRGBA
	// Frame is the raster Outcome.Face and Outcome.Crop refer to, set once a face was found
	Frame image.Image
}

// Tier runs a single pass: orient, gate, correct, detect (with optional rotation search), crop
type Tier struct {
	cfg TierConfig
}

// NewTier creates a tier
func NewTier(cfg TierConfig) (*Tier, error) {
	if cfg.Locator == nil {
		return nil, fmt.Errorf("%s tier: no locator configured", cfg.Name)
	}
	if cfg.Cropper == nil {
		return nil, fmt.Errorf("%s tier: no cropper configured", cfg.Name)
	}
	return &Tier{cfg: cfg}, nil
}

// Name returns the tier name
func (t *Tier) Name() types.Tier {
	return t.cfg.Name
}

// Run processes the file at path
func (t *Tier) Run(ctx context.Context, path string) (Result, error) {
	img, err := raster.Load(path)
	if err != nil {
		return t.reject(path, types.ReasonUndecodable), nil
	}

	orientation := normalize.OrientationNormal
	if t.cfg.ApplyOrientation {
		orientation = normalize.ReadOrientation(path)
	}
	return t.RunImage(ctx, path, img, orientation)
}

// RunImage processes an already decoded raster. input only labels the outcome.
func (t *Tier) RunImage(ctx context.Context, input string, img image.Image, orientation normalize.Orientation) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return t.reject(input, types.ReasonUndecodable), nil
	}

	oriented := false
	if t.cfg.ApplyOrientation {
		img, oriented = normalize.Normalize(img, orientation)
	}

	if t.cfg.QualityGate && !normalize.IsUsable(img, t.cfg.MarginFraction, t.cfg.WhiteThreshold) {
		res := t.reject(input, types.ReasonLowQuality)
		res.Outcome.Oriented = oriented
		return res, nil
	}

	if t.cfg.AspectCorrection {
		img, _ = normalize.CorrectAspect(img)
	}

	rotations := []types.Rotation{types.Rotate0}
	if t.cfg.RotationSearch {
		rotations = types.SearchOrder()
	}

	for _, rot := range rotations {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		candidate := img
		if rot != types.Rotate0 {
			candidate = raster.Rotate(img, rot)
		}

		faces, err := t.cfg.Locator.Detect(ctx, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			return Result{}, &FaultError{Tier: t.cfg.Name, Locator: t.cfg.Locator.Name(), Input: input, Err: err}
		}

		face, ok := detection.Largest(faces)
		if !ok {
			continue
		}

		outcome := types.Outcome{
			Input:    input,
			Tier:     t.cfg.Name,
			Rotation: rot,
			Oriented: oriented,
			Face:     face,
		}

		thumb, region, err := t.cfg.Cropper.Crop(candidate, face)
		if err != nil {
			if errors.Is(err, cropper.ErrEmptyCrop) {
				outcome.Reason = types.ReasonEmptyCrop
				return Result{Outcome: outcome, Frame: candidate}, nil
			}
			return Result{}, fmt.Errorf("%s tier: crop %s: %w", t.cfg.Name, input, err)
		}

		outcome.Crop = region
		return Result{Outcome: outcome, Image: thumb, Frame: candidate}, nil
	}

	res := t.reject(input, types.ReasonNoFaceFound)
	res.Outcome.Oriented = oriented
	return res, nil
}

func (t *Tier) reject(input string, reason types.Reason) Result {
	return Result{Outcome: types.Outcome{Input: input, Tier: t.cfg.Name, Reason: reason}}
}
