package pipeline

import (
	"context"
	"errors"
	"image"

	"github.com/brunocoulet-rtm/portraits/internal/logging"
	"github.com/brunocoulet-rtm/portraits/pkg/normalize"
)

// Orchestrator chains the primary and fallback tiers for one file.
// Retryable primary rejections are handed to the fallback tier; everything else is final.
type Orchestrator struct {
	primary  *Tier
	fallback *Tier
}

// ErrNoTier is returned when both tiers are disabled
var ErrNoTier = errors.New("at least one tier is required")

// NewOrchestrator creates an orchestrator. Either tier may be nil to disable it, but not both.
func NewOrchestrator(primary, fallback *Tier) (*Orchestrator, error) {
	if primary == nil && fallback == nil {
		return nil, ErrNoTier
	}
	return &Orchestrator{primary: primary, fallback: fallback}, nil
}

// Process runs path to completion and returns its single terminal result
func (o *Orchestrator) Process(ctx context.Context, path string) (Result, error) {
	return o.process(path, func(t *Tier) (Result, error) {
		return t.Run(ctx, path)
	})
}

// ProcessImage runs an already decoded raster through the tiers. input only labels the outcome.
func (o *Orchestrator) ProcessImage(ctx context.Context, input string, img image.Image, orientation normalize.Orientation) (Result, error) {
	return o.process(input, func(t *Tier) (Result, error) {
		return t.RunImage(ctx, input, img, orientation)
	})
}

func (o *Orchestrator) process(input string, run func(*Tier) (Result, error)) (Result, error) {
	if o.primary == nil {
		return run(o.fallback)
	}

	res, err := run(o.primary)
	if err != nil {
		return Result{}, err
	}
	if res.Outcome.Success() || !res.Outcome.Reason.Retryable() || o.fallback == nil {
		return res, nil
	}

	logging.Debugf("%s: primary rejected (%s), retrying with %s tier", input, res.Outcome.Reason, o.fallback.Name())
	return run(o.fallback)
}
