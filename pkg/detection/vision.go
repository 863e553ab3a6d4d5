package detection

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/time/rate"

	"github.com/brunocoulet-rtm/portraits/pkg/client"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// FacePrompt is the default prompt for face location
const FacePrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- One entry per visible human face, in any orientation.
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- The box spans forehead to chin and ear to ear, tightly.
- confidence is your certainty in [0,1] that the box contains a real human face.
- If there is no face, return {"faces": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionConfig holds the parameters of a vision-model locator
type VisionConfig struct {
	Model         string
	Prompt        string
	MinConfidence float64
	// SendSize is the longest side of the image sent to the model; 0 sends it unscaled
	SendSize    int
	SendQuality int
	// RequestsPerSecond throttles model calls; 0 disables throttling
	RequestsPerSecond float64
}

// DefaultVisionConfig returns lenient parameters suited to the fallback tier
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		Prompt:            FacePrompt,
		MinConfidence:     0.6,
		SendSize:          1024,
		SendQuality:       85,
		RequestsPerSecond: 2,
	}
}

// VisionLocator asks a vision-language model for face boxes
type VisionLocator struct {
	client  client.VisionClient
	cfg     VisionConfig
	limiter *rate.Limiter
}

// NewVisionLocator creates a locator backed by a vision client
func NewVisionLocator(c client.VisionClient, cfg VisionConfig) *VisionLocator {
	if cfg.Prompt == "" {
		cfg.Prompt = FacePrompt
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &VisionLocator{client: c, cfg: cfg, limiter: limiter}
}

// Name implements Locator
func (l *VisionLocator) Name() string { return "vision:" + l.cfg.Model }

// Detect implements Locator
func (l *VisionLocator) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	imgB64, err := raster.EncodeBase64(img, "jpg", l.cfg.SendSize, l.cfg.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}

	analysis, err := l.client.LocateFaces(ctx, l.cfg.Model, l.cfg.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model %s: %w", l.cfg.Model, err)
	}

	bounds := img.Bounds()
	regions := make([]types.FaceRegion, 0, len(analysis.Faces))
	for _, f := range analysis.Faces {
		if f.Confidence < l.cfg.MinConfidence {
			continue
		}
		if region, ok := boxToRegion(normalizeBox(f.Box), bounds); ok {
			region.Score = f.Confidence
			regions = append(regions, region)
		}
	}
	return regions, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (l *VisionLocator) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := raster.EncodeBase64(img, "jpg", l.cfg.SendSize, l.cfg.SendQuality)
	if err != nil {
		return "", err
	}
	return l.client.SimpleQuery(ctx, l.cfg.Model, SimpleTestPrompt, imgB64)
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// boxToRegion converts a normalized box to pixels of the raster it was reported for
func boxToRegion(b types.Box, bounds image.Rectangle) (types.FaceRegion, bool) {
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())
	r := image.Rect(
		int(math.Round(b.X*fw)),
		int(math.Round(b.Y*fh)),
		int(math.Round((b.X+b.W)*fw)),
		int(math.Round((b.Y+b.H)*fh)),
	)
	return clipToBounds(r, bounds)
}
