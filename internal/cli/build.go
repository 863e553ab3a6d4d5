package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/brunocoulet-rtm/portraits/internal/config"
	"github.com/brunocoulet-rtm/portraits/pkg/cropper"
	"github.com/brunocoulet-rtm/portraits/pkg/detection"
	"github.com/brunocoulet-rtm/portraits/pkg/llamacpp"
	"github.com/brunocoulet-rtm/portraits/pkg/ollama"
	"github.com/brunocoulet-rtm/portraits/pkg/pipeline"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
	"github.com/brunocoulet-rtm/portraits/pkg/storage"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// locatorSet builds each named detector at most once so both tiers can share it
type locatorSet struct {
	cfg     *config.Config
	built   map[string]detection.Locator
	closers []io.Closer
}

func newLocatorSet(c *config.Config) *locatorSet {
	return &locatorSet{cfg: c, built: make(map[string]detection.Locator)}
}

func (s *locatorSet) get(name string) (detection.Locator, error) {
	if l, ok := s.built[name]; ok {
		return l, nil
	}
	d, ok := s.cfg.Detectors[name]
	if !ok {
		return nil, fmt.Errorf("detector %q is not configured", name)
	}
	l, err := newLocator(d)
	if err != nil {
		return nil, fmt.Errorf("detector %q: %w", name, err)
	}
	if c, ok := l.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	s.built[name] = l
	return l, nil
}

func (s *locatorSet) Close() {
	for _, c := range s.closers {
		c.Close()
	}
	s.closers = nil
}

// newLocator creates the back-end for one detector entry; zero fields keep the back-end defaults
func newLocator(d config.DetectorConfig) (detection.Locator, error) {
	switch d.Kind {
	case config.KindPigo:
		pc := detection.DefaultPigoConfig()
		pc.CascadePath = d.Cascade
		setInt(&pc.MinSize, d.MinSize)
		setInt(&pc.MaxSize, d.MaxSize)
		setInt(&pc.MaxDimension, d.MaxDimension)
		setFloat(&pc.ShiftFactor, d.ShiftFactor)
		setFloat(&pc.ScaleFactor, d.ScaleFactor)
		setFloat(&pc.IoUThreshold, d.IoUThreshold)
		if d.MinQuality > 0 {
			pc.MinQuality = float32(d.MinQuality)
		}
		return detection.NewPigoLocator(pc)

	case config.KindHaar:
		hc := detection.DefaultHaarConfig()
		hc.CascadePath = d.Cascade
		setFloat(&hc.ScaleFactor, d.ScaleFactor)
		setInt(&hc.MinNeighbors, d.MinNeighbors)
		setInt(&hc.MinSize, d.MinSize)
		return detection.NewHaarLocator(hc)

	case config.KindOllama, config.KindLlamaCpp:
		timeout := time.Duration(d.TimeoutSeconds) * time.Second
		vc := detection.DefaultVisionConfig()
		vc.Model = d.Model
		setFloat(&vc.MinConfidence, d.MinConfidence)
		setInt(&vc.SendSize, d.SendSize)
		setInt(&vc.SendQuality, d.SendQuality)
		setFloat(&vc.RequestsPerSecond, d.RequestsPerSecond)

		if d.Kind == config.KindOllama {
			c, err := ollama.NewClient(d.URL, timeout)
			if err != nil {
				return nil, fmt.Errorf("failed to create Ollama client: %w", err)
			}
			return detection.NewVisionLocator(c, vc), nil
		}
		c, err := llamacpp.NewClient(d.URL, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return detection.NewVisionLocator(c, vc), nil

	case config.KindSaliency:
		sc := detection.DefaultSaliencyConfig()
		setFloat(&sc.SubjectScale, d.SubjectScale)
		return detection.NewSaliencyLocator(sc), nil
	}
	return nil, fmt.Errorf("unknown detector kind %q", d.Kind)
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// buildTier returns nil for a disabled tier
func buildTier(name types.Tier, tc config.TierConfig, c *config.Config, locators *locatorSet) (*pipeline.Tier, error) {
	if !tc.Enabled {
		return nil, nil
	}
	loc, err := locators.get(tc.Detector)
	if err != nil {
		return nil, fmt.Errorf("%s tier: %w", name, err)
	}
	strategy, err := cropper.ParseStrategy(tc.Crop.Strategy, tc.Crop.MarginTop, tc.Crop.MarginBottom, tc.Crop.Padding)
	if err != nil {
		return nil, fmt.Errorf("%s tier: %w", name, err)
	}
	return pipeline.NewTier(pipeline.TierConfig{
		Name:             name,
		Locator:          loc,
		Cropper:          cropper.New(strategy, c.Output.Width, c.Output.Height),
		ApplyOrientation: tc.ApplyOrientation,
		QualityGate:      tc.QualityGate,
		MarginFraction:   c.Quality.MarginFraction,
		WhiteThreshold:   c.Quality.WhiteThreshold,
		AspectCorrection: tc.AspectCorrection,
		RotationSearch:   tc.RotationSearch,
	})
}

// buildOrchestrator wires both tiers. The returned function releases detector resources.
func buildOrchestrator(c *config.Config) (*pipeline.Orchestrator, func(), error) {
	locators := newLocatorSet(c)
	primary, err := buildTier(types.TierPrimary, c.Primary, c, locators)
	if err != nil {
		locators.Close()
		return nil, nil, err
	}
	fallback, err := buildTier(types.TierFallback, c.Fallback, c, locators)
	if err != nil {
		locators.Close()
		return nil, nil, err
	}
	o, err := pipeline.NewOrchestrator(primary, fallback)
	if err != nil {
		locators.Close()
		return nil, nil, err
	}
	return o, locators.Close, nil
}

func buildBuckets(c *config.Config) (*storage.Buckets, error) {
	mode, err := storage.ParseMode(c.Storage.Mode)
	if err != nil {
		return nil, err
	}
	b, err := storage.New(c.Storage.Input, c.Storage.Accepted, c.Storage.Rejected, mode, raster.SaveOptions{
		Format:   c.Output.Format,
		Quality:  c.Output.Quality,
		Lossless: c.Output.Lossless,
	})
	if err != nil {
		return nil, err
	}
	b.Recursive = c.Storage.Recursive
	return b, nil
}
