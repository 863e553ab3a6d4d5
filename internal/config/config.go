package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Detector kinds
const (
	KindPigo     = "pigo"
	KindHaar     = "haar"
	KindOllama   = "ollama"
	KindLlamaCpp = "llamacpp"
	KindSaliency = "saliency"
)

// Config holds the application configuration
type Config struct {
	Primary   TierConfig                `json:"primary" yaml:"primary"`
	Fallback  TierConfig                `json:"fallback" yaml:"fallback"`
	Detectors map[string]DetectorConfig `json:"detectors" yaml:"detectors"`
	Quality   QualityConfig             `json:"quality" yaml:"quality"`
	Output    OutputConfig              `json:"output" yaml:"output"`
	Storage   StorageConfig             `json:"storage" yaml:"storage"`
	Batch     BatchConfig               `json:"batch" yaml:"batch"`
	Logging   LoggingConfig             `json:"logging" yaml:"logging"`
}

// TierConfig holds the stages enabled for one tier and the detector it uses
type TierConfig struct {
	Enabled          bool       `json:"enabled" yaml:"enabled"`
	Detector         string     `json:"detector" yaml:"detector"`
	Crop             CropConfig `json:"crop" yaml:"crop"`
	ApplyOrientation bool       `json:"apply_orientation" yaml:"apply_orientation"`
	QualityGate      bool       `json:"quality_gate" yaml:"quality_gate"`
	AspectCorrection bool       `json:"aspect_correction" yaml:"aspect_correction"`
	RotationSearch   bool       `json:"rotation_search" yaml:"rotation_search"`
}

// CropConfig selects a crop strategy and its margins
type CropConfig struct {
	Strategy     string  `json:"strategy" yaml:"strategy"`
	MarginTop    float64 `json:"margin_top" yaml:"margin_top"`
	MarginBottom float64 `json:"margin_bottom" yaml:"margin_bottom"`
	Padding      float64 `json:"padding" yaml:"padding"`
}

// DetectorConfig describes one named face detector. Which fields apply depends on Kind.
type DetectorConfig struct {
	Kind string `json:"kind" yaml:"kind"`

	// pigo and haar
	Cascade      string  `json:"cascade,omitempty" yaml:"cascade,omitempty"`
	MinSize      int     `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize      int     `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	ScaleFactor  float64 `json:"scale_factor,omitempty" yaml:"scale_factor,omitempty"`
	ShiftFactor  float64 `json:"shift_factor,omitempty" yaml:"shift_factor,omitempty"`
	IoUThreshold float64 `json:"iou_threshold,omitempty" yaml:"iou_threshold,omitempty"`
	MinQuality   float64 `json:"min_quality,omitempty" yaml:"min_quality,omitempty"`
	MaxDimension int     `json:"max_dimension,omitempty" yaml:"max_dimension,omitempty"`
	MinNeighbors int     `json:"min_neighbors,omitempty" yaml:"min_neighbors,omitempty"`

	// ollama and llamacpp
	URL               string  `json:"url,omitempty" yaml:"url,omitempty"`
	Model             string  `json:"model,omitempty" yaml:"model,omitempty"`
	MinConfidence     float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	SendSize          int     `json:"send_size,omitempty" yaml:"send_size,omitempty"`
	SendQuality       int     `json:"send_quality,omitempty" yaml:"send_quality,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	TimeoutSeconds    int     `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// saliency
	SubjectScale float64 `json:"subject_scale,omitempty" yaml:"subject_scale,omitempty"`
}

// QualityConfig holds the white-pixel gate parameters
type QualityConfig struct {
	MarginFraction float64 `json:"margin_fraction" yaml:"margin_fraction"`
	WhiteThreshold float64 `json:"white_threshold" yaml:"white_threshold"`
}

// OutputConfig holds configuration for thumbnail generation
type OutputConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Format is jpg, png or webp; empty keeps the input's format
	Format   string `json:"format" yaml:"format"`
	Quality  int    `json:"quality" yaml:"quality"`
	Lossless bool   `json:"lossless" yaml:"lossless"`
}

// StorageConfig holds the bucket directories and how originals are placed
type StorageConfig struct {
	Input     string `json:"input" yaml:"input"`
	Accepted  string `json:"accepted" yaml:"accepted"`
	Rejected  string `json:"rejected" yaml:"rejected"`
	Mode      string `json:"mode" yaml:"mode"`
	Recursive bool   `json:"recursive" yaml:"recursive"`
}

// BatchConfig holds batch run options
type BatchConfig struct {
	Workers      int  `json:"workers" yaml:"workers"`
	FailOnReject bool `json:"fail_on_reject" yaml:"fail_on_reject"`
}

// LoggingConfig holds log output options
type LoggingConfig struct {
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
	Verbose    bool   `json:"verbose" yaml:"verbose"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Primary: TierConfig{
			Enabled:          true,
			Detector:         "cascade",
			Crop:             CropConfig{Strategy: "margin_split", MarginTop: 0.2, MarginBottom: 0.2},
			ApplyOrientation: true,
		},
		Fallback: TierConfig{
			Enabled:          true,
			Detector:         "vision",
			Crop:             CropConfig{Strategy: "uniform_pad", Padding: 0.2},
			ApplyOrientation: true,
			QualityGate:      true,
			AspectCorrection: true,
			RotationSearch:   true,
		},
		Detectors: map[string]DetectorConfig{
			"cascade": {
				Kind:         KindPigo,
				MinSize:      60,
				ScaleFactor:  1.1,
				ShiftFactor:  0.1,
				IoUThreshold: 0.2,
				MinQuality:   5.0,
				MaxDimension: 1200,
			},
			"cascade-lenient": {
				Kind:         KindPigo,
				MinSize:      30,
				ScaleFactor:  1.05,
				ShiftFactor:  0.05,
				IoUThreshold: 0.2,
				MinQuality:   2.0,
				MaxDimension: 1600,
			},
			"haar": {
				Kind:         KindHaar,
				Cascade:      "cascade/haarcascade_frontalface_default.xml",
				ScaleFactor:  1.1,
				MinNeighbors: 5,
				MinSize:      60,
			},
			"vision": {
				Kind:              KindOllama,
				URL:               "http://localhost:11434",
				Model:             "openbmb/minicpm-v4.5",
				MinConfidence:     0.6,
				SendSize:          1024,
				SendQuality:       85,
				RequestsPerSecond: 2,
				TimeoutSeconds:    300,
			},
			"vision-llamacpp": {
				Kind:              KindLlamaCpp,
				URL:               "http://localhost:8080",
				Model:             "openbmb/minicpm-v4.5",
				MinConfidence:     0.6,
				SendSize:          1024,
				SendQuality:       85,
				RequestsPerSecond: 2,
				TimeoutSeconds:    300,
			},
			"saliency": {
				Kind:         KindSaliency,
				SubjectScale: 0.5,
			},
		},
		Quality: QualityConfig{
			MarginFraction: 0.1,
			WhiteThreshold: 0.30,
		},
		Output: OutputConfig{
			Width:   192,
			Height:  248,
			Quality: 90,
		},
		Storage: StorageConfig{
			Input:    "./input",
			Accepted: "./accepted",
			Rejected: "./rejected",
			Mode:     "copy",
		},
		Batch: BatchConfig{
			Workers: 1,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
		},
	}
}

func isYAML(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFromFile loads configuration from a YAML (.yaml, .yml) or JSON file.
// Values missing from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a file, as YAML or JSON depending on the extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Primary.Enabled && !c.Fallback.Enabled {
		return fmt.Errorf("at least one of primary and fallback must be enabled")
	}
	for _, tier := range []struct {
		name string
		cfg  TierConfig
	}{{"primary", c.Primary}, {"fallback", c.Fallback}} {
		if !tier.cfg.Enabled {
			continue
		}
		if err := c.validateTier(tier.name, tier.cfg); err != nil {
			return err
		}
	}

	for name, d := range c.Detectors {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("detectors.%s: %w", name, err)
		}
	}

	if c.Quality.MarginFraction < 0 || c.Quality.MarginFraction >= 0.5 {
		return fmt.Errorf("quality.margin_fraction must be in [0, 0.5)")
	}
	if c.Quality.WhiteThreshold < 0 || c.Quality.WhiteThreshold > 1 {
		return fmt.Errorf("quality.white_threshold must be between 0 and 1")
	}

	if c.Output.Width < 1 || c.Output.Height < 1 {
		return fmt.Errorf("output.width and output.height must be positive")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be jpg, png or webp")
	}

	switch c.Storage.Mode {
	case "", "copy", "move":
	default:
		return fmt.Errorf("storage.mode must be copy or move")
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers cannot be negative")
	}
	return nil
}

func (c *Config) validateTier(name string, t TierConfig) error {
	if t.Detector == "" {
		return fmt.Errorf("%s.detector is required", name)
	}
	if _, ok := c.Detectors[t.Detector]; !ok {
		return fmt.Errorf("%s.detector %q is not defined under detectors", name, t.Detector)
	}
	switch t.Crop.Strategy {
	case "", "margin_split", "uniform_pad":
	default:
		return fmt.Errorf("%s.crop.strategy must be margin_split or uniform_pad", name)
	}
	if t.Crop.MarginTop < 0 || t.Crop.MarginBottom < 0 || t.Crop.Padding < 0 {
		return fmt.Errorf("%s.crop margins cannot be negative", name)
	}
	return nil
}

// Validate checks the fields required by the detector kind
func (d DetectorConfig) Validate() error {
	switch d.Kind {
	case KindPigo:
		// an empty cascade selects the bundled facefinder
	case KindHaar:
		if d.Cascade == "" {
			return fmt.Errorf("%s detector needs a cascade file", d.Kind)
		}
	case KindOllama, KindLlamaCpp:
		if d.URL == "" || d.Model == "" {
			return fmt.Errorf("%s detector needs url and model", d.Kind)
		}
		if d.MinConfidence < 0 || d.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1")
		}
	case KindSaliency:
		if d.SubjectScale < 0 || d.SubjectScale > 1 {
			return fmt.Errorf("subject_scale must be between 0 and 1")
		}
	default:
		return fmt.Errorf("unknown detector kind %q", d.Kind)
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./portraits.yaml"
	}
	return filepath.Join(home, ".config", "portraits", "config.yaml")
}
