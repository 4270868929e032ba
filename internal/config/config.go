// Package config provides configuration loading for the bubble tools server.
// It handles loading configuration from YAML files and provides default values
// matching the detection and fitting defaults of the analysis engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/bubble-tools-mcp/internal/detection"
	"github.com/ironsheep/bubble-tools-mcp/internal/errkind"
	"github.com/ironsheep/bubble-tools-mcp/internal/metrics"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Detection holds the default bubble detection parameters. Tool calls
	// override individual fields.
	Detection struct {
		// DP is the inverse accumulator resolution (1 = full resolution)
		DP float64 `yaml:"dp"`

		// MinDist is the minimum distance in pixels between bubble centers
		MinDist float64 `yaml:"minDist"`

		// Param1 is the upper Canny edge threshold
		Param1 float64 `yaml:"param1"`

		// Param2 is the accumulator vote threshold
		Param2 float64 `yaml:"param2"`

		// MinRadius and MaxRadius bound the searched radii, in processing-frame pixels
		MinRadius int `yaml:"minRadius"`
		MaxRadius int `yaml:"maxRadius"`

		// SpeedMode halves the image before detection
		SpeedMode bool `yaml:"speedMode"`

		// PixelsPerCm is the physical calibration of the photograph
		PixelsPerCm float64 `yaml:"pixelsPerCm"`

		// Enhance applies contrast equalisation and denoising before detection
		Enhance bool `yaml:"enhance"`
	} `yaml:"detection"`

	// Fitting parameters for the Sherwood correlation
	Fitting struct {
		// InitialGuess is the starting point (a, x1, x2) of the simplex search
		InitialGuess []float64 `yaml:"initialGuess"`

		// MaxIterations caps the number of simplex iterations
		MaxIterations int `yaml:"maxIterations"`

		// Tolerance is the absolute objective change below which the search
		// is considered converged
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"fitting"`

	Metrics struct {
		// HistogramBins is the number of bins in the size distribution
		HistogramBins int `yaml:"histogramBins"`
	} `yaml:"metrics"`

	Log struct {
		// Level is "info" or "debug"
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	d := detection.DefaultParameters()
	cfg.Detection.DP = d.DP
	cfg.Detection.MinDist = d.MinDist
	cfg.Detection.Param1 = d.Param1
	cfg.Detection.Param2 = d.Param2
	cfg.Detection.MinRadius = d.MinRadius
	cfg.Detection.MaxRadius = d.MaxRadius
	cfg.Detection.SpeedMode = d.SpeedMode
	cfg.Detection.PixelsPerCm = d.PixelsPerCm
	cfg.Detection.Enhance = d.Enhance

	cfg.Fitting.InitialGuess = []float64{1.0, 0.5, 0.33}
	cfg.Fitting.MaxIterations = 5000
	cfg.Fitting.Tolerance = 1e-12

	cfg.Metrics.HistogramBins = metrics.DefaultHistogramBins

	cfg.Log.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if err := c.DetectionParameters().Validate(); err != nil {
		return fmt.Errorf("detection section: %w", err)
	}
	if len(c.Fitting.InitialGuess) != 3 {
		return fmt.Errorf("fitting.initialGuess must have 3 values, got %d: %w",
			len(c.Fitting.InitialGuess), errkind.ErrInvalidConfiguration)
	}
	if c.Fitting.MaxIterations <= 0 {
		return fmt.Errorf("fitting.maxIterations must be positive: %w", errkind.ErrInvalidConfiguration)
	}
	if c.Fitting.Tolerance <= 0 {
		return fmt.Errorf("fitting.tolerance must be positive: %w", errkind.ErrInvalidConfiguration)
	}
	if c.Metrics.HistogramBins <= 0 {
		return fmt.Errorf("metrics.histogramBins must be positive: %w", errkind.ErrInvalidConfiguration)
	}
	return nil
}

// DetectionParameters returns the detection section as engine parameters.
func (c *Config) DetectionParameters() detection.Parameters {
	return detection.Parameters{
		DP:          c.Detection.DP,
		MinDist:     c.Detection.MinDist,
		Param1:      c.Detection.Param1,
		Param2:      c.Detection.Param2,
		MinRadius:   c.Detection.MinRadius,
		MaxRadius:   c.Detection.MaxRadius,
		SpeedMode:   c.Detection.SpeedMode,
		PixelsPerCm: c.Detection.PixelsPerCm,
		Enhance:     c.Detection.Enhance,
	}
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.Log.Level == "debug"
}
