// Package config provides configuration loading and management for the
// inpainting tool. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Inpainting parameters
	Inpaint struct {
		// Radius is the patch half-width; patches cover (2*radius+1)^2 pixels
		Radius int `yaml:"radius"`

		// Deterministic selects the explicit seed instead of platform entropy
		Deterministic bool `yaml:"deterministic"`

		// Seed is the random generator seed used when deterministic is set
		Seed uint64 `yaml:"seed"`
	} `yaml:"inpaint"`

	// Input handling parameters
	Input struct {
		// PrescaleWidth downscales inputs wider than this before inpainting;
		// 0 disables prescaling
		PrescaleWidth int `yaml:"prescaleWidth"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`

		// ComputeMetrics enables the quality metrics report after completion
		ComputeMetrics bool `yaml:"computeMetrics"`

		// SaveIntermediaryResults determines whether to save pyramid levels
		// and other intermediary images during processing
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is the directory where intermediary results are
		// saved; only used when SaveIntermediaryResults is true
		IntermediaryDir string `yaml:"intermediaryDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Inpaint.Radius = 2
	cfg.Inpaint.Deterministic = false
	cfg.Inpaint.Seed = 0

	cfg.Input.PrescaleWidth = 0

	cfg.Output.Verbose = true
	cfg.Output.ComputeMetrics = true
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"

	return cfg
}

// Validate checks the configuration for values the engine cannot use
func (c *Config) Validate() error {
	if c.Inpaint.Radius < 1 {
		return errors.Errorf("inpaint.radius must be at least 1, got %d", c.Inpaint.Radius)
	}
	if c.Input.PrescaleWidth < 0 {
		return errors.Errorf("input.prescaleWidth must not be negative, got %d", c.Input.PrescaleWidth)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
