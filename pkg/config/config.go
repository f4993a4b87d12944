// Package config provides configuration loading and management for ptxshim.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Solver parameters
	Solver struct {
		// Tolerance is the relative residual tolerance of the
		// least-squares solve
		Tolerance float64 `yaml:"tolerance"`

		// MaxIterations caps the outer solver loop
		MaxIterations int `yaml:"maxIterations"`

		// InnerIterations caps the nested least-squares solve of the
		// magnitude method
		InnerIterations int `yaml:"innerIterations"`

		// InnerTolerance is the relative tolerance of the nested solve
		InnerTolerance float64 `yaml:"innerTolerance"`
	} `yaml:"solver"`

	// Shim parameters
	Shim struct {
		// Mode selects slice coupling: "joint" or "perslice"
		Mode string `yaml:"mode"`

		// Workers caps concurrent per-slice solves
		Workers int `yaml:"workers"`

		// MaskThreshold is the fraction of the maximum intensity at
		// which a magnitude image is binarized into a support mask
		MaskThreshold float64 `yaml:"maskThreshold"`

		// TargetValue is the desired field magnitude inside the mask
		TargetValue float64 `yaml:"targetValue"`
	} `yaml:"shim"`

	// Output parameters
	Output struct {
		// SaveFieldMaps determines whether per-slice field magnitude
		// images are written after the solve
		SaveFieldMaps bool `yaml:"saveFieldMaps"`

		// FieldMapDir is the directory for field magnitude images
		FieldMapDir string `yaml:"fieldMapDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default solver parameters
	cfg.Solver.Tolerance = 1e-6
	cfg.Solver.MaxIterations = 100
	cfg.Solver.InnerIterations = 10
	cfg.Solver.InnerTolerance = 1e-8

	// Set default shim parameters
	cfg.Shim.Mode = "joint"
	cfg.Shim.Workers = runtime.NumCPU() // One solve per core at most
	cfg.Shim.MaskThreshold = 0.5
	cfg.Shim.TargetValue = 1.0

	// Set default output parameters
	cfg.Output.SaveFieldMaps = false
	cfg.Output.FieldMapDir = "field_maps"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
