// Package config provides configuration loading and management for dicomvolume.
// It handles loading configuration from YAML or TOML files, environment
// overrides, and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "DICOMVOLUME_"

// LevelSpec declares one isosurface threshold and the tissue class it stands for
type LevelSpec struct {
	// Value is the normalized density level in (0, 1)
	Value float64 `yaml:"value" toml:"value"`

	// Label names the tissue density class
	Label string `yaml:"label" toml:"label"`

	// Color is a #RRGGBB hex string applied uniformly to the mesh
	Color string `yaml:"color" toml:"color"`
}

// Config represents the application configuration
type Config struct {
	// Processing parameters
	Processing struct {
		// MinSeriesSlices is the smallest series that gets a volume
		MinSeriesSlices int `yaml:"minSeriesSlices" toml:"min_series_slices"`

		// MaxVoxels caps depth*height*width of a single volume
		MaxVoxels int `yaml:"maxVoxels" toml:"max_voxels"`

		// Workers is the number of series processed concurrently
		Workers int `yaml:"workers" toml:"workers"`
	} `yaml:"processing" toml:"processing"`

	// Isosurface parameters
	Isosurface struct {
		// Levels is the ordered threshold table
		Levels []LevelSpec `yaml:"levels" toml:"levels"`
	} `yaml:"isosurface" toml:"isosurface"`

	// Output parameters
	Output struct {
		// Dir receives image, tensor, mesh and text files; empty disables file output
		Dir string `yaml:"dir" toml:"dir"`

		// LogFile receives a JSON copy of the log
		LogFile string `yaml:"logFile" toml:"log_file"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`

		// WaitForExit asks for Enter before the program exits
		WaitForExit bool `yaml:"waitForExit" toml:"wait_for_exit"`
	} `yaml:"output" toml:"output"`
}

// DefaultLevels is the three-level tissue table used when none is configured.
func DefaultLevels() []LevelSpec {
	return []LevelSpec{
		{Value: 0.3, Label: "soft tissue", Color: "#ff0000"},
		{Value: 0.5, Label: "dense tissue", Color: "#00ff00"},
		{Value: 0.7, Label: "bone", Color: "#0000ff"},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.MinSeriesSlices = 2
	cfg.Processing.MaxVoxels = 512 * 512 * 1024
	cfg.Processing.Workers = 1

	cfg.Isosurface.Levels = DefaultLevels()

	cfg.Output.LogFile = "dicom_analysis.log"
	cfg.Output.Verbose = false
	cfg.Output.WaitForExit = true

	return cfg
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Processing.MinSeriesSlices < 2 {
		return fmt.Errorf("minSeriesSlices must be at least 2, got %d", c.Processing.MinSeriesSlices)
	}
	if c.Processing.MaxVoxels <= 0 {
		return fmt.Errorf("maxVoxels must be positive, got %d", c.Processing.MaxVoxels)
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Processing.Workers)
	}
	if len(c.Isosurface.Levels) == 0 {
		return fmt.Errorf("at least one isosurface level is required")
	}
	seen := make(map[float64]bool)
	for i, l := range c.Isosurface.Levels {
		if l.Value <= 0 || l.Value >= 1 {
			return fmt.Errorf("level %d: value %v outside (0, 1)", i, l.Value)
		}
		if seen[l.Value] {
			return fmt.Errorf("level %d: duplicate value %v", i, l.Value)
		}
		seen[l.Value] = true
		if strings.TrimSpace(l.Label) == "" {
			return fmt.Errorf("level %d: label is required", i)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Decoders may append to an existing slice; a file that lists levels
	// replaces the default table instead of extending it.
	cfg.Isosurface.Levels = nil
	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(cfg.Isosurface.Levels) == 0 {
		cfg.Isosurface.Levels = DefaultLevels()
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ApplyEnv applies DICOMVOLUME_* variables on top of cfg. Settings whose
// flag name is in changed were given on the command line and are left alone.
func ApplyEnv(cfg *Config, changed map[string]bool, getenv func(string) string) error {
	s := &envSetter{changed: changed, getenv: getenv}

	s.setString("out", "OUTPUT_DIR", &cfg.Output.Dir)
	s.setString("log-file", "LOG_FILE", &cfg.Output.LogFile)
	s.setBool("verbose", "VERBOSE", &cfg.Output.Verbose)
	if err := s.setInt("workers", "WORKERS", &cfg.Processing.Workers); err != nil {
		return err
	}
	if err := s.setInt("max-voxels", "MAX_VOXELS", &cfg.Processing.MaxVoxels); err != nil {
		return err
	}
	return nil
}

// envSetter applies environment values while respecting flag precedence.
type envSetter struct {
	changed map[string]bool
	getenv  func(string) string
}

func (s *envSetter) lookup(flag, key string) string {
	if s.changed[flag] {
		return ""
	}
	return s.getenv(EnvPrefix + key)
}

func (s *envSetter) setString(flag, key string, dst *string) {
	if v := s.lookup(flag, key); v != "" {
		*dst = v
	}
}

func (s *envSetter) setBool(flag, key string, dst *bool) {
	if v := s.lookup(flag, key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func (s *envSetter) setInt(flag, key string, dst *int) error {
	v := s.lookup(flag, key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
	}
	if i > 0 {
		*dst = i
	}
	return nil
}
