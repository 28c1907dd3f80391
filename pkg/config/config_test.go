package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.MinSeriesSlices != 2 {
		t.Errorf("Expected MinSeriesSlices 2, got %d", cfg.Processing.MinSeriesSlices)
	}
	if cfg.Processing.Workers != 1 {
		t.Errorf("Expected sequential default, got %d workers", cfg.Processing.Workers)
	}
	if len(cfg.Isosurface.Levels) != 3 {
		t.Fatalf("Expected 3 default levels, got %d", len(cfg.Isosurface.Levels))
	}
	want := []float64{0.3, 0.5, 0.7}
	for i, l := range cfg.Isosurface.Levels {
		if l.Value != want[i] {
			t.Errorf("Level %d: expected %v, got %v", i, want[i], l.Value)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"min slices", func(c *Config) { c.Processing.MinSeriesSlices = 1 }, "minSeriesSlices"},
		{"max voxels", func(c *Config) { c.Processing.MaxVoxels = 0 }, "maxVoxels"},
		{"workers", func(c *Config) { c.Processing.Workers = 0 }, "workers"},
		{"no levels", func(c *Config) { c.Isosurface.Levels = nil }, "at least one"},
		{"level range", func(c *Config) { c.Isosurface.Levels[0].Value = 1.2 }, "outside"},
		{"duplicate level", func(c *Config) { c.Isosurface.Levels[1].Value = 0.3 }, "duplicate"},
		{"blank label", func(c *Config) { c.Isosurface.Levels[2].Label = " " }, "label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.MaxVoxels != DefaultConfig().Processing.MaxVoxels {
		t.Error("Expected defaults for a missing file")
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
processing:
  workers: 3
isosurface:
  levels:
    - value: 0.25
      label: fat
      color: "#ffff00"
output:
  dir: /tmp/out
  verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Processing.Workers)
	}
	if cfg.Processing.MinSeriesSlices != 2 {
		t.Errorf("Unset fields should keep defaults, got %d", cfg.Processing.MinSeriesSlices)
	}
	if len(cfg.Isosurface.Levels) != 1 || cfg.Isosurface.Levels[0].Label != "fat" {
		t.Errorf("Expected single fat level, got %+v", cfg.Isosurface.Levels)
	}
	if cfg.Output.Dir != "/tmp/out" || !cfg.Output.Verbose {
		t.Errorf("Unexpected output section: %+v", cfg.Output)
	}
}

func TestSaveAndLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Processing.Workers = 2
	cfg.Output.Dir = "render"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[processing]") {
		t.Errorf("Expected TOML table header, got:\n%s", data)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.Workers != 2 || loaded.Output.Dir != "render" {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
	if len(loaded.Isosurface.Levels) != 3 || loaded.Isosurface.Levels[2].Label != "bone" {
		t.Errorf("Round trip lost levels: %+v", loaded.Isosurface.Levels)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("processing: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DICOMVOLUME_OUTPUT_DIR": "/env/out",
		"DICOMVOLUME_WORKERS":    "4",
		"DICOMVOLUME_VERBOSE":    "1",
		"DICOMVOLUME_LOG_FILE":   "env.log",
	}
	getenv := func(k string) string { return env[k] }

	cfg := DefaultConfig()
	cfg.Output.Dir = "/flag/out"
	if err := ApplyEnv(cfg, map[string]bool{"out": true}, getenv); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Output.Dir != "/flag/out" {
		t.Errorf("Changed flag should win over env, got %q", cfg.Output.Dir)
	}
	if cfg.Processing.Workers != 4 {
		t.Errorf("Expected 4 workers from env, got %d", cfg.Processing.Workers)
	}
	if !cfg.Output.Verbose {
		t.Error("Expected verbose from env")
	}
	if cfg.Output.LogFile != "env.log" {
		t.Errorf("Expected env log file, got %q", cfg.Output.LogFile)
	}

	env["DICOMVOLUME_WORKERS"] = "many"
	if err := ApplyEnv(cfg, nil, getenv); err == nil {
		t.Error("Expected parse error for non-numeric workers")
	}
}
