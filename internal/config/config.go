// Package config loads qrfinder settings from defaults, an optional
// YAML file and QRFINDER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/go-qrfinder/pkg/camera"
	"github.com/teslashibe/go-qrfinder/pkg/detection"
	"github.com/teslashibe/go-qrfinder/pkg/display"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QRFINDER_"

// Config is the full set of qrfinder settings.
type Config struct {
	Camera   camera.Config    `yaml:"camera"`
	Detector detection.Config `yaml:"detector"`
	Display  Display          `yaml:"display"`
	Web      Web              `yaml:"web"`
	Log      Log              `yaml:"log"`
}

// Display controls the preview window.
type Display struct {
	Title    string `yaml:"title"`
	Headless bool   `yaml:"headless"`
}

// Web controls the optional dashboard. An empty Listen disables it.
type Web struct {
	Listen  string `yaml:"listen"`
	Quality int    `yaml:"quality"`
}

// Log controls verbosity.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Camera:   camera.DefaultConfig(),
		Detector: detection.DefaultConfig(),
		Display:  Display{Title: display.DefaultTitle},
		Web:      Web{Quality: 80},
		Log:      Log{Level: "info"},
	}
}

// Load returns defaults overlaid with the YAML file at path (if any)
// and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ApplyEnv overlays QRFINDER_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	if v, ok := lookup("DEVICE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDEVICE: %w", EnvPrefix, err))
		} else {
			c.Camera.Device = n
		}
	}
	if v, ok := lookup("FILE"); ok {
		c.Camera.File = v
	}
	if v, ok := lookup("PRESET"); ok {
		if err := c.Camera.ApplyPreset(v); err != nil {
			errs = append(errs, fmt.Errorf("%sPRESET: %w", EnvPrefix, err))
		}
	}
	if v, ok := lookup("MIRROR"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMIRROR: %w", EnvPrefix, err))
		} else {
			c.Camera.Mirror = b
		}
	}
	if v, ok := lookup("HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err))
		} else {
			c.Display.Headless = b
		}
	}
	if v, ok := lookup("LISTEN"); ok {
		c.Web.Listen = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	return errors.Join(errs...)
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error

	if err := c.Camera.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("camera: %w", err))
	}
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if c.Web.Quality < 1 || c.Web.Quality > 100 {
		errs = append(errs, fmt.Errorf("web: quality must be between 1 and 100, got %d", c.Web.Quality))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log: level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// lookup reads a non-empty QRFINDER_* variable.
func lookup(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}
