// Package camera owns the video capture device for the finder loop.
package camera

import (
	"errors"
	"fmt"
)

// Config holds capture settings.
// Zero Width/Height/FPS leave the driver defaults in place.
type Config struct {
	// === Source ===
	Device int    `yaml:"device" json:"device"` // Capture device index (0 = default camera)
	File   string `yaml:"file" json:"file"`     // Video file path; overrides Device when set

	// === Format ===
	Width  int `yaml:"width" json:"width"`   // Requested frame width in pixels
	Height int `yaml:"height" json:"height"` // Requested frame height in pixels
	FPS    int `yaml:"fps" json:"fps"`       // Requested frame rate

	// Mirror flips frames horizontally before they reach the callback.
	// Useful for front-facing webcams.
	Mirror bool `yaml:"mirror" json:"mirror"`
}

// Capture limits
const (
	MaxWidth  = 7680
	MaxHeight = 4320
	MaxFPS    = 240
)

// DefaultConfig returns the default camera at driver resolution.
func DefaultConfig() Config {
	return Config{
		Device: 0,
		Width:  0,
		Height: 0,
		FPS:    0,
	}
}

// Validate checks if the config values are within valid ranges.
func (c Config) Validate() error {
	var errs []error

	if c.File == "" && c.Device < 0 {
		errs = append(errs, fmt.Errorf("device must be >= 0, got %d", c.Device))
	}
	if c.Width < 0 || c.Width > MaxWidth {
		errs = append(errs, fmt.Errorf("width must be between 0 and %d", MaxWidth))
	}
	if c.Height < 0 || c.Height > MaxHeight {
		errs = append(errs, fmt.Errorf("height must be between 0 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, errors.New("width and height must be set together"))
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("fps must be between 0 and %d", MaxFPS))
	}

	return errors.Join(errs...)
}

// Source names the capture source for logs.
func (c Config) Source() string {
	if c.File != "" {
		return c.File
	}
	return fmt.Sprintf("device %d", c.Device)
}
