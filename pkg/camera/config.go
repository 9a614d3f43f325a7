// Package camera describes where frames come from: capture settings that
// can be changed at runtime, named presets, and the Source interface the
// frame loop reads from.
package camera

import (
	"fmt"
	"strings"

	"github.com/teslashibe/lasershark/pkg/imaging"
)

// Config holds the capture configuration. It can be modified through the
// Manager at runtime.
type Config struct {
	// Device is a V4L2 index ("0"), a device path or a stream URL.
	Device string `json:"device"`

	// === Resolution ===
	// Frames are resized to Width x Height before tracking; the tracker's
	// screen follows this size.
	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // Overlay JPEG quality 1-100

	// Format is the pixel layout handed to the tracker: "bgra" or "rgba".
	Format string `json:"format"`

	// Mirror flips frames horizontally (front-facing cameras).
	Mirror bool `json:"mirror"`
}

// Limits
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxFramerate = 60
)

// DefaultConfig returns the phone-screen sized configuration the tracker
// was tuned for.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     800,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		Format:    "bgra",
	}
}

// PixelFormat returns the tracker pixel format for Format.
func (c Config) PixelFormat() (imaging.PixelFormat, error) {
	f, err := imaging.ParseFormat(c.Format)
	if err != nil {
		return imaging.FormatUnknown, err
	}
	if f.Channels() != 4 {
		return imaging.FormatUnknown, fmt.Errorf("capture format %q: %w", c.Format, imaging.ErrUnsupportedFormat)
	}
	return f, nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if strings.TrimSpace(c.Device) == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if _, err := c.PixelFormat(); err != nil {
		errors = append(errors, "format must be bgra or rgba")
	}

	return errors
}

// Capabilities returns what the capture path supports.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"min_width":     MinWidth,
		"min_height":    MinHeight,
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"formats":       []string{"bgra", "rgba"},
		"presets":       PresetNames(),
	}
}
