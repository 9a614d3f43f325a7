package tracking

import (
	"fmt"
	"time"

	"github.com/teslashibe/lasershark/pkg/imaging"
	"github.com/teslashibe/lasershark/pkg/tracking/detection"
)

// Mode selects the ground point the sphero is steered toward
type Mode string

const (
	ModeBoresight Mode = "boresight" // screen centre projected to the ground
	ModeLaser     Mode = "laser"     // tracked laser dot
)

// Config holds all tunable parameters for the tracker
type Config struct {
	// Screen the tracker works in (frames are stretched to this size)
	ScreenWidth  int
	ScreenHeight int

	// Search windows (pixels, window side = 2*radius)
	BallRadius  int
	LaserRadius int

	// Detection
	BallDetector  detection.Kind
	LaserDetector detection.Kind
	CaptureFormat imaging.PixelFormat // initial window format, re-tagged per frame
	PeakThreshold float32             // 0 = always snap to the peak

	// Projection (degrees, feet)
	HFovHalf     float64
	VFovHalf     float64
	CameraHeight float64

	// Steering
	Throttle float64 // Speed while a plan is active (0-1)
	Mode     Mode

	// Timing
	FrameInterval time.Duration // Frame loop period for polling hosts
	TouchRate     float64       // Max touch gestures per second

	// Logging
	LogEvery uint64 // Trace one frame in N when tracking debug is on
}

// DefaultConfig returns the configuration the tracker ships with
func DefaultConfig() Config {
	return Config{
		ScreenWidth:  800,
		ScreenHeight: 480,

		BallRadius:  128,
		LaserRadius: 64,

		BallDetector:  detection.KindGradient,
		LaserDetector: detection.KindBlur,
		CaptureFormat: imaging.FormatBGRA,
		PeakThreshold: 0,

		HFovHalf:     27.7,
		VFovHalf:     19.0,
		CameraHeight: 5.0, // phone held at roughly chest height

		Throttle: 0.4,
		Mode:     ModeBoresight,

		FrameInterval: 33 * time.Millisecond, // ~30 fps
		TouchRate:     30,

		LogEvery: 30,
	}
}

// GatedConfig returns a configuration that freezes the laser window on weak
// peaks instead of chasing noise
func GatedConfig() Config {
	cfg := DefaultConfig()
	cfg.PeakThreshold = 0.5
	return cfg
}

// Screen returns the configured screen size
func (c Config) Screen() Size {
	return Size{W: c.ScreenWidth, H: c.ScreenHeight}
}

// Validate checks that every search window fits on the screen
func (c Config) Validate() error {
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		return fmt.Errorf("screen %dx%d: %w", c.ScreenWidth, c.ScreenHeight, imaging.ErrInvalidSize)
	}
	for name, r := range map[string]int{"ball": c.BallRadius, "laser": c.LaserRadius} {
		if r <= 0 {
			return fmt.Errorf("%s radius %d must be positive", name, r)
		}
		if 2*r >= c.ScreenWidth || 2*r >= c.ScreenHeight {
			return fmt.Errorf("%s window %d does not fit %dx%d", name, 2*r, c.ScreenWidth, c.ScreenHeight)
		}
	}
	if c.Throttle < 0 || c.Throttle > 1 {
		return fmt.Errorf("throttle %.2f out of range [0,1]", c.Throttle)
	}
	if c.CameraHeight <= 0 {
		return fmt.Errorf("camera height %.2f must be positive", c.CameraHeight)
	}
	switch c.Mode {
	case ModeBoresight, ModeLaser:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}
