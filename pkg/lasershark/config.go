// Package lasershark wires the tracker to its frame source, the sphero,
// the phone link and the dashboard, and runs them together.
package lasershark

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/teslashibe/lasershark/internal/config"
	"github.com/teslashibe/lasershark/pkg/camera"
	"github.com/teslashibe/lasershark/pkg/robot"
	"github.com/teslashibe/lasershark/pkg/sphero"
	"github.com/teslashibe/lasershark/pkg/tracking"
	"github.com/teslashibe/lasershark/pkg/video"
)

// Frame sources
const (
	SourceCamera = "camera" // local capture device through OpenCV
	SourcePhone  = "phone"  // JPEG frames pushed over /ws/phone
	SourceWebRTC = "webrtc" // H264 stream from a webrtcsink producer
)

// Config holds all configuration for the LaserShark application.
// Flag parsing is done in cmd/lasershark/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool
	// DebugTracking enables per-frame tracking traces.
	DebugTracking bool
	LogLevel      string

	// Dashboard
	HTTPAddr  string
	StaticDir string

	// Frames
	Source    string
	Camera    camera.Config
	SignalURL string // webrtc signalling server
	Producer  string // webrtc producer meta name

	// Overlay JPEGs pushed to /ws/camera per second; 0 disables the overlay.
	OverlayFPS int

	// Sphero. An empty port drives the ball through the connected phones.
	SpheroPort    string
	SpheroBaud    int
	StreamDivisor uint16
	DriveRate     time.Duration
	BlinkPeriod   time.Duration

	Tracking tracking.Config
}

// DefaultConfig returns sensible defaults for a phone-hosted session.
func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		HTTPAddr:      config.DefaultHTTPAddr,
		Source:        SourcePhone,
		Camera:        camera.DefaultConfig(),
		Producer:      video.DefaultProducer,
		OverlayFPS:    10,
		SpheroBaud:    sphero.DefaultPortOptions().BaudRate,
		StreamDivisor: 40, // 10 Hz attitude
		DriveRate:     robot.DefaultDriveRate,
		BlinkPeriod:   time.Second,
		Tracking:      tracking.DefaultConfig(),
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this before flag parsing so flags override the environment.
func (c *Config) LoadEnvConfig() {
	c.HTTPAddr = config.HTTPAddr()
	c.SpheroPort = config.SpheroPort(c.SpheroPort)
	c.Camera.Device = config.CameraDevice()
	if url := config.SignalURL(); url != "" {
		c.SignalURL = url
	}
	if src := os.Getenv("LASERSHARK_SOURCE"); src != "" {
		c.Source = src
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	if v, err := strconv.ParseFloat(os.Getenv("LASERSHARK_THROTTLE"), 64); err == nil {
		c.Tracking.Throttle = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Source {
	case SourcePhone:
	case SourceCamera:
		if errs := c.Camera.Validate(); len(errs) > 0 {
			return &ConfigError{Field: "Camera", Message: fmt.Sprintf("camera: %v", errs)}
		}
	case SourceWebRTC:
		if c.SignalURL == "" {
			return &ConfigError{Field: "SignalURL", Message: "SIGNAL_URL is required for the webrtc source"}
		}
	default:
		return &ConfigError{Field: "Source", Message: fmt.Sprintf("unknown frame source %q", c.Source)}
	}
	if c.OverlayFPS < 0 {
		return &ConfigError{Field: "OverlayFPS", Message: "overlay fps must not be negative"}
	}
	if c.StreamDivisor == 0 {
		return &ConfigError{Field: "StreamDivisor", Message: "stream divisor must be at least 1"}
	}
	if c.DriveRate <= 0 {
		return &ConfigError{Field: "DriveRate", Message: "drive rate must be positive"}
	}
	if err := c.Tracking.Validate(); err != nil {
		return &ConfigError{Field: "Tracking", Message: err.Error()}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
