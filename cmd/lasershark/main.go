// LaserShark - steer a sphero toward a laser dot (or the camera boresight)
// seen through a phone or local camera
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	applog "github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/lasershark"
	"github.com/teslashibe/lasershark/pkg/tracking"
)

func main() {
	cfg := parseFlags()
	applog.Init(cfg.LogLevel)

	app, err := lasershark.New(cfg)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Printf("❌ Runtime error: %v", err)
	}
}

// parseFlags parses command line flags on top of environment configuration.
func parseFlags() lasershark.Config {
	cfg := lasershark.DefaultConfig()
	cfg.LoadEnvConfig()

	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&cfg.DebugTracking, "debug-tracking", false, "Log per-frame tracking traces")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "Dashboard listen address (overrides LASERSHARK_ADDR)")
	flag.StringVar(&cfg.StaticDir, "static", "", "Directory served at / (dashboard UI)")

	flag.StringVar(&cfg.Source, "source", cfg.Source, "Frame source: phone, camera, webrtc")
	flag.StringVar(&cfg.Camera.Device, "camera", cfg.Camera.Device, "Camera index, path or URL (overrides CAMERA_DEVICE)")
	flag.IntVar(&cfg.Camera.Width, "width", cfg.Camera.Width, "Capture width")
	flag.IntVar(&cfg.Camera.Height, "height", cfg.Camera.Height, "Capture height")
	flag.IntVar(&cfg.Camera.Framerate, "fps", cfg.Camera.Framerate, "Capture frame rate")
	flag.BoolVar(&cfg.Camera.Mirror, "mirror", cfg.Camera.Mirror, "Mirror frames horizontally")
	flag.StringVar(&cfg.SignalURL, "signal", cfg.SignalURL, "WebRTC signalling URL (overrides SIGNAL_URL)")
	flag.StringVar(&cfg.Producer, "producer", cfg.Producer, "WebRTC producer name")
	flag.IntVar(&cfg.OverlayFPS, "overlay-fps", cfg.OverlayFPS, "Overlay frames per second on /ws/camera (0 disables)")

	flag.StringVar(&cfg.SpheroPort, "sphero", cfg.SpheroPort, "Sphero serial port (overrides SPHERO_PORT); empty steers through the phone")
	flag.IntVar(&cfg.SpheroBaud, "baud", cfg.SpheroBaud, "Sphero baud rate")
	flag.DurationVar(&cfg.DriveRate, "drive-rate", cfg.DriveRate, "Drive command interval")

	flag.Float64Var(&cfg.Tracking.Throttle, "throttle", cfg.Tracking.Throttle, "Drive speed while armed (0-1)")
	flag.Float64Var(&cfg.Tracking.CameraHeight, "camera-height", cfg.Tracking.CameraHeight, "Camera height above the ground (feet)")
	mode := flag.String("mode", string(cfg.Tracking.Mode), "Steering reference: boresight or laser")
	gated := flag.Bool("gated", false, "Freeze windows on weak peaks")
	divisor := flag.Uint("stream-divisor", uint(cfg.StreamDivisor), "Attitude stream divisor (400/N Hz)")

	flag.Parse()

	if *gated {
		cfg.Tracking.PeakThreshold = tracking.GatedConfig().PeakThreshold
	}
	cfg.Tracking.Mode = tracking.Mode(*mode)
	cfg.StreamDivisor = uint16(*divisor)
	if cfg.Debug && cfg.LogLevel == "info" {
		cfg.LogLevel = "debug"
	}
	return cfg
}
