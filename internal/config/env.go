// Package config provides configuration helpers for lasershark commands.
package config

import (
	"fmt"
	"os"
)

// Default endpoints.
const (
	DefaultHTTPAddr   = ":8080"
	DefaultSpheroPort = "/dev/rfcomm0"
	DefaultCamera     = "0"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// HTTPAddr returns the dashboard listen address from LASERSHARK_ADDR.
func HTTPAddr() string {
	return envOr("LASERSHARK_ADDR", DefaultHTTPAddr)
}

// SpheroPort returns the sphero serial device from SPHERO_PORT.
// Falls back to the provided default if not set.
func SpheroPort(defaultPort string) string {
	return envOr("SPHERO_PORT", defaultPort)
}

// SpheroPortRequired returns the sphero serial device from SPHERO_PORT.
// Exits if not set.
func SpheroPortRequired() string {
	port := os.Getenv("SPHERO_PORT")
	if port == "" {
		fmt.Fprintln(os.Stderr, "Error: SPHERO_PORT environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: SPHERO_PORT=/dev/rfcomm0 go run ./cmd/...")
		os.Exit(1)
	}
	return port
}

// CameraDevice returns the local capture device (index or file) from CAMERA_DEVICE.
func CameraDevice() string {
	return envOr("CAMERA_DEVICE", DefaultCamera)
}

// SignalURL returns the WebRTC signalling endpoint from SIGNAL_URL, if any.
func SignalURL() string {
	return os.Getenv("SIGNAL_URL")
}

// APIURL returns the dashboard API base URL for a host:port address.
func APIURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s", addr)
}
