// Package robot drives the sphero from the tracker's steering output.
//
// The sphero is reached through small interfaces that can be composed as
// needed. Consumers depend only on the ones they use, so tests swap in a
// recording mock.
package robot

import (
	"context"

	"github.com/teslashibe/lasershark/pkg/sphero"
)

// Roller moves the ball.
type Roller interface {
	Roll(ctx context.Context, heading int, speed float64) error
	Stop(ctx context.Context) error
}

// LEDController sets the main and tail lights.
type LEDController interface {
	SetRGB(ctx context.Context, r, g, b byte) error
	SetBackLED(ctx context.Context, brightness float64) error
}

// Streamer controls IMU streaming.
type Streamer interface {
	StreamAttitude(ctx context.Context, divisor uint16) error
	StopStreaming(ctx context.Context) error
}

// Sleeper puts the ball to sleep.
type Sleeper interface {
	Sleep(ctx context.Context) error
}

// Sphero is the composite interface for full control.
type Sphero interface {
	Roller
	LEDController
	Streamer
	Sleeper
}

// Ensure the serial client implements Sphero
var _ Sphero = (*sphero.Client)(nil)
