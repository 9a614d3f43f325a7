package lasershark

import (
	"context"
	"errors"
	"sync"

	"github.com/teslashibe/lasershark/pkg/robot"
)

// ErrNoPhones is returned by the phone relay when no phone is connected to
// carry a drive command.
var ErrNoPhones = errors.New("no phone connected")

// steerBroadcaster is the part of phone.Hub the adapter needs
type steerBroadcaster interface {
	BroadcastSteer(heading int, speed float64) error
	PhoneCount() int
}

// phoneSphero drives a sphero paired to the phone rather than to this
// host: roll commands become steer messages. The phone owns the ball's
// lights and streaming, so those calls are no-ops.
type phoneSphero struct {
	phones steerBroadcaster

	mu      sync.Mutex
	heading int
}

var _ robot.Sphero = (*phoneSphero)(nil)

func newPhoneSphero(phones steerBroadcaster) *phoneSphero {
	return &phoneSphero{phones: phones}
}

func (p *phoneSphero) Roll(_ context.Context, heading int, speed float64) error {
	if p.phones.PhoneCount() == 0 {
		return ErrNoPhones
	}
	p.mu.Lock()
	p.heading = heading
	p.mu.Unlock()
	return p.phones.BroadcastSteer(heading, speed)
}

// Stop keeps the last heading so the ball does not swing round as it stops.
func (p *phoneSphero) Stop(_ context.Context) error {
	if p.phones.PhoneCount() == 0 {
		return ErrNoPhones
	}
	p.mu.Lock()
	heading := p.heading
	p.mu.Unlock()
	return p.phones.BroadcastSteer(heading, 0)
}

func (*phoneSphero) SetRGB(context.Context, byte, byte, byte) error { return nil }
func (*phoneSphero) SetBackLED(context.Context, float64) error      { return nil }
func (*phoneSphero) StreamAttitude(context.Context, uint16) error   { return nil }
func (*phoneSphero) StopStreaming(context.Context) error            { return nil }
func (*phoneSphero) Sleep(context.Context) error                    { return nil }
