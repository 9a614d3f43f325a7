package robot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/tracking"
)

// DefaultDriveRate matches the phone app's 100 ms roll timer.
const DefaultDriveRate = 100 * time.Millisecond

// Dead-zone thresholds. A command within both of these of the last one sent
// is skipped, unless the keep-alive interval has passed.
const (
	DeadZoneHeadingDeg = 2.0
	DeadZoneSpeed      = 0.02
)

// Tail light brightness while connected (dimmest non-zero value).
const BackLEDOn = 1.0 / 255

// SteeringSource is what the drive loop reads each tick. *tracking.Tracker
// implements it.
type SteeringSource interface {
	Steering() tracking.SteeringState
	Calibrated() bool
}

var _ SteeringSource = (*tracking.Tracker)(nil)

// Command is one roll command as sent to the ball.
type Command struct {
	Heading int     `json:"heading"`
	Speed   float64 `json:"speed"`
}

// DriveStats are the controller's running counters.
type DriveStats struct {
	Ticks   uint64  `json:"ticks"`
	Sent    uint64  `json:"sent"`
	Skipped uint64  `json:"skipped"`
	Errors  uint64  `json:"errors"`
	Last    Command `json:"last"`
	Driving bool    `json:"driving"`
}

// DriveController polls the steering source at a fixed rate and rolls the
// ball toward the goal heading while calibrated, stopping it otherwise.
type DriveController struct {
	robot  Roller
	source SteeringSource

	rate      time.Duration
	keepAlive time.Duration

	mu            sync.RWMutex
	stats         DriveStats
	haveSent      bool
	lastSentAt    time.Time
	lastErrorTime time.Time
	enabled       bool
}

// NewDriveController creates a controller ticking at rate. Typical rate is
// DefaultDriveRate.
func NewDriveController(robot Roller, source SteeringSource, rate time.Duration) *DriveController {
	if rate <= 0 {
		rate = DefaultDriveRate
	}
	return &DriveController{
		robot:     robot,
		source:    source,
		rate:      rate,
		keepAlive: 10 * rate,
		enabled:   true,
	}
}

// SetEnabled pauses (false) or resumes driving. A paused controller keeps
// the ball stopped.
func (c *DriveController) SetEnabled(on bool) {
	c.mu.Lock()
	c.enabled = on
	c.mu.Unlock()
}

// Enabled reports whether driving is allowed.
func (c *DriveController) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Stats returns a copy of the counters.
func (c *DriveController) Stats() DriveStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Run starts the control loop. Blocks until ctx is cancelled, then stops
// the ball.
func (c *DriveController) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if c.robot != nil {
				if err := c.robot.Stop(stopCtx); err != nil {
					log.Warn("stop on shutdown failed", "error", err)
				}
			}
			return nil
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// next decides what to send this tick.
func (c *DriveController) next() Command {
	st := c.source.Steering()
	if !c.Enabled() || !c.source.Calibrated() {
		return Command{Heading: st.GoalHeading()}
	}
	return Command{Heading: st.GoalHeading(), Speed: st.Speed}
}

func headingDiff(a, b int) float64 {
	d := math.Mod(math.Abs(float64(a-b)), 360)
	return math.Min(d, 360-d)
}

// tick executes one control cycle.
func (c *DriveController) tick(ctx context.Context) {
	if c.robot == nil || c.source == nil {
		return
	}
	cmd := c.next()

	c.mu.Lock()
	c.stats.Ticks++
	last := c.stats.Last
	redundant := c.haveSent &&
		time.Since(c.lastSentAt) < c.keepAlive &&
		math.Abs(cmd.Speed-last.Speed) < DeadZoneSpeed &&
		(cmd.Speed == 0 || headingDiff(cmd.Heading, last.Heading) < DeadZoneHeadingDeg)
	if redundant {
		c.stats.Skipped++
	}
	ticks := c.stats.Ticks
	c.mu.Unlock()

	if !redundant {
		var err error
		if cmd.Speed > 0 {
			err = c.robot.Roll(ctx, cmd.Heading, cmd.Speed)
		} else {
			err = c.robot.Stop(ctx)
		}
		c.record(cmd, err)
	}

	// Heartbeat every ~10 s at the default rate
	if ticks%100 == 0 {
		s := c.Stats()
		log.Info("💓 drive heartbeat",
			"ticks", s.Ticks, "sent", s.Sent, "skipped", s.Skipped, "errors", s.Errors,
			"heading", s.Last.Heading, "speed", s.Last.Speed)
	}
}

func (c *DriveController) record(cmd Command, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.stats.Sent++
		c.stats.Last = cmd
		c.stats.Driving = cmd.Speed > 0
		c.haveSent = true
		c.lastSentAt = time.Now()
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	// Log errors, but at most once per 5 seconds
	c.stats.Errors++
	if c.lastErrorTime.IsZero() || time.Since(c.lastErrorTime) > 5*time.Second {
		log.Warn("⚠️  drive command failed", "error", err, "total_errors", c.stats.Errors)
		c.lastErrorTime = time.Now()
	}
}

// Connect runs the start-up sequence: tail light on so the ball's
// orientation is visible, then attitude streaming at 400/divisor Hz.
func Connect(ctx context.Context, s Sphero, divisor uint16) error {
	if err := s.SetBackLED(ctx, BackLEDOn); err != nil {
		return fmt.Errorf("back led: %w", err)
	}
	if err := s.StreamAttitude(ctx, divisor); err != nil {
		return fmt.Errorf("stream attitude: %w", err)
	}
	log.Info("🔵 sphero connected", "stream_divisor", divisor)
	return nil
}

// Shutdown turns the lights off, stops the ball and streaming, and puts it
// to sleep. Every step is attempted; the first error is returned.
func Shutdown(ctx context.Context, s Sphero) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"back led", func(ctx context.Context) error { return s.SetBackLED(ctx, 0) }},
		{"stop", s.Stop},
		{"stop streaming", s.StopStreaming},
		{"sleep", s.Sleep},
	}
	var first error
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			log.Warn("sphero shutdown step failed", "step", step.name, "error", err)
			if first == nil {
				first = fmt.Errorf("%s: %w", step.name, err)
			}
		}
	}
	return first
}

// Blink alternates the main LED between off and blue every period until
// ctx is cancelled, so the ball is easy to pick out of the frame.
func Blink(ctx context.Context, led LEDController, period time.Duration) error {
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	on := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			on = !on
			var b byte
			if on {
				b = 255
			}
			if err := led.SetRGB(ctx, 0, 0, b); err != nil && ctx.Err() == nil {
				log.Debug("blink failed", "error", err)
			}
		}
	}
}
