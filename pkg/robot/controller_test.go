package robot

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/lasershark/pkg/tracking"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// mockSphero records all commands for testing
type mockSphero struct {
	mu      sync.Mutex
	calls   []string
	rolls   []Command
	stops   int
	rgb     [][3]byte
	failAll error
}

func (m *mockSphero) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	return m.failAll
}

func (m *mockSphero) Roll(ctx context.Context, heading int, speed float64) error {
	m.mu.Lock()
	m.rolls = append(m.rolls, Command{Heading: heading, Speed: speed})
	m.mu.Unlock()
	return m.record("roll")
}

func (m *mockSphero) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	return m.record("stop")
}

func (m *mockSphero) SetRGB(ctx context.Context, r, g, b byte) error {
	m.mu.Lock()
	m.rgb = append(m.rgb, [3]byte{r, g, b})
	m.mu.Unlock()
	return m.record("rgb")
}

func (m *mockSphero) SetBackLED(ctx context.Context, brightness float64) error {
	return m.record("backled")
}

func (m *mockSphero) StreamAttitude(ctx context.Context, divisor uint16) error {
	return m.record("stream")
}

func (m *mockSphero) StopStreaming(ctx context.Context) error {
	return m.record("stopstream")
}

func (m *mockSphero) Sleep(ctx context.Context) error {
	return m.record("sleep")
}

func (m *mockSphero) rollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rolls)
}

func (m *mockSphero) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *mockSphero) lastRoll() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rolls) == 0 {
		return Command{}
	}
	return m.rolls[len(m.rolls)-1]
}

var _ Sphero = (*mockSphero)(nil)

// fakeSource is a settable SteeringSource
type fakeSource struct {
	mu         sync.Mutex
	steering   tracking.SteeringState
	calibrated bool
}

func (f *fakeSource) Steering() tracking.SteeringState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steering
}

func (f *fakeSource) Calibrated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calibrated
}

func (f *fakeSource) set(goal, speed float64, calibrated bool) {
	f.mu.Lock()
	f.steering = tracking.SteeringState{Goal: goal, Speed: speed}
	f.calibrated = calibrated
	f.mu.Unlock()
}

func TestDrive_RollsWhenCalibrated(t *testing.T) {
	mock := &mockSphero{}
	src := &fakeSource{}
	src.set(-30.4, 0.4, true)
	ctrl := NewDriveController(mock, src, 10*time.Millisecond)

	ctrl.tick(context.Background())

	got := mock.lastRoll()
	if got.Heading != 330 {
		t.Errorf("Heading: got %d, want 330", got.Heading)
	}
	if !floatEquals(got.Speed, 0.4) {
		t.Errorf("Speed: got %v, want 0.4", got.Speed)
	}
	if !ctrl.Stats().Driving {
		t.Error("expected Driving after a roll")
	}
}

func TestDrive_StopsWhenNotCalibrated(t *testing.T) {
	mock := &mockSphero{}
	src := &fakeSource{}
	src.set(90, 0.4, false)
	ctrl := NewDriveController(mock, src, 10*time.Millisecond)

	ctrl.tick(context.Background())

	if mock.rollCount() != 0 {
		t.Errorf("expected no rolls, got %d", mock.rollCount())
	}
	if mock.stopCount() != 1 {
		t.Errorf("expected 1 stop, got %d", mock.stopCount())
	}
}

func TestDrive_Disabled(t *testing.T) {
	mock := &mockSphero{}
	src := &fakeSource{}
	src.set(90, 0.4, true)
	ctrl := NewDriveController(mock, src, 10*time.Millisecond)
	ctrl.SetEnabled(false)

	ctrl.tick(context.Background())

	if mock.rollCount() != 0 || mock.stopCount() != 1 {
		t.Errorf("disabled controller: rolls=%d stops=%d, want 0 and 1", mock.rollCount(), mock.stopCount())
	}
}

func TestDrive_DeadZone(t *testing.T) {
	mock := &mockSphero{}
	src := &fakeSource{}
	src.set(90, 0.4, true)
	ctrl := NewDriveController(mock, src, 10*time.Millisecond)
	ctrl.keepAlive = time.Hour

	ctx := context.Background()
	ctrl.tick(ctx)
	src.set(91, 0.4, true) // inside the heading dead-zone
	ctrl.tick(ctx)

	if mock.rollCount() != 1 {
		t.Errorf("expected 1 roll inside dead-zone, got %d", mock.rollCount())
	}
	if s := ctrl.Stats(); s.Skipped != 1 {
		t.Errorf("Skipped: got %d, want 1", s.Skipped)
	}

	src.set(120, 0.4, true)
	ctrl.tick(ctx)
	if mock.rollCount() != 2 {
		t.Errorf("expected 2 rolls after heading change, got %d", mock.rollCount())
	}
}

func TestDrive_DeadZoneWrapsAround(t *testing.T) {
	if d := headingDiff(359, 1); !floatEquals(d, 2) {
		t.Errorf("headingDiff(359, 1): got %v, want 2", d)
	}
	if d := headingDiff(0, 180); !floatEquals(d, 180) {
		t.Errorf("headingDiff(0, 180): got %v, want 180", d)
	}
}

func TestDrive_KeepAliveResends(t *testing.T) {
	mock := &mockSphero{}
	src := &fakeSource{}
	src.set(90, 0.4, true)
	ctrl := NewDriveController(mock, src, 10*time.Millisecond)
	ctrl.keepAlive = 0

	ctx := context.Background()
	ctrl.tick(ctx)
	ctrl.tick(ctx)

	if mock.rollCount() != 2 {
		t.Errorf("expected keep-alive resend, got %d rolls", mock.rollCount())
	}
}

func TestDrive_ErrorsCounted(t *testing.T) {
	mock := &mockSphero{failAll: errors.New("link down")}
	src := &fakeSource{}
	src.set(90, 0.4, true)
	ctrl := NewDriveController(mock, src, 10*time.Millisecond)

	ctx := context.Background()
	ctrl.tick(ctx)
	ctrl.tick(ctx)

	s := ctrl.Stats()
	if s.Errors != 2 {
		t.Errorf("Errors: got %d, want 2", s.Errors)
	}
	if s.Sent != 0 {
		t.Errorf("Sent: got %d, want 0", s.Sent)
	}
}

func TestDrive_RunStop(t *testing.T) {
	mock := &mockSphero{}
	src := &fakeSource{}
	src.set(45, 0.4, true)
	ctrl := NewDriveController(mock, src, 5*time.Millisecond)
	ctrl.keepAlive = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("controller did not stop within timeout")
	}

	if mock.rollCount() < 3 {
		t.Errorf("expected at least 3 rolls, got %d", mock.rollCount())
	}
	if mock.stopCount() != 1 {
		t.Errorf("expected a final stop, got %d", mock.stopCount())
	}
}

func TestDrive_NilRobot(t *testing.T) {
	ctrl := NewDriveController(nil, &fakeSource{}, 10*time.Millisecond)

	// Should not panic with nil robot
	ctrl.tick(context.Background())
}

func TestConnectSequence(t *testing.T) {
	mock := &mockSphero{}
	if err := Connect(context.Background(), mock, 2); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	want := []string{"backled", "stream"}
	if len(mock.calls) != len(want) {
		t.Fatalf("calls: got %v, want %v", mock.calls, want)
	}
	for i := range want {
		if mock.calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, mock.calls[i], want[i])
		}
	}
}

func TestShutdownAttemptsEveryStep(t *testing.T) {
	mock := &mockSphero{failAll: errors.New("gone")}
	err := Shutdown(context.Background(), mock)
	if err == nil {
		t.Fatal("expected an error")
	}
	want := []string{"backled", "stop", "stopstream", "sleep"}
	if len(mock.calls) != len(want) {
		t.Fatalf("calls: got %v, want %v", mock.calls, want)
	}
	for i := range want {
		if mock.calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, mock.calls[i], want[i])
		}
	}
}

func TestBlinkAlternates(t *testing.T) {
	mock := &mockSphero{}
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()

	Blink(ctx, mock, 10*time.Millisecond)

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.rgb) < 2 {
		t.Fatalf("expected at least 2 color changes, got %d", len(mock.rgb))
	}
	if mock.rgb[0] != [3]byte{0, 0, 255} || mock.rgb[1] != [3]byte{0, 0, 0} {
		t.Errorf("colors: got %v, want blue then off", mock.rgb[:2])
	}
}
