package tracking

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/debug"
	"github.com/teslashibe/lasershark/pkg/imaging"
)

// Target names
const (
	SpheroTarget = "sphero"
	LaserTarget  = "laser"
)

// Attitude is the sphero's self-reported IMU orientation (degrees)
type Attitude struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// GroundPoint is a JSON-friendly ground position in feet
type GroundPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func groundPoint(p r2.Point) GroundPoint {
	return GroundPoint{X: p.X, Y: p.Y}
}

// TargetState is the per-frame view of one target
type TargetState struct {
	Name     string      `json:"name"`
	Position Point       `json:"position"`
	Radius   int         `json:"radius"`
	Peak     float32     `json:"peak"`
	PeakAt   Point       `json:"peak_at"`
	Locked   bool        `json:"locked"`
	Ground   GroundPoint `json:"ground"`
}

// FrameResult is everything one pipeline pass produced. Overlay renderers
// and the dashboard consume it.
type FrameResult struct {
	Frame      uint64        `json:"frame"`
	Screen     Size          `json:"screen"`
	Sphero     TargetState   `json:"sphero"`
	Laser      TargetState   `json:"laser"`
	Boresight  GroundPoint   `json:"boresight"`
	Reference  GroundPoint   `json:"reference"`
	Steering   SteeringState `json:"steering"`
	Pose       CameraPose    `json:"pose"`
	Attitude   Attitude      `json:"attitude"`
	Offset     float64       `json:"offset"`
	Calibrated bool          `json:"calibrated"`
	Mode       Mode          `json:"mode"`
	Skipped    bool          `json:"skipped"`
	At         time.Time     `json:"at"`
}

// Tracker owns both targets, the camera pose and the steering state.
// All methods are safe for concurrent use.
type Tracker struct {
	mu sync.RWMutex

	config    Config
	screen    Size
	sphero    *Target
	laser     *Target
	projector GroundProjector
	planner   SteeringPlanner

	pose       CameraPose
	attitude   Attitude
	offset     float64
	calibrated bool
	steering   SteeringState

	frame  uint64
	result FrameResult
	stats  *FrameStats
	logger *slog.Logger
}

// New creates a tracker with both targets centred on the screen
func New(config Config) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}

	screen := config.Screen()
	sphero, err := NewTarget(SpheroTarget, config.BallRadius, config.BallDetector, config.CaptureFormat, screen)
	if err != nil {
		return nil, err
	}
	laser, err := NewTarget(LaserTarget, config.LaserRadius, config.LaserDetector, config.CaptureFormat, screen)
	if err != nil {
		return nil, err
	}
	sphero.threshold = config.PeakThreshold
	laser.threshold = config.PeakThreshold

	t := &Tracker{
		config:    config,
		screen:    screen,
		sphero:    sphero,
		laser:     laser,
		projector: NewGroundProjector(screen, config.HFovHalf, config.VFovHalf),
		planner:   NewSteeringPlanner(config.Throttle),
		pose:      CameraPose{Height: config.CameraHeight},
		stats:     NewFrameStats(60),
		logger:    log.With("component", "tracker"),
	}
	t.result = t.snapshotLocked(false)
	return t, nil
}

// Config returns the tracker's current configuration
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// Resize changes the screen size. Both windows are re-clamped.
func (t *Tracker) Resize(width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tgt := range []*Target{t.sphero, t.laser} {
		if 2*tgt.Radius >= width || 2*tgt.Radius >= height {
			return fmt.Errorf("resize %dx%d: %s window %d does not fit: %w",
				width, height, tgt.Name, tgt.Size(), imaging.ErrInvalidSize)
		}
	}

	t.screen = Size{W: width, H: height}
	t.config.ScreenWidth, t.config.ScreenHeight = width, height
	t.projector.Screen = t.screen
	t.sphero.SetFrame(t.screen)
	t.laser.SetFrame(t.screen)
	t.logger.Info("screen resized", "width", width, "height", height)
	return nil
}

// Draw runs one capture, detect, project and plan pass over src.
// If the frame format is not supported the update is skipped, logged and
// the previous result is returned together with the error.
func (t *Tracker) Draw(src FrameSource) (FrameResult, error) {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.frame++
	res, err := t.perceive(src)
	t.stats.Observe(start, time.Since(start), err != nil)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			t.logger.Warn("frame skipped", "frame", t.frame, "format", src.PixelFormat(), "error", err)
		} else {
			t.logger.Error("frame failed", "frame", t.frame, "error", err)
		}
		t.result.Skipped = true
		return t.result, err
	}
	t.result = res
	return res, nil
}

// SetSpheroOrientation records the sphero's IMU attitude (degrees)
func (t *Tracker) SetSpheroOrientation(pitch, roll, yaw float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attitude = Attitude{Pitch: pitch, Roll: roll, Yaw: yaw}
}

// SetPhoneOrientation records the phone orientation (degrees) as the camera pose
func (t *Tracker) SetPhoneOrientation(pitch, roll, yaw float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pose = PoseFromPhone(pitch, roll, yaw, t.config.CameraHeight)
}

// SetPose sets the camera pose directly
func (t *Tracker) SetPose(pose CameraPose) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pose = pose
}

// Touch1 re-acquires the laser at (x, y)
func (t *Tracker) Touch1(x, y int) Point {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.laser.MoveTo(Point{X: x, Y: y})
	debug.Log("👆 laser re-acquired at (%d,%d) -> (%d,%d)\n", x, y, t.laser.Position.X, t.laser.Position.Y)
	return t.laser.Position
}

// Touch2 re-acquires the sphero at the middle of the rectangle spanned by
// two opposite corners. A two-finger gesture also arms driving.
func (t *Tracker) Touch2(x1, y1, x2, y2 int) Point {
	t.mu.Lock()
	defer t.mu.Unlock()

	tl, br := NormalizeRect(Point{X: x1, Y: y1}, Point{X: x2, Y: y2})
	t.sphero.MoveTo(Midpoint(tl, br))
	if !t.calibrated {
		t.calibrateLocked()
	}
	debug.Log("✌️  sphero re-acquired in (%d,%d)-(%d,%d) -> (%d,%d)\n",
		tl.X, tl.Y, br.X, br.Y, t.sphero.Position.X, t.sphero.Position.Y)
	return t.sphero.Position
}

// Calibrate aligns the sphero heading with the phone compass and arms driving
func (t *Tracker) Calibrate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calibrateLocked()
}

func (t *Tracker) calibrateLocked() float64 {
	t.offset = Calibrate(t.pose.Heading, t.attitude.Yaw)
	t.calibrated = true
	t.logger.Info("heading calibrated", "compass", t.pose.Heading, "sphero_yaw", t.attitude.Yaw, "offset", t.offset)
	return t.offset
}

// Disarm clears calibration; the drive loop stops the sphero
func (t *Tracker) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibrated = false
	t.steering.Speed = 0
}

// Calibrated reports whether driving is armed
func (t *Tracker) Calibrated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calibrated
}

// Offset returns the calibrated heading offset
func (t *Tracker) Offset() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offset
}

// GoalHeading returns the last goal heading in whole degrees
func (t *Tracker) GoalHeading() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.steering.GoalHeading()
}

// Speed returns the last planned speed
func (t *Tracker) Speed() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.steering.Speed
}

// Steering returns the last steering state
func (t *Tracker) Steering() SteeringState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.steering
}

// Pose returns the current camera pose
func (t *Tracker) Pose() CameraPose {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pose
}

// Snapshot returns the last frame result
func (t *Tracker) Snapshot() FrameResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Stats returns frame timing statistics
func (t *Tracker) Stats() StatsSnapshot {
	return t.stats.Snapshot()
}

// Target returns a copy of a target's state by name
func (t *Tracker) Target(name string) (TargetState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch name {
	case SpheroTarget:
		return targetState(t.sphero), true
	case LaserTarget:
		return targetState(t.laser), true
	default:
		return TargetState{}, false
	}
}

// Responses returns the detector response buffers of both targets for debug
// views. The buffers are reused each frame; callers must copy what they keep.
func (t *Tracker) Responses() (sphero, laser *imaging.Region) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sphero.Response(), t.laser.Response()
}

func targetState(tgt *Target) TargetState {
	return TargetState{
		Name:     tgt.Name,
		Position: tgt.Position,
		Radius:   tgt.Radius,
		Peak:     tgt.Peak.Value,
		PeakAt:   Point{X: tgt.Peak.X, Y: tgt.Peak.Y},
		Locked:   tgt.Locked,
		Ground:   groundPoint(tgt.Ground),
	}
}
