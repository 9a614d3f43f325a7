package tracking

import (
	"time"

	"github.com/golang/geo/r2"

	"github.com/teslashibe/lasershark/pkg/debug"
)

// perceive runs the pipeline for one frame. Callers hold t.mu.
// Both targets are captured before either moves, so a format error leaves
// every position untouched.
func (t *Tracker) perceive(src FrameSource) (FrameResult, error) {
	prev := t.sphero.mark()

	if _, err := t.sphero.Step(src); err != nil {
		return FrameResult{}, err
	}
	if _, err := t.laser.Step(src); err != nil {
		t.sphero.restore(prev)
		return FrameResult{}, err
	}

	boresight := t.projector.ProjectPoint(t.screen.Center(), t.pose)
	t.sphero.Ground = t.projector.ProjectPoint(t.sphero.Position, t.pose)
	t.laser.Ground = t.projector.ProjectPoint(t.laser.Position, t.pose)

	ref := t.reference(boresight)
	active := t.calibrated && t.sphero.Locked
	if t.config.Mode == ModeLaser {
		active = active && t.laser.Locked
	}
	t.steering = t.planner.Plan(ref, t.sphero.Ground, t.offset, active)

	if debug.Tracking && debug.Sample("tracker.frame", t.config.LogEvery) {
		debug.TrackLog("🎯 frame %d: sphero (%d,%d) peak=%.3f laser (%d,%d) peak=%.3f goal=%d speed=%.2f\n",
			t.frame,
			t.sphero.Position.X, t.sphero.Position.Y, t.sphero.Peak.Value,
			t.laser.Position.X, t.laser.Position.Y, t.laser.Peak.Value,
			t.steering.GoalHeading(), t.steering.Speed)
	}

	res := t.snapshotLocked(false)
	res.Boresight = groundPoint(boresight)
	res.Reference = groundPoint(ref)
	return res, nil
}

// reference picks the ground point the sphero is steered toward
func (t *Tracker) reference(boresight r2.Point) r2.Point {
	if t.config.Mode == ModeLaser {
		return t.laser.Ground
	}
	return boresight
}

func (t *Tracker) snapshotLocked(skipped bool) FrameResult {
	return FrameResult{
		Frame:      t.frame,
		Screen:     t.screen,
		Sphero:     targetState(t.sphero),
		Laser:      targetState(t.laser),
		Steering:   t.steering,
		Pose:       t.pose,
		Attitude:   t.attitude,
		Offset:     t.offset,
		Calibrated: t.calibrated,
		Mode:       t.config.Mode,
		Skipped:    skipped,
		At:         time.Now(),
	}
}
