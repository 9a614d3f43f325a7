package tracking

import (
	"math"

	"github.com/golang/geo/r2"
)

// SteeringState is the drive command derived from one frame
type SteeringState struct {
	Goal     float64 `json:"goal"`     // Goal heading (degrees) in the sphero's frame
	Speed    float64 `json:"speed"`    // Throttle 0-1
	Distance float64 `json:"distance"` // Ground distance to the reference (feet)
}

// GoalHeading returns the goal rounded to whole degrees in [0, 360)
func (s SteeringState) GoalHeading() int {
	g := int(math.Round(Normalize360(s.Goal)))
	if g == 360 {
		g = 0
	}
	return g
}

// SteeringPlanner turns two ground positions into a heading and speed
type SteeringPlanner struct {
	Throttle float64
}

// NewSteeringPlanner creates a planner driving at the given throttle
func NewSteeringPlanner(throttle float64) SteeringPlanner {
	return SteeringPlanner{Throttle: clamp(throttle, 0, 1)}
}

// Plan steers from target toward reference. offset is the calibrated
// difference between the phone compass and the sphero's own heading.
// Speed is the throttle when active, otherwise 0.
func (p SteeringPlanner) Plan(reference, target r2.Point, offset float64, active bool) SteeringState {
	d := reference.Sub(target)

	// math.Atan2(0, 0) is 0, so coincident points give a defined heading
	angle := Normalize360(Degrees(math.Atan2(d.X, d.Y)))

	s := SteeringState{
		Goal:     angle - offset,
		Distance: d.Norm(),
	}
	if active {
		s.Speed = p.Throttle
	}
	return s
}

// Calibrate returns the heading offset aligning the sphero's reported
// heading with the phone compass at this instant.
func Calibrate(compassHeading, trackedHeading float64) float64 {
	return compassHeading - trackedHeading
}
