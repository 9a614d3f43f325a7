package tracking

import (
	"math"

	"github.com/golang/geo/r2"
)

// CameraPose is the phone camera's orientation and mounting height
type CameraPose struct {
	Heading float64 `json:"heading"` // Compass heading of the boresight (degrees, 0-360)
	Slope   float64 `json:"slope"`   // Boresight angle from straight down (degrees)
	Height  float64 `json:"height"`  // Camera height above the ground (feet)
}

// PoseFromPhone maps phone orientation sensor values to a camera pose.
// With the phone flat and the camera facing the floor pitch is 0; tilting
// the top of the phone up makes pitch negative, so slope = -pitch.
func PoseFromPhone(pitch, roll, yaw, height float64) CameraPose {
	return CameraPose{
		Heading: Normalize360(yaw),
		Slope:   -pitch,
		Height:  height,
	}
}

// GroundProjector maps screen pixels to ground-plane feet using a fixed
// angular field of view. It interpolates angles linearly across the frame
// and assumes flat ground under a pinhole camera.
type GroundProjector struct {
	Screen   Size
	HFovHalf float64 // radians
	VFovHalf float64 // radians
}

// NewGroundProjector builds a projector from half-FOV angles in degrees
func NewGroundProjector(screen Size, hfovHalfDeg, vfovHalfDeg float64) GroundProjector {
	return GroundProjector{
		Screen:   screen,
		HFovHalf: Radians(hfovHalfDeg),
		VFovHalf: Radians(vfovHalfDeg),
	}
}

// Project converts screen position (sx, sy) to camera-relative ground
// coordinates in feet. Positive sy is down the screen.
func (g GroundProjector) Project(sx, sy float64, pose CameraPose) r2.Point {
	halfW := float64(g.Screen.W) / 2
	halfH := float64(g.Screen.H) / 2

	heading := Radians(pose.Heading) + g.HFovHalf*(sx-halfW)/halfW
	slope := Radians(pose.Slope) - g.VFovHalf*(sy-halfH)/halfH

	hyp := pose.Height * math.Tan(slope)
	return r2.Point{
		X: hyp * math.Sin(heading),
		Y: hyp * math.Cos(heading),
	}
}

// ProjectPoint is Project for an integer screen position
func (g GroundProjector) ProjectPoint(p Point, pose CameraPose) r2.Point {
	return g.Project(float64(p.X), float64(p.Y), pose)
}
