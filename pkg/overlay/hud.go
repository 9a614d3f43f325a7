// Package overlay draws the tracker state on top of camera frames for the
// dashboard: both search windows, their peaks, the screen boresight and a
// short text readout.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/lasershark/pkg/tracking"
)

// Colors
var (
	SpheroColor    = color.RGBA{0, 200, 255, 255}
	LaserColor     = color.RGBA{255, 40, 40, 255}
	LockedColor    = color.RGBA{0, 255, 0, 255}
	BoresightColor = color.RGBA{255, 255, 255, 255}
	TextColor      = color.RGBA{255, 255, 0, 255}
)

// Options controls what gets drawn
type Options struct {
	Quality   int  // JPEG quality 1-100
	Windows   bool // search window rectangles
	Peaks     bool // peak markers
	Boresight bool // crosshair at screen centre
	HUD       bool // text readout
}

// DefaultOptions draws everything at quality 80
func DefaultOptions() Options {
	return Options{Quality: 80, Windows: true, Peaks: true, Boresight: true, HUD: true}
}

// WindowRect is the screen rectangle covered by a target's search window
func WindowRect(s tracking.TargetState) image.Rectangle {
	r := s.Radius
	return image.Rect(s.Position.X-r, s.Position.Y-r, s.Position.X+r, s.Position.Y+r)
}

// windowColor is the target color, or green once the peak passed the gate
func windowColor(s tracking.TargetState, base color.RGBA) color.RGBA {
	if s.Locked {
		return LockedColor
	}
	return base
}

// HUDLines returns the text readout for a frame, top to bottom
func HUDLines(res tracking.FrameResult, stats tracking.StatsSnapshot) []string {
	cal := "no"
	if res.Calibrated {
		cal = fmt.Sprintf("yes (offset %.0f)", res.Offset)
	}
	lines := []string{
		fmt.Sprintf("mode %s  fps %.1f", res.Mode, stats.FPS),
		fmt.Sprintf("calibrated %s", cal),
		fmt.Sprintf("heading %d  speed %.2f  dist %.1fft",
			res.Steering.GoalHeading(), res.Steering.Speed, res.Steering.Distance),
		fmt.Sprintf("sphero %d,%d  laser %d,%d",
			res.Sphero.Position.X, res.Sphero.Position.Y, res.Laser.Position.X, res.Laser.Position.Y),
	}
	if res.Skipped {
		lines = append(lines, "frame skipped")
	}
	return lines
}
