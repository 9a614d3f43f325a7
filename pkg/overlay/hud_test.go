package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/lasershark/pkg/tracking"
)

func TestWindowRect(t *testing.T) {
	s := tracking.TargetState{Position: tracking.Point{X: 400, Y: 240}, Radius: 64}
	assert.Equal(t, image.Rect(336, 176, 464, 304), WindowRect(s))
}

func TestWindowColor(t *testing.T) {
	s := tracking.TargetState{}
	assert.Equal(t, LaserColor, windowColor(s, LaserColor))
	s.Locked = true
	assert.Equal(t, LockedColor, windowColor(s, LaserColor))
}

func TestHUDLines(t *testing.T) {
	res := tracking.FrameResult{
		Mode:       tracking.ModeLaser,
		Calibrated: true,
		Offset:     60,
		Steering:   tracking.SteeringState{Goal: -30.4, Speed: 0.4, Distance: 2.5},
		Sphero:     tracking.TargetState{Position: tracking.Point{X: 400, Y: 240}},
		Laser:      tracking.TargetState{Position: tracking.Point{X: 64, Y: 415}},
	}
	lines := HUDLines(res, tracking.StatsSnapshot{FPS: 29.96})

	assert.Equal(t, []string{
		"mode laser  fps 30.0",
		"calibrated yes (offset 60)",
		"heading 330  speed 0.40  dist 2.5ft",
		"sphero 400,240  laser 64,415",
	}, lines)

	res.Calibrated = false
	res.Skipped = true
	lines = HUDLines(res, tracking.StatsSnapshot{})
	assert.Equal(t, "calibrated no", lines[1])
	assert.Equal(t, "frame skipped", lines[len(lines)-1])
}

func TestNewRendererQuality(t *testing.T) {
	r := NewRenderer(Options{Quality: 0})
	assert.Equal(t, 80, r.Options().Quality)

	r.SetOptions(Options{Quality: 500, HUD: true})
	assert.Equal(t, 80, r.Options().Quality)
	assert.True(t, r.Options().HUD)
}
