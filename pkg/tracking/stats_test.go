package tracking

import (
	"math"
	"testing"
	"time"
)

func TestFrameStats(t *testing.T) {
	s := NewFrameStats(10)
	start := time.Unix(0, 0)

	for i := 0; i < 20; i++ {
		s.Observe(start.Add(time.Duration(i)*50*time.Millisecond), 5*time.Millisecond, i == 3)
	}

	snap := s.Snapshot()
	if snap.Frames != 20 || snap.Skipped != 1 {
		t.Errorf("Frames=%d Skipped=%d, want 20 and 1", snap.Frames, snap.Skipped)
	}
	if math.Abs(snap.FPS-20) > 1e-6 {
		t.Errorf("FPS = %v, want 20", snap.FPS)
	}
	if snap.JitterMs > 1e-6 {
		t.Errorf("JitterMs = %v, want 0 for a steady clock", snap.JitterMs)
	}
	if math.Abs(snap.ProcessMs-5) > 1e-6 {
		t.Errorf("ProcessMs = %v, want 5", snap.ProcessMs)
	}
}

func TestFrameStats_Empty(t *testing.T) {
	snap := NewFrameStats(5).Snapshot()
	if snap.FPS != 0 || snap.Frames != 0 {
		t.Errorf("Empty stats = %+v", snap)
	}
}
