package tracking

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameStats keeps a short window of frame timings for the fps readout
type FrameStats struct {
	mu       sync.Mutex
	window   int
	interval []float64 // seconds between frames
	process  []float64 // seconds spent in the pipeline
	last     time.Time
	frames   uint64
	skipped  uint64
}

// StatsSnapshot is a point-in-time view of FrameStats
type StatsSnapshot struct {
	Frames    uint64  `json:"frames"`
	Skipped   uint64  `json:"skipped"`
	FPS       float64 `json:"fps"`
	JitterMs  float64 `json:"jitter_ms"`
	ProcessMs float64 `json:"process_ms"`
}

// NewFrameStats tracks the last n frames
func NewFrameStats(n int) *FrameStats {
	if n < 2 {
		n = 2
	}
	return &FrameStats{window: n}
}

// Observe records a frame that started at start and took took to process
func (s *FrameStats) Observe(start time.Time, took time.Duration, skipped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	if skipped {
		s.skipped++
	}
	if !s.last.IsZero() {
		s.interval = push(s.interval, start.Sub(s.last).Seconds(), s.window)
	}
	s.last = start
	s.process = push(s.process, took.Seconds(), s.window)
}

// Snapshot returns current statistics
func (s *FrameStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{Frames: s.frames, Skipped: s.skipped}
	if len(s.interval) > 0 {
		mean, std := stat.MeanStdDev(s.interval, nil)
		if mean > 0 {
			snap.FPS = 1 / mean
		}
		if len(s.interval) > 1 {
			snap.JitterMs = std * 1000
		}
	}
	if len(s.process) > 0 {
		snap.ProcessMs = stat.Mean(s.process, nil) * 1000
	}
	return snap
}

func push(buf []float64, v float64, n int) []float64 {
	if len(buf) == n {
		copy(buf, buf[1:])
		buf = buf[:n-1]
	}
	return append(buf, v)
}
