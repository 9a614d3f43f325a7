package tracking

import (
	"fmt"

	"github.com/golang/geo/r2"

	"github.com/teslashibe/lasershark/pkg/imaging"
	"github.com/teslashibe/lasershark/pkg/tracking/detection"
)

// Point is a screen position in pixels, origin top-left
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a screen size in pixels
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the middle pixel
func (s Size) Center() Point {
	return Point{X: s.W / 2, Y: s.H / 2}
}

// FrameSource is a host frame the tracker can read search windows from.
// *imaging.Frame implements it.
type FrameSource interface {
	// PixelFormat reports the native sample layout of the frame
	PixelFormat() imaging.PixelFormat
	// ReadWindow fills dst with the window centred on (cx, cy), bottom row first
	ReadWindow(cx, cy int, dst *imaging.Region) error
}

// Limit clamps p so the square window of radius r stays inside frame.
// It is idempotent.
func Limit(r int, p Point, frame Size) Point {
	if p.X-r < 0 {
		p.X = r
	}
	if p.X+r >= frame.W {
		p.X = frame.W - r - 1
	}
	if p.Y-r < 0 {
		p.Y = r
	}
	if p.Y+r >= frame.H {
		p.Y = frame.H - r - 1
	}
	return p
}

// NormalizeRect orders two opposite corners into top-left and bottom-right
func NormalizeRect(a, b Point) (Point, Point) {
	if a.X > b.X {
		a.X, b.X = b.X, a.X
	}
	if a.Y > b.Y {
		a.Y, b.Y = b.Y, a.Y
	}
	return a, b
}

// Midpoint of a normalized rectangle
func Midpoint(tl, br Point) Point {
	return Point{X: tl.X + (br.X-tl.X)/2, Y: tl.Y + (br.Y-tl.Y)/2}
}

// Target is one tracked point of interest with its search window
type Target struct {
	Name     string
	Position Point
	Ground   r2.Point // feet, camera-relative
	Radius   int
	Peak     detection.Peak
	Locked   bool // last peak moved the window

	window    *imaging.Region
	detector  detection.Detector
	threshold float32
	frame     Size
}

// NewTarget allocates the target's window and detector, centred on frame
func NewTarget(name string, radius int, kind detection.Kind, format imaging.PixelFormat, frame Size) (*Target, error) {
	size := 2 * radius
	window, err := imaging.NewRegion(size, size, format, imaging.SampleByte)
	if err != nil {
		return nil, fmt.Errorf("%s window: %w", name, err)
	}
	det, err := detection.New(kind, size)
	if err != nil {
		return nil, fmt.Errorf("%s detector: %w", name, err)
	}

	t := &Target{
		Name:     name,
		Radius:   radius,
		window:   window,
		detector: det,
		frame:    frame,
	}
	t.Position = Limit(radius, frame.Center(), frame)
	return t, nil
}

// Size returns the window side in pixels
func (t *Target) Size() int {
	return 2 * t.Radius
}

// Recenter returns the position moved onto a peak found in the window.
// The window is read bottom-up, so the vertical offset is negated.
func (t *Target) Recenter(p detection.Peak) Point {
	half := t.Size() / 2
	return Point{
		X: t.Position.X + p.X - half,
		Y: t.Position.Y - (p.Y - half),
	}
}

// MoveTo re-acquires the target at p, clamped to the frame
func (t *Target) MoveTo(p Point) {
	t.Position = Limit(t.Radius, p, t.frame)
}

// SetFrame changes the frame the target is clamped against
func (t *Target) SetFrame(frame Size) {
	t.frame = frame
	t.Position = Limit(t.Radius, t.Position, frame)
}

// Step captures the window from src, locates the peak and moves onto it.
// On error the position is left unchanged.
func (t *Target) Step(src FrameSource) (detection.Peak, error) {
	if err := t.adoptFormat(src.PixelFormat()); err != nil {
		return detection.Peak{}, err
	}
	if err := src.ReadWindow(t.Position.X, t.Position.Y, t.window); err != nil {
		return detection.Peak{}, fmt.Errorf("%s capture: %w", t.Name, err)
	}
	peak, err := t.detector.Detect(t.window)
	if err != nil {
		return detection.Peak{}, fmt.Errorf("%s detect: %w", t.Name, err)
	}

	t.Peak = peak
	if t.threshold > 0 && peak.Value < t.threshold {
		t.Locked = false
		return peak, nil
	}
	t.Locked = true
	t.Position = Limit(t.Radius, t.Recenter(peak), t.frame)
	return peak, nil
}

// adoptFormat re-tags the window for the frame's channel order. The window
// is never reallocated; only 4-channel byte layouts are accepted.
func (t *Target) adoptFormat(f imaging.PixelFormat) error {
	if f == t.window.Format {
		return nil
	}
	if f != imaging.FormatBGRA && f != imaging.FormatRGBA {
		return fmt.Errorf("%s capture: %w: %v", t.Name, imaging.ErrUnsupportedFormat, f)
	}
	t.window.Format = f
	return nil
}

// Window returns the last captured color window
func (t *Target) Window() *imaging.Region {
	return t.window
}

// Response returns the detector's last response buffer
func (t *Target) Response() *imaging.Region {
	return t.detector.Response()
}

type targetMark struct {
	position Point
	peak     detection.Peak
	locked   bool
}

func (t *Target) mark() targetMark {
	return targetMark{position: t.Position, peak: t.Peak, locked: t.Locked}
}

func (t *Target) restore(m targetMark) {
	t.Position, t.Peak, t.Locked = m.position, m.peak, m.locked
}
