package tracking

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/lasershark/pkg/imaging"
	"github.com/teslashibe/lasershark/pkg/tracking/detection"
)

var screen = Size{W: 800, H: 480}

func TestLimit_Idempotent(t *testing.T) {
	for _, r := range []int{1, 64, 128, 200} {
		for x := -300; x <= 1100; x += 37 {
			for y := -300; y <= 800; y += 41 {
				once := Limit(r, Point{X: x, Y: y}, screen)
				twice := Limit(r, once, screen)
				if once != twice {
					t.Fatalf("r=%d (%d,%d): Limit once %v, twice %v", r, x, y, once, twice)
				}
			}
		}
	}
}

func TestLimit_KeepsWindowInside(t *testing.T) {
	for _, r := range []int{1, 64, 128, 239} {
		for x := -500; x <= 1300; x += 13 {
			for y := -500; y <= 1000; y += 17 {
				p := Limit(r, Point{X: x, Y: y}, screen)
				if p.X-r < 0 || p.X+r >= screen.W {
					t.Fatalf("r=%d x=%d -> %d leaves frame width", r, x, p.X)
				}
				if p.Y-r < 0 || p.Y+r >= screen.H {
					t.Fatalf("r=%d y=%d -> %d leaves frame height", r, y, p.Y)
				}
			}
		}
	}
}

func TestLimit_Edges(t *testing.T) {
	tests := []struct {
		name string
		in   Point
		want Point
	}{
		{"inside", Point{400, 240}, Point{400, 240}},
		{"left", Point{10, 240}, Point{64, 240}},
		{"right edge exact", Point{736, 240}, Point{735, 240}},
		{"top", Point{400, -20}, Point{400, 64}},
		{"bottom", Point{400, 479}, Point{400, 415}},
		{"corner", Point{-5, 900}, Point{64, 415}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Limit(64, tc.in, screen); got != tc.want {
				t.Errorf("Limit(64, %v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTouch2Normalization(t *testing.T) {
	tl, br := NormalizeRect(Point{500, 100}, Point{300, 50})
	if diff := cmp.Diff([]Point{{300, 50}, {500, 100}}, []Point{tl, br}); diff != "" {
		t.Errorf("NormalizeRect mismatch (-want +got):\n%s", diff)
	}
	if mid := Midpoint(tl, br); mid != (Point{400, 75}) {
		t.Errorf("Midpoint = %v, want (400,75)", mid)
	}
}

func TestRecenter(t *testing.T) {
	tgt, err := NewTarget("laser", 64, detection.KindBlur, imaging.FormatBGRA, screen)
	if err != nil {
		t.Fatal(err)
	}
	tgt.Position = Point{400, 240}

	got := tgt.Recenter(detection.Peak{X: 70, Y: 50})
	if got != (Point{406, 254}) {
		t.Errorf("Recenter = %v, want (406,254)", got)
	}

	// peak at the window centre leaves the position alone
	if got := tgt.Recenter(detection.Peak{X: 64, Y: 64}); got != tgt.Position {
		t.Errorf("Recenter(centre) = %v, want %v", got, tgt.Position)
	}
}

// brightFrame returns a BGRA frame with a single white pixel at (x, y)
func brightFrame(t *testing.T, x, y int) *imaging.Frame {
	t.Helper()
	f, err := imaging.NewFrame(screen.W, screen.H, imaging.FormatBGRA)
	if err != nil {
		t.Fatal(err)
	}
	f.SetPixel(x, y, 255, 255, 255, 255)
	return f
}

func TestTargetStep_EndToEnd(t *testing.T) {
	tgt, err := NewTarget("laser", 64, detection.KindBlur, imaging.FormatBGRA, screen)
	if err != nil {
		t.Fatal(err)
	}
	tgt.Position = Point{400, 240}

	// window-local (70,50) is frame (400-64+70, 240+64-50)
	peak, err := tgt.Step(brightFrame(t, 406, 254))
	if err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if peak.X != 70 || peak.Y != 50 {
		t.Errorf("Expected peak at window (70,50), got (%d,%d)", peak.X, peak.Y)
	}
	if tgt.Position != (Point{406, 254}) {
		t.Errorf("Expected position (406,254), got %v", tgt.Position)
	}
	if Limit(64, tgt.Position, screen) != tgt.Position {
		t.Error("Position should already satisfy the clamp")
	}
	if !tgt.Locked {
		t.Error("Target should be locked without a threshold")
	}
}

func TestTargetStep_GradientEndToEnd(t *testing.T) {
	tgt, err := NewTarget("sphero", 64, detection.KindGradient, imaging.FormatBGRA, screen)
	if err != nil {
		t.Fatal(err)
	}
	tgt.Position = Point{400, 240}

	// A lone pixel at window (71,50) gives equal edge responses at its four
	// neighbours; the x-outer scan settles on (70,50).
	peak, err := tgt.Step(brightFrame(t, 407, 254))
	if err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if peak.X != 70 || peak.Y != 50 {
		t.Errorf("Expected peak at window (70,50), got (%d,%d)", peak.X, peak.Y)
	}
	if peak.Value <= 0 {
		t.Errorf("Expected a positive edge response, got %v", peak.Value)
	}
	if tgt.Position != (Point{406, 254}) {
		t.Errorf("Expected position (406,254), got %v", tgt.Position)
	}
	if !tgt.Locked {
		t.Error("Target should be locked without a threshold")
	}
}

func TestTargetStep_ClampsAfterRecentre(t *testing.T) {
	tgt, _ := NewTarget("laser", 64, detection.KindBlur, imaging.FormatBGRA, screen)
	tgt.Position = Point{70, 240}

	// dot near the left edge of the window pulls the centre off screen
	if _, err := tgt.Step(brightFrame(t, 10, 240)); err != nil {
		t.Fatal(err)
	}
	if tgt.Position.X != 64 {
		t.Errorf("Expected clamp to x=64, got %d", tgt.Position.X)
	}
}

func TestTargetStep_FeaturelessFrameSnapsToOrigin(t *testing.T) {
	tgt, _ := NewTarget("sphero", 128, detection.KindGradient, imaging.FormatBGRA, screen)
	tgt.Position = Point{400, 240}

	f, _ := imaging.NewFrame(screen.W, screen.H, imaging.FormatBGRA)
	peak, err := tgt.Step(f)
	if err != nil {
		t.Fatal(err)
	}
	if peak != (detection.Peak{}) {
		t.Errorf("Expected zero peak, got %+v", peak)
	}
	// (0,0) peak moves by (-128, +128) then clamps
	want := Limit(128, Point{400 - 128, 240 + 128}, screen)
	if tgt.Position != want {
		t.Errorf("Expected %v, got %v", want, tgt.Position)
	}
}

func TestTargetStep_ThresholdGate(t *testing.T) {
	tgt, _ := NewTarget("laser", 64, detection.KindBlur, imaging.FormatBGRA, screen)
	tgt.Position = Point{400, 240}
	tgt.threshold = 0.5

	// a single pixel blurs to 0.16, below the gate
	if _, err := tgt.Step(brightFrame(t, 406, 254)); err != nil {
		t.Fatal(err)
	}
	if tgt.Position != (Point{400, 240}) {
		t.Errorf("Gated target should not move, got %v", tgt.Position)
	}
	if tgt.Locked {
		t.Error("Gated target should not be locked")
	}
}

type formatOnly imaging.PixelFormat

func (f formatOnly) PixelFormat() imaging.PixelFormat { return imaging.PixelFormat(f) }
func (f formatOnly) ReadWindow(int, int, *imaging.Region) error {
	return errors.New("should not be called")
}

func TestTargetStep_UnsupportedFormat(t *testing.T) {
	tgt, _ := NewTarget("laser", 64, detection.KindBlur, imaging.FormatBGRA, screen)
	before := tgt.Position

	_, err := tgt.Step(formatOnly(imaging.FormatLuminance))
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if tgt.Position != before {
		t.Errorf("Position changed on error: %v -> %v", before, tgt.Position)
	}
}

func TestTargetStep_AdoptsRGBA(t *testing.T) {
	tgt, _ := NewTarget("laser", 64, detection.KindBlur, imaging.FormatBGRA, screen)
	tgt.Position = Point{400, 240}

	f, _ := imaging.NewFrame(screen.W, screen.H, imaging.FormatRGBA)
	f.SetPixel(406, 254, 255, 255, 255, 255)
	if _, err := tgt.Step(f); err != nil {
		t.Fatalf("Step(RGBA) error: %v", err)
	}
	if tgt.Window().Format != imaging.FormatRGBA {
		t.Errorf("Window format = %v, want rgba", tgt.Window().Format)
	}
	if tgt.Position != (Point{406, 254}) {
		t.Errorf("Expected (406,254), got %v", tgt.Position)
	}
}

func TestNewTarget_InvalidRadius(t *testing.T) {
	if _, err := NewTarget("bad", 0, detection.KindBlur, imaging.FormatBGRA, screen); !errors.Is(err, imaging.ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}
