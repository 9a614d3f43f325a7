package tracking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/teslashibe/lasershark/pkg/imaging"
)

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return tr
}

func TestNew_DefaultPositions(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())

	for _, name := range []string{SpheroTarget, LaserTarget} {
		st, ok := tr.Target(name)
		if !ok {
			t.Fatalf("Target %q missing", name)
		}
		if st.Position != (Point{400, 240}) {
			t.Errorf("%s: Expected default (400,240), got %v", name, st.Position)
		}
	}
	if _, ok := tr.Target("shark"); ok {
		t.Error("Unknown target should not be found")
	}
	if tr.Calibrated() {
		t.Error("New tracker should not be calibrated")
	}
	if tr.Speed() != 0 {
		t.Errorf("New tracker speed = %v, want 0", tr.Speed())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := map[string]func(*Config){
		"zero radius":    func(c *Config) { c.BallRadius = 0 },
		"window too big": func(c *Config) { c.LaserRadius = 240 },
		"bad throttle":   func(c *Config) { c.Throttle = 1.5 },
		"bad mode":       func(c *Config) { c.Mode = "wander" },
		"no height":      func(c *Config) { c.CameraHeight = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if tr, err := New(cfg); err == nil || tr != nil {
				t.Errorf("Expected error and nil tracker, got %v, %v", tr, err)
			}
		})
	}
}

func TestTouch1_ClampsLaser(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())

	if got := tr.Touch1(10, 470); got != (Point{64, 415}) {
		t.Errorf("Touch1 clamp = %v, want (64,415)", got)
	}
	if got := tr.Touch1(250, 300); got != (Point{250, 300}) {
		t.Errorf("Touch1 inside = %v, want (250,300)", got)
	}
}

func TestTouch2_ClampsBallAndArms(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.SetPhoneOrientation(-45, 0, 100)
	tr.SetSpheroOrientation(0, 0, 40)

	got := tr.Touch2(500, 100, 300, 50)
	if got != (Point{400, 128}) {
		t.Errorf("Touch2 = %v, want midpoint (400,75) clamped to (400,128)", got)
	}
	if !tr.Calibrated() {
		t.Fatal("Two-finger gesture should arm driving")
	}
	if snap := tr.Snapshot(); snap.Calibrated {
		t.Error("Snapshot should only change on the next frame")
	}

	// a second gesture does not re-run calibration
	tr.SetSpheroOrientation(0, 0, 10)
	tr.Touch2(300, 300, 500, 400)
	if off := tr.Offset(); off != 60 {
		t.Errorf("Offset = %v, want 100-40 = 60 from the first gesture", off)
	}
	if got := tr.Calibrate(); got != 90 {
		t.Errorf("Calibrate = %v, want 100-10 = 90", got)
	}
}

func TestDraw_SteersTowardBoresight(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.SetPhoneOrientation(-40, 0, 0)
	tr.Calibrate()

	f, _ := imaging.NewFrame(800, 480, imaging.FormatBGRA)
	res, err := tr.Draw(f)
	if err != nil {
		t.Fatalf("Draw error: %v", err)
	}

	if res.Frame != 1 || res.Skipped {
		t.Errorf("Unexpected frame bookkeeping: %+v", res)
	}
	if tr.Speed() != 0.4 {
		t.Errorf("Armed speed = %v, want 0.4", tr.Speed())
	}
	// featureless frame pulls the sphero window down and left of centre,
	// so the boresight is ahead and to the right of it
	g := tr.GoalHeading()
	if g <= 0 || g >= 90 {
		t.Errorf("GoalHeading = %d, want between 0 and 90", g)
	}
	if res.Boresight.Y <= 0 {
		t.Errorf("Boresight should be ahead of the camera, got %+v", res.Boresight)
	}
}

func TestDraw_LaserMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeLaser
	tr := newTestTracker(t, cfg)
	tr.SetPhoneOrientation(-40, 0, 0)
	tr.Calibrate()

	f, _ := imaging.NewFrame(800, 480, imaging.FormatBGRA)
	f.SetPixel(406, 254, 255, 255, 255, 255)

	res, err := tr.Draw(f)
	if err != nil {
		t.Fatal(err)
	}
	if res.Laser.Position != (Point{406, 254}) {
		t.Errorf("Laser = %v, want (406,254)", res.Laser.Position)
	}
	if diff := cmp.Diff(res.Laser.Ground, res.Reference); diff != "" {
		t.Errorf("Laser mode should steer toward the laser (-laser +reference):\n%s", diff)
	}
}

func TestDraw_UnsupportedFormatSkips(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.Touch1(300, 200)
	before := tr.Snapshot()

	gray := &imaging.Frame{Width: 800, Height: 480, Format: imaging.FormatLuminance, Pix: make([]byte, 800*480)}
	res, err := tr.Draw(gray)
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if !res.Skipped {
		t.Error("Result should be marked skipped")
	}

	opts := cmpopts.IgnoreFields(FrameResult{}, "Skipped")
	if diff := cmp.Diff(before, res, opts); diff != "" {
		t.Errorf("Skipped frame changed state (-before +after):\n%s", diff)
	}
	for _, name := range []string{SpheroTarget, LaserTarget} {
		st, _ := tr.Target(name)
		want := before.Sphero.Position
		if name == LaserTarget {
			want = Point{300, 200}
		}
		if st.Position != want {
			t.Errorf("%s moved on skipped frame: %v", name, st.Position)
		}
	}
	if tr.Stats().Skipped != 1 {
		t.Errorf("Skipped count = %d, want 1", tr.Stats().Skipped)
	}
}

func TestDraw_DisarmedHasZeroSpeed(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.Calibrate()
	tr.Disarm()

	f, _ := imaging.NewFrame(800, 480, imaging.FormatBGRA)
	if _, err := tr.Draw(f); err != nil {
		t.Fatal(err)
	}
	if tr.Speed() != 0 {
		t.Errorf("Disarmed speed = %v, want 0", tr.Speed())
	}
}

func TestResize(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.Touch1(700, 400)

	if err := tr.Resize(640, 360); err != nil {
		t.Fatalf("Resize error: %v", err)
	}
	st, _ := tr.Target(LaserTarget)
	if st.Position != (Point{575, 295}) {
		t.Errorf("Laser after resize = %v, want (575,295)", st.Position)
	}
	if tr.Config().ScreenWidth != 640 {
		t.Errorf("Config width = %d, want 640", tr.Config().ScreenWidth)
	}

	if err := tr.Resize(200, 200); !errors.Is(err, imaging.ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize for tiny screen, got %v", err)
	}
}

func TestTuningParams(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())

	tr.SetTuningParams(TuningParams{Throttle: 0.7, Mode: ModeLaser, PeakThreshold: 0.3, CameraHeight: 6})
	got := tr.GetTuningParams()
	if got.Throttle != 0.7 || got.Mode != ModeLaser || got.CameraHeight != 6 {
		t.Errorf("Unexpected params: %+v", got)
	}
	if !floatEquals(got.PeakThreshold, float64(float32(0.3))) {
		t.Errorf("PeakThreshold = %v", got.PeakThreshold)
	}

	// zero leaves values alone, negative clears the gate
	tr.SetTuningParams(TuningParams{PeakThreshold: -1})
	got = tr.GetTuningParams()
	if got.PeakThreshold != 0 || got.Throttle != 0.7 {
		t.Errorf("Unexpected params after partial update: %+v", got)
	}
}

func TestTracker_Concurrency(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	f, _ := imaging.NewFrame(800, 480, imaging.FormatBGRA)

	var wg sync.WaitGroup
	deadline := time.Now().Add(50 * time.Millisecond)

	wg.Add(4)
	go func() {
		defer wg.Done()
		for time.Now().Before(deadline) {
			tr.Draw(f)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; time.Now().Before(deadline); i++ {
			tr.SetPhoneOrientation(-30, 0, float64(i%360))
			tr.SetSpheroOrientation(0, 0, float64(i%360))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; time.Now().Before(deadline); i++ {
			tr.Touch1(i%800, i%480)
			tr.Touch2(i%800, 0, 0, i%480)
		}
	}()
	go func() {
		defer wg.Done()
		for time.Now().Before(deadline) {
			_ = tr.GoalHeading()
			_ = tr.Speed()
			_ = tr.Snapshot()
		}
	}()
	wg.Wait()

	if tr.Stats().Frames == 0 {
		t.Error("Expected at least one frame")
	}
}
