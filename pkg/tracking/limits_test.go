package tracking

import (
	"math"
	"testing"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalize360(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{359.5, 359.5},
		{360, 0},
		{720, 0},
		{-360, 0},
		{-1080, 0},
		{-90, 270},
		{450, 90},
		{-450, 270},
		{1e6 + 45, math.Mod(1e6+45, 360)},
	}

	for _, tc := range tests {
		if got := Normalize360(tc.in); !floatEquals(got, tc.want) {
			t.Errorf("Normalize360(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalize360_RangeAndCongruence(t *testing.T) {
	for a := -3600.0; a <= 3600; a += 7.25 {
		got := Normalize360(a)
		if got < 0 || got >= 360 {
			t.Fatalf("Normalize360(%v) = %v out of [0,360)", a, got)
		}
		k := (a - got) / 360
		if !floatEquals(k, math.Round(k)) {
			t.Fatalf("Normalize360(%v) = %v not congruent mod 360", a, got)
		}
	}

	// tiny negative values must not round up to 360
	if got := Normalize360(-1e-15); got < 0 || got >= 360 {
		t.Errorf("Normalize360(-1e-15) = %v", got)
	}
}

func TestNormalize360_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Normalize360(v); got != 0 {
			t.Errorf("Normalize360(%v) = %v, want 0", v, got)
		}
	}
}

func TestDegreesRadians(t *testing.T) {
	if !floatEquals(Radians(180), math.Pi) {
		t.Errorf("Radians(180) = %v", Radians(180))
	}
	if !floatEquals(Degrees(math.Pi/2), 90) {
		t.Errorf("Degrees(pi/2) = %v", Degrees(math.Pi/2))
	}
	if !floatEquals(Degrees(Radians(27.7)), 27.7) {
		t.Error("Degrees(Radians(x)) should round-trip")
	}
}
