package debug

import "testing"

func TestSample(t *testing.T) {
	hits := 0
	for i := 0; i < 30; i++ {
		if Sample("test-frames", 10) {
			hits++
		}
	}
	if hits != 3 {
		t.Errorf("Sample hits = %d, want 3", hits)
	}

	if !Sample("always", 1) || !Sample("always", 0) {
		t.Error("Sample with n<=1 should always be true")
	}
}
