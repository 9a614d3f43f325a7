package config

import "testing"

func TestSpheroPortFallback(t *testing.T) {
	t.Setenv("SPHERO_PORT", "")
	if got := SpheroPort("/dev/ttyS9"); got != "/dev/ttyS9" {
		t.Errorf("SpheroPort() = %q, want fallback", got)
	}

	t.Setenv("SPHERO_PORT", "/dev/rfcomm3")
	if got := SpheroPort("/dev/ttyS9"); got != "/dev/rfcomm3" {
		t.Errorf("SpheroPort() = %q, want /dev/rfcomm3", got)
	}
}

func TestHTTPAddr(t *testing.T) {
	t.Setenv("LASERSHARK_ADDR", "")
	if got := HTTPAddr(); got != DefaultHTTPAddr {
		t.Errorf("HTTPAddr() = %q, want %q", got, DefaultHTTPAddr)
	}
}

func TestAPIURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080",
		"10.0.0.4:9000":  "http://10.0.0.4:9000",
		"shark.lan:8080": "http://shark.lan:8080",
	}
	for in, want := range tests {
		if got := APIURL(in); got != want {
			t.Errorf("APIURL(%q) = %q, want %q", in, got, want)
		}
	}
}
