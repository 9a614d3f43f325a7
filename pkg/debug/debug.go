// Package debug provides global debug logging flags
package debug

import (
	"fmt"
	"sync"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Tracking controls whether per-frame tracking logs are shown (peaks, recentres, steering)
// Use --debug-tracking flag to enable these very verbose logs
var Tracking bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// Logln prints a message with newline only if debug mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Println(msg)
	}
}

// TrackLog prints a message only if tracking debug mode is enabled
func TrackLog(format string, args ...interface{}) {
	if Tracking {
		fmt.Printf(format, args...)
	}
}

var (
	sampleMu sync.Mutex
	samples  = map[string]uint64{}
)

// Sample reports true on the first call and then once every n calls for key.
// Per-frame loops use it to keep tracking logs readable at 30 fps.
func Sample(key string, n uint64) bool {
	if n <= 1 {
		return true
	}
	sampleMu.Lock()
	defer sampleMu.Unlock()
	c := samples[key]
	samples[key] = c + 1
	return c%n == 0
}
