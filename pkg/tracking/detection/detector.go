// Package detection locates the strongest response inside a search window
package detection

import (
	"fmt"

	"github.com/teslashibe/lasershark/pkg/imaging"
)

// Peak is the strongest response in a window, in window coordinates
type Peak struct {
	X, Y  int
	Value float32
}

// Detector turns a captured color window into a peak
type Detector interface {
	// Detect computes the window's response buffer and locates its peak
	Detect(window *imaging.Region) (Peak, error)

	// Response returns the last scalar response buffer (for debug views)
	Response() *imaging.Region
}

// Kind selects the response a detector computes
type Kind string

const (
	KindGradient Kind = "gradient" // squared Sobel magnitude, for edged objects (sphero)
	KindBlur     Kind = "blur"     // 5x5 peak blur of luminance, for a bright dot (laser)
)

// New builds a detector of the given kind for a square window of side size
func New(kind Kind, size int) (Detector, error) {
	switch kind {
	case KindGradient:
		return NewGradientDetector(size)
	case KindBlur:
		return NewBlurDetector(size)
	default:
		return nil, fmt.Errorf("unknown detector kind %q", kind)
	}
}

// LocatePeak scans resp for its strict maximum. The scan runs x outer, y
// inner, so ties keep the first maximum in that order. The search starts at
// (0,0) with value 0: an all-zero (or all-negative) buffer yields (0,0,0).
func LocatePeak(resp *imaging.Region) Peak {
	var p Peak
	w := resp.Width
	for x := 0; x < w; x++ {
		for y := 0; y < resp.Height; y++ {
			if v := resp.Floats[w*y+x]; v > p.Value {
				p = Peak{X: x, Y: y, Value: v}
			}
		}
	}
	return p
}

// GradientResponse writes gx^2 + gy^2 into dst. The square root is skipped
// since only the ordering matters.
func GradientResponse(gx, gy, dst *imaging.Region) error {
	if !gx.SameSize(gy) || !gx.SameSize(dst) {
		return fmt.Errorf("%w: gradient buffers differ in size", imaging.ErrInvalidSize)
	}
	for i, x := range gx.Floats {
		y := gy.Floats[i]
		dst.Floats[i] = x*x + y*y
	}
	return nil
}
