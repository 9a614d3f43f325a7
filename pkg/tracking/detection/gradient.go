package detection

import (
	"fmt"

	"github.com/teslashibe/lasershark/pkg/imaging"
)

// GradientDetector finds the strongest edge in a window
type GradientDetector struct {
	lum  *imaging.Region
	gx   *imaging.Region
	gy   *imaging.Region
	resp *imaging.Region
}

// NewGradientDetector allocates the derived buffers for a size x size window
func NewGradientDetector(size int) (*GradientDetector, error) {
	bufs, err := scalars(size, 4)
	if err != nil {
		return nil, fmt.Errorf("gradient detector: %w", err)
	}
	return &GradientDetector{lum: bufs[0], gx: bufs[1], gy: bufs[2], resp: bufs[3]}, nil
}

// Detect computes luminance, both Sobel responses and the squared magnitude
func (d *GradientDetector) Detect(window *imaging.Region) (Peak, error) {
	if err := imaging.Luminance(window, d.lum); err != nil {
		return Peak{}, err
	}
	if err := imaging.Edges3x3(d.lum, d.gx, d.gy); err != nil {
		return Peak{}, err
	}
	if err := GradientResponse(d.gx, d.gy, d.resp); err != nil {
		return Peak{}, err
	}
	return LocatePeak(d.resp), nil
}

// Response returns the squared gradient magnitude of the last window
func (d *GradientDetector) Response() *imaging.Region {
	return d.resp
}

// BlurDetector finds the brightest blurred spot in a window
type BlurDetector struct {
	lum  *imaging.Region
	resp *imaging.Region
}

// NewBlurDetector allocates the derived buffers for a size x size window
func NewBlurDetector(size int) (*BlurDetector, error) {
	bufs, err := scalars(size, 2)
	if err != nil {
		return nil, fmt.Errorf("blur detector: %w", err)
	}
	return &BlurDetector{lum: bufs[0], resp: bufs[1]}, nil
}

// Detect computes luminance and convolves it with the peak kernel
func (d *BlurDetector) Detect(window *imaging.Region) (Peak, error) {
	if err := imaging.Luminance(window, d.lum); err != nil {
		return Peak{}, err
	}
	if err := imaging.Convolve(d.lum, d.resp, imaging.PeakKernel); err != nil {
		return Peak{}, err
	}
	return LocatePeak(d.resp), nil
}

// Response returns the blurred luminance of the last window
func (d *BlurDetector) Response() *imaging.Region {
	return d.resp
}

func scalars(size, n int) ([]*imaging.Region, error) {
	out := make([]*imaging.Region, n)
	for i := range out {
		r, err := imaging.NewScalar(size, size)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

var (
	_ Detector = (*GradientDetector)(nil)
	_ Detector = (*BlurDetector)(nil)
)
