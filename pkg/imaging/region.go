// Package imaging holds the pixel buffers and fixed-kernel image operations
// used by the tracker: luminance conversion, 3x3 edge kernels and the 5x5
// peak blur.
package imaging

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when a buffer's pixel format or
	// sample type is not one the operation understands.
	ErrUnsupportedFormat = errors.New("imaging: unsupported pixel format")

	// ErrInvalidSize is returned for non-positive dimensions or buffers
	// whose sizes do not match.
	ErrInvalidSize = errors.New("imaging: invalid size")
)

// PixelFormat is the channel layout of a buffer.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGBA
	FormatBGRA
	FormatLuminance
)

// Channels returns the samples per pixel, or 0 for an unknown format.
func (f PixelFormat) Channels() int {
	switch f {
	case FormatRGBA, FormatBGRA:
		return 4
	case FormatLuminance:
		return 1
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatBGRA:
		return "bgra"
	case FormatLuminance:
		return "luminance"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a format name as advertised by a capture source.
func ParseFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(s) {
	case "rgba":
		return FormatRGBA, nil
	case "bgra":
		return FormatBGRA, nil
	case "luminance", "gray", "grey":
		return FormatLuminance, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// SampleType is the numeric type of each sample.
type SampleType int

const (
	SampleByte SampleType = iota
	SampleFloat
)

// Region is a fixed-size rectangular sample buffer. Byte samples live in Pix,
// float samples in Floats; only the one matching Type is allocated.
// Samples are stored row-major: index = y*Width + x (times channels).
type Region struct {
	Width  int
	Height int
	Format PixelFormat
	Type   SampleType
	Pix    []byte
	Floats []float32
}

// NewRegion allocates a region once. Its dimensions never change afterwards.
func NewRegion(width, height int, format PixelFormat, typ SampleType) (*Region, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	ch := format.Channels()
	if ch == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}

	r := &Region{Width: width, Height: height, Format: format, Type: typ}
	n := width * height * ch
	switch typ {
	case SampleByte:
		r.Pix = make([]byte, n)
	case SampleFloat:
		r.Floats = make([]float32, n)
	default:
		return nil, fmt.Errorf("%w: sample type %d", ErrUnsupportedFormat, typ)
	}
	return r, nil
}

// NewScalar allocates a single-channel float region, the shape of every
// derived buffer (luminance, gradients, responses).
func NewScalar(width, height int) (*Region, error) {
	return NewRegion(width, height, FormatLuminance, SampleFloat)
}

// At returns the float sample at (x, y) of a scalar region.
func (r *Region) At(x, y int) float32 {
	return r.Floats[y*r.Width+x]
}

// Set stores v at (x, y) of a scalar region.
func (r *Region) Set(x, y int, v float32) {
	r.Floats[y*r.Width+x] = v
}

// Zero clears every sample.
func (r *Region) Zero() {
	clear(r.Pix)
	clear(r.Floats)
}

// SameSize reports whether o has the same dimensions as r.
func (r *Region) SameSize(o *Region) bool {
	return r.Width == o.Width && r.Height == o.Height
}

func (r *Region) isScalar() bool {
	return r.Format == FormatLuminance && r.Type == SampleFloat
}
