package imaging

import "fmt"

// Rec. 601 luma weights.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

// Luminance converts an 8-bit BGRA or RGBA region into the float luminance
// region dst (values in [0,1]). Both regions must have the same size.
func Luminance(src, dst *Region) error {
	if !src.SameSize(dst) {
		return fmt.Errorf("%w: %dx%d -> %dx%d", ErrInvalidSize, src.Width, src.Height, dst.Width, dst.Height)
	}
	if !dst.isScalar() || src.Type != SampleByte {
		return fmt.Errorf("%w: luminance %v/%d -> %v/%d", ErrUnsupportedFormat, src.Format, src.Type, dst.Format, dst.Type)
	}

	var ri, bi int
	switch src.Format {
	case FormatRGBA:
		ri, bi = 0, 2
	case FormatBGRA:
		ri, bi = 2, 0
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, src.Format)
	}

	pix := src.Pix
	for i := range dst.Floats {
		p := pix[i*4 : i*4+4]
		l := weightR*float32(p[ri]) + weightG*float32(p[1]) + weightB*float32(p[bi])
		dst.Floats[i] = l / 255
	}
	return nil
}
