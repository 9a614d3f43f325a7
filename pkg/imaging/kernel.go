package imaging

import "fmt"

// Kernel is a square, odd-sized convolution kernel stored row-major.
type Kernel struct {
	Size    int
	Weights []float32
}

// Border returns the number of samples on each edge the kernel cannot reach.
func (k Kernel) Border() int {
	return k.Size / 2
}

// SobelX is the horizontal 3x3 edge kernel.
var SobelX = Kernel{Size: 3, Weights: []float32{
	-1.0 / 4, 0, 1.0 / 4,
	-2.0 / 4, 0, 2.0 / 4,
	-1.0 / 4, 0, 1.0 / 4,
}}

// SobelY is the vertical 3x3 edge kernel.
var SobelY = Kernel{Size: 3, Weights: []float32{
	1.0 / 4, 2.0 / 4, 1.0 / 4,
	0, 0, 0,
	-1.0 / 4, -2.0 / 4, -1.0 / 4,
}}

// PeakKernel is the normalised 5x5 blur used to find a bright dot.
var PeakKernel = Kernel{Size: 5, Weights: []float32{
	0.5 / 50, 1.0 / 50, 2.0 / 50, 1.0 / 50, 0.5 / 50,
	1.0 / 50, 2.0 / 50, 4.0 / 50, 2.0 / 50, 1.0 / 50,
	2.0 / 50, 4.0 / 50, 8.0 / 50, 4.0 / 50, 2.0 / 50,
	1.0 / 50, 2.0 / 50, 4.0 / 50, 2.0 / 50, 1.0 / 50,
	0.5 / 50, 1.0 / 50, 2.0 / 50, 1.0 / 50, 0.5 / 50,
}}

// Convolve applies k to the scalar region src and writes dst over the valid
// region [b, w-1-b] x [b, h-1-b], b = k.Border(). Samples in the border are
// not written and keep whatever dst held.
func Convolve(src, dst *Region, k Kernel) error {
	if k.Size%2 == 0 || len(k.Weights) != k.Size*k.Size {
		return fmt.Errorf("%w: kernel %d with %d weights", ErrInvalidSize, k.Size, len(k.Weights))
	}
	if !src.SameSize(dst) {
		return fmt.Errorf("%w: %dx%d -> %dx%d", ErrInvalidSize, src.Width, src.Height, dst.Width, dst.Height)
	}
	if !src.isScalar() || !dst.isScalar() {
		return fmt.Errorf("%w: convolve needs float luminance", ErrUnsupportedFormat)
	}

	b := k.Border()
	w := src.Width
	for y := b; y < src.Height-b; y++ {
		for x := b; x < w-b; x++ {
			var sum float32
			for j := 0; j < k.Size; j++ {
				row := (y+j-b)*w + x - b
				kr := k.Weights[j*k.Size : (j+1)*k.Size]
				for i, kv := range kr {
					sum += kv * src.Floats[row+i]
				}
			}
			dst.Floats[y*w+x] = sum
		}
	}
	return nil
}

// Edges3x3 computes the horizontal and vertical edge responses of lum.
func Edges3x3(lum, gx, gy *Region) error {
	if err := Convolve(lum, gx, SobelX); err != nil {
		return fmt.Errorf("sobel x: %w", err)
	}
	if err := Convolve(lum, gy, SobelY); err != nil {
		return fmt.Errorf("sobel y: %w", err)
	}
	return nil
}
