package imaging

import "fmt"

// Frame is a full host frame of 8-bit packed pixels with row 0 at the top.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int, format PixelFormat) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	ch := format.Channels()
	if ch == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	return &Frame{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    make([]byte, width*height*ch),
	}, nil
}

// Reset resizes f in place, reusing the pixel buffer when it is large
// enough. Pixel contents are undefined afterwards.
func (f *Frame) Reset(width, height int, format PixelFormat) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	ch := format.Channels()
	if ch == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	n := width * height * ch
	if cap(f.Pix) < n {
		f.Pix = make([]byte, n)
	}
	f.Pix = f.Pix[:n]
	f.Width, f.Height, f.Format = width, height, format
	return nil
}

// Stride returns the bytes per frame row.
func (f *Frame) Stride() int {
	return f.Width * f.Format.Channels()
}

// SetPixel writes one pixel given in frame order (top-left origin).
// The channel values are taken in the frame's own channel order.
func (f *Frame) SetPixel(x, y int, c ...byte) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	ch := f.Format.Channels()
	off := y*f.Stride() + x*ch
	copy(f.Pix[off:off+ch], c)
}

// ReadWindow copies the square window of side dst.Width centred on (cx, cy)
// into dst. Rows are read bottom-up: region row j holds frame row
// cy + r - j where r = dst.Height/2, and region column i holds frame column
// cx - r + i. Samples that fall outside the frame read as zero.
func (f *Frame) ReadWindow(cx, cy int, dst *Region) error {
	ch := f.Format.Channels()
	if ch != 4 {
		return fmt.Errorf("%w: frame is %v", ErrUnsupportedFormat, f.Format)
	}
	if dst.Type != SampleByte || dst.Format != f.Format {
		return fmt.Errorf("%w: window %v, frame %v", ErrUnsupportedFormat, dst.Format, f.Format)
	}
	if len(f.Pix) < f.Height*f.Stride() {
		return fmt.Errorf("%w: frame buffer short", ErrInvalidSize)
	}

	rx := dst.Width / 2
	ry := dst.Height / 2
	stride := f.Stride()
	for j := 0; j < dst.Height; j++ {
		row := dst.Pix[j*dst.Width*ch : (j+1)*dst.Width*ch]
		fy := cy + ry - j
		if fy < 0 || fy >= f.Height {
			clear(row)
			continue
		}
		x0 := cx - rx
		for i := 0; i < dst.Width; i++ {
			fx := x0 + i
			px := row[i*ch : (i+1)*ch]
			if fx < 0 || fx >= f.Width {
				clear(px)
				continue
			}
			off := fy*stride + fx*ch
			copy(px, f.Pix[off:off+ch])
		}
	}
	return nil
}

// PixelFormat reports the frame's native sample layout.
func (f *Frame) PixelFormat() PixelFormat {
	return f.Format
}
