// Package cvio moves frames between OpenCV and the tracker: camera
// capture, JPEG decode of uploaded frames and JPEG encode of overlays.
package cvio

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/lasershark/pkg/imaging"
)

// colorCode returns the conversion from OpenCV's BGR to format.
func colorCode(format imaging.PixelFormat) (gocv.ColorConversionCode, error) {
	switch format {
	case imaging.FormatBGRA:
		return gocv.ColorBGRToBGRA, nil
	case imaging.FormatRGBA:
		return gocv.ColorBGRToRGBA, nil
	}
	return 0, fmt.Errorf("%w: %v", imaging.ErrUnsupportedFormat, format)
}

// MatToFrame converts a BGR mat into dst, resizing to width x height when
// they are non-zero and mirroring horizontally if asked.
func MatToFrame(src gocv.Mat, dst *imaging.Frame, width, height int, format imaging.PixelFormat, mirror bool) error {
	if src.Empty() {
		return fmt.Errorf("%w: empty image", imaging.ErrInvalidSize)
	}
	code, err := colorCode(format)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		width, height = src.Cols(), src.Rows()
	}

	work := src
	if src.Cols() != width || src.Rows() != height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
		work = resized
	}
	if mirror {
		flipped := gocv.NewMat()
		defer flipped.Close()
		gocv.Flip(work, &flipped, 1)
		work = flipped
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.CvtColor(work, &out, code)

	if err := dst.Reset(width, height, format); err != nil {
		return err
	}
	copy(dst.Pix, out.ToBytes())
	return nil
}

// FrameToMat copies a 4-channel frame into a new BGR mat. The caller
// closes it.
func FrameToMat(f *imaging.Frame) (gocv.Mat, error) {
	var code gocv.ColorConversionCode
	switch f.Format {
	case imaging.FormatBGRA:
		code = gocv.ColorBGRAToBGR
	case imaging.FormatRGBA:
		code = gocv.ColorRGBAToBGR
	default:
		return gocv.NewMat(), fmt.Errorf("%w: %v", imaging.ErrUnsupportedFormat, f.Format)
	}

	src, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC4, f.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame to mat: %w", err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(src, &bgr, code)
	return bgr, nil
}

// Decoder decodes JPEG uploads into tracker frames of a fixed size.
type Decoder struct {
	Width  int
	Height int
	Format imaging.PixelFormat
}

// Decode implements camera.DecodeFunc.
func (d Decoder) Decode(data []byte, dst *imaging.Frame) error {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decode jpeg: %w", err)
	}
	defer img.Close()
	return MatToFrame(img, dst, d.Width, d.Height, d.Format, false)
}

// EncodeJPEG encodes a BGR mat at the given quality.
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
