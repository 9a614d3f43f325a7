package overlay

import (
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/lasershark/pkg/cvio"
	"github.com/teslashibe/lasershark/pkg/imaging"
	"github.com/teslashibe/lasershark/pkg/tracking"
)

// Renderer draws overlays and encodes the result for the dashboard
type Renderer struct {
	mu   sync.Mutex
	opts Options
}

// NewRenderer creates a renderer
func NewRenderer(opts Options) *Renderer {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultOptions().Quality
	}
	return &Renderer{opts: opts}
}

// SetOptions replaces the drawing options
func (r *Renderer) SetOptions(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = r.opts.Quality
	}
	r.opts = opts
}

// Options returns the current drawing options
func (r *Renderer) Options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// Render draws res over frame and returns a JPEG
func (r *Renderer) Render(frame *imaging.Frame, res tracking.FrameResult, stats tracking.StatsSnapshot) ([]byte, error) {
	opts := r.Options()

	img, err := cvio.FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	Draw(&img, res, stats, opts)
	return cvio.EncodeJPEG(img, opts.Quality)
}

// Draw paints the overlay onto img in place
func Draw(img *gocv.Mat, res tracking.FrameResult, stats tracking.StatsSnapshot, opts Options) {
	if opts.Boresight {
		c := res.Screen.Center()
		gocv.Line(img, image.Pt(c.X-12, c.Y), image.Pt(c.X+12, c.Y), BoresightColor, 1)
		gocv.Line(img, image.Pt(c.X, c.Y-12), image.Pt(c.X, c.Y+12), BoresightColor, 1)
	}

	drawTarget(img, res.Sphero, windowColor(res.Sphero, SpheroColor), opts)
	drawTarget(img, res.Laser, windowColor(res.Laser, LaserColor), opts)

	if opts.HUD {
		for i, line := range HUDLines(res, stats) {
			pt := image.Pt(10, 22+i*20)
			gocv.PutText(img, line, pt, gocv.FontHersheySimplex, 0.5, TextColor, 1)
		}
	}
}

func drawTarget(img *gocv.Mat, s tracking.TargetState, c color.RGBA, opts Options) {
	if opts.Windows {
		gocv.Rectangle(img, WindowRect(s), c, 2)
		gocv.PutText(img, s.Name, image.Pt(s.Position.X-s.Radius, s.Position.Y-s.Radius-6),
			gocv.FontHersheySimplex, 0.45, c, 1)
	}
	if opts.Peaks {
		gocv.Circle(img, image.Pt(s.PeakAt.X, s.PeakAt.Y), 4, c, 2)
	}
}
