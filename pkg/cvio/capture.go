package cvio

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/camera"
	"github.com/teslashibe/lasershark/pkg/imaging"
)

// Capture reads frames from a local camera or stream with OpenCV.
type Capture struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	cfg    camera.Config
	format imaging.PixelFormat
	next   time.Time
}

// OpenCapture opens cfg.Device. A numeric device is a V4L2 index;
// anything else is passed to OpenCV as a path or URL.
func OpenCapture(cfg camera.Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera config: %v", errs)
	}
	format, _ := cfg.PixelFormat()

	var device interface{} = cfg.Device
	if idx, err := strconv.Atoi(cfg.Device); err == nil {
		device = idx
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", cfg.Device, err)
	}
	c := &Capture{vc: vc, mat: gocv.NewMat(), format: format}
	c.apply(cfg)

	log.Info("📷 camera opened", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
	return c, nil
}

func (c *Capture) apply(cfg camera.Config) {
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	c.vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	c.cfg = cfg
}

// Apply changes size, rate or format on the fly. It is meant for
// camera.Manager.OnConfigChange; a device change needs a reopen.
func (c *Capture) Apply(cfg camera.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.Device != c.cfg.Device {
		return fmt.Errorf("device change from %s to %s requires restart", c.cfg.Device, cfg.Device)
	}
	format, err := cfg.PixelFormat()
	if err != nil {
		return err
	}
	c.format = format
	c.apply(cfg)
	return nil
}

// Read grabs the next frame, paced to the configured frame rate.
func (c *Capture) Read(ctx context.Context, dst *imaging.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := time.Until(c.next); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.next = time.Now().Add(time.Second / time.Duration(c.cfg.Framerate))

	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return fmt.Errorf("camera %s: read failed", c.cfg.Device)
	}
	return MatToFrame(c.mat, dst, c.cfg.Width, c.cfg.Height, c.format, c.cfg.Mirror)
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mat.Close()
	return c.vc.Close()
}

var _ camera.Source = (*Capture)(nil)
