package lasershark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/camera"
	"github.com/teslashibe/lasershark/pkg/cvio"
	"github.com/teslashibe/lasershark/pkg/debug"
	"github.com/teslashibe/lasershark/pkg/imaging"
	"github.com/teslashibe/lasershark/pkg/overlay"
	"github.com/teslashibe/lasershark/pkg/phone"
	"github.com/teslashibe/lasershark/pkg/protocol"
	"github.com/teslashibe/lasershark/pkg/robot"
	"github.com/teslashibe/lasershark/pkg/sphero"
	"github.com/teslashibe/lasershark/pkg/tracking"
	"github.com/teslashibe/lasershark/pkg/video"
	"github.com/teslashibe/lasershark/pkg/web"
)

// App is the main LaserShark application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	tracker *tracking.Tracker
	drive   *robot.DriveController

	// Sphero: the serial client when a port is configured, otherwise the
	// phones relay steer commands
	ball       robot.Sphero
	client     *sphero.Client
	stopSphero context.CancelFunc
	spheroDone chan struct{}

	// Frames
	source    camera.Source
	queue     *camera.Queue
	capture   *cvio.Capture
	cameraMgr *camera.Manager
	video     *video.Client
	renderer  *overlay.Renderer

	phones *phone.Hub
	web    *web.Server
}

// New creates a new LaserShark application with the given configuration.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Tracking = cfg.DebugTracking

	return &App{
		config: cfg,
		logger: log.With("component", "app"),
	}, nil
}

// Init initializes all components.
// Call this after New() and before Run().
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("🦈 LaserShark starting", "source", a.config.Source, "addr", a.config.HTTPAddr)
	if debug.Enabled {
		a.logger.Info("🐛 debug mode enabled", "tracking", debug.Tracking)
	}

	tr, err := tracking.New(a.config.Tracking)
	if err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	a.tracker = tr

	a.web = web.NewServer(a.config.HTTPAddr, tr, a.config.StaticDir)
	a.phones = phone.NewHub(a.config.Tracking.TouchRate)
	a.phones.RegisterRoutes(a.web.App())
	a.phones.RegisterAPIRoutes(a.web.App().Group("/api"))
	a.wirePhones()

	if err := a.initSource(ctx); err != nil {
		return fmt.Errorf("frame source: %w", err)
	}
	if err := a.initSphero(); err != nil {
		return fmt.Errorf("sphero: %w", err)
	}
	if a.config.OverlayFPS > 0 {
		opts := overlay.DefaultOptions()
		opts.Quality = a.config.Camera.Quality
		a.renderer = overlay.NewRenderer(opts)
	}

	a.web.AddStats("drive", func() any { return a.drive.Stats() })
	a.web.AddStats("phones", func() any { return a.phones.GetStats() })
	if a.queue != nil {
		a.web.AddStats("queue", func() any { return a.queue.Stats() })
	}
	if a.video != nil {
		a.web.AddStats("video", func() any { return a.video.Stats() })
	}
	return nil
}

func (a *App) initSource(ctx context.Context) error {
	switch a.config.Source {
	case SourceCamera:
		capture, err := cvio.OpenCapture(a.config.Camera)
		if err != nil {
			return err
		}
		a.capture = capture
		a.source = capture
		if err := a.tracker.Resize(a.config.Camera.Width, a.config.Camera.Height); err != nil {
			return err
		}

		a.cameraMgr = camera.NewManager(a.config.Camera)
		a.cameraMgr.OnConfigChange = func(cfg camera.Config) error {
			if err := capture.Apply(cfg); err != nil {
				return err
			}
			return a.tracker.Resize(cfg.Width, cfg.Height)
		}
		a.web.OnGetCameraConfig = func() interface{} {
			return a.cameraMgr.GetConfigJSON()
		}
		a.web.OnSetCameraConfig = func(params map[string]interface{}) error {
			if err := a.cameraMgr.UpdateConfig(params); err != nil {
				return err
			}
			cfg := a.cameraMgr.GetConfig()
			a.logger.Info("📷 camera config updated", "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
			return nil
		}

	case SourcePhone:
		a.queue = camera.NewQueue(a.decodeFrame)
		a.source = a.queue

	case SourceWebRTC:
		a.queue = camera.NewQueue(a.decodeFrame)
		a.source = a.queue

		interval := time.Second / time.Duration(max(a.config.Camera.Framerate, 1))
		a.video = video.NewClient(a.config.SignalURL, a.config.Producer, video.NewFastDecoder(interval), a.queue.Push)
		if err := a.video.Connect(ctx); err != nil {
			return fmt.Errorf("webrtc: %w", err)
		}
	}
	return nil
}

// decodeFrame decodes pushed JPEGs straight to the tracker's screen size
func (a *App) decodeFrame(data []byte, dst *imaging.Frame) error {
	screen := a.tracker.Config().Screen()
	dec := cvio.Decoder{Width: screen.W, Height: screen.H, Format: a.config.Tracking.CaptureFormat}
	return dec.Decode(data, dst)
}

func (a *App) initSphero() error {
	if a.config.SpheroPort == "" {
		a.logger.Info("📱 no sphero port, steering through connected phones")
		a.ball = newPhoneSphero(a.phones)
	} else {
		opts := sphero.DefaultPortOptions()
		opts.BaudRate = a.config.SpheroBaud
		client, err := sphero.Open(a.config.SpheroPort, opts)
		if err != nil {
			return err
		}
		client.OnAttitude = func(att sphero.Attitude) {
			a.tracker.SetSpheroOrientation(att.Pitch, att.Roll, att.Yaw)
		}
		client.OnPower = func(state byte) {
			a.web.AddLog("info", fmt.Sprintf("sphero power state %d", state))
		}
		a.client = client
		a.ball = client
		a.logger.Info("🔌 sphero port open", "port", a.config.SpheroPort, "baud", opts.BaudRate)
	}
	a.drive = robot.NewDriveController(a.ball, a.tracker, a.config.DriveRate)
	return nil
}

// wirePhones routes phone messages into the tracker
func (a *App) wirePhones() {
	a.phones.OnFrame(func(phoneID string, f *protocol.FrameData) {
		if a.config.Source != SourcePhone {
			return
		}
		data, err := f.DecodeFrameData()
		if err != nil {
			if debug.Sample("phone-frame", 30) {
				a.logger.Warn("bad phone frame", "phone", phoneID, "error", err)
			}
			return
		}
		a.queue.Push(data)
	})
	a.phones.OnOrientation(func(_ string, o *protocol.OrientationData) {
		a.tracker.SetPhoneOrientation(o.Pitch, o.Roll, o.Yaw)
	})
	a.phones.OnAttitude(func(_ string, o *protocol.OrientationData) {
		a.tracker.SetSpheroOrientation(o.Pitch, o.Roll, o.Yaw)
	})
	a.phones.OnTouch(func(_ string, t *protocol.TouchData) {
		a.handleTouch(t.Points)
	})
	a.phones.OnCalibrate(func(phoneID string) {
		offset := a.tracker.Calibrate()
		a.web.AddLog("calibrate", fmt.Sprintf("heading offset %.1f° (phone %s)", offset, phoneID))
	})
}

// handleTouch applies a gesture: one finger moves the laser window, two
// fingers frame the sphero and arm driving
func (a *App) handleTouch(points []protocol.TouchPoint) {
	switch {
	case len(points) == 1:
		p := a.tracker.Touch1(points[0].X, points[0].Y)
		a.web.AddLog("touch", fmt.Sprintf("laser re-acquired at (%d,%d)", p.X, p.Y))
	case len(points) >= 2:
		p := a.tracker.Touch2(points[0].X, points[0].Y, points[1].X, points[1].Y)
		a.web.AddLog("touch", fmt.Sprintf("sphero re-acquired at (%d,%d), calibrated", p.X, p.Y))
	}
}

// Run starts all loops. Blocks until ctx is cancelled or a loop fails.
func (a *App) Run(ctx context.Context) error {
	if a.client != nil {
		a.startSphero()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.web.Run(ctx) })
	g.Go(func() error { return a.frameLoop(ctx) })
	g.Go(func() error { return a.drive.Run(ctx) })
	if a.client != nil {
		g.Go(func() error {
			if err := robot.Connect(ctx, a.client, a.config.StreamDivisor); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("sphero connect: %w", err)
			}
			return a.blinkUntilCalibrated(ctx)
		})
	}

	a.web.AddLog("info", "LaserShark started")
	a.logger.Info("🚀 running (Ctrl+C to exit)")
	return g.Wait()
}

// startSphero runs the serial read loop on its own context so the ball
// can still be stopped and put to sleep in Shutdown after Run returns.
func (a *App) startSphero() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopSphero = cancel
	a.spheroDone = make(chan struct{})
	go func() {
		defer close(a.spheroDone)
		if err := a.client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("sphero link lost", "error", err)
			a.web.AddLog("error", fmt.Sprintf("sphero link lost: %v", err))
		}
	}()
}

// blinkUntilCalibrated blinks the ball blue so it can be framed with two
// fingers, then holds it solid blue
func (a *App) blinkUntilCalibrated(ctx context.Context) error {
	blinkCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-blinkCtx.Done():
				return
			case <-ticker.C:
				if a.tracker.Calibrated() {
					stop()
					return
				}
			}
		}
	}()

	if err := robot.Blink(blinkCtx, a.ball, a.config.BlinkPeriod); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := a.ball.SetRGB(ctx, 0, 0, 255); err != nil {
		a.logger.Warn("set rgb failed", "error", err)
	}
	return nil
}

// frameLoop reads frames, runs the tracker and fans the result out to the
// dashboard and phones
func (a *App) frameLoop(ctx context.Context) error {
	frame := &imaging.Frame{}
	var overlayEvery time.Duration
	if a.renderer != nil {
		overlayEvery = time.Second / time.Duration(a.config.OverlayFPS)
	}
	var lastOverlay time.Time

	for {
		if err := a.source.Read(ctx, frame); err != nil {
			if ctx.Err() != nil || errors.Is(err, camera.ErrClosed) {
				return nil
			}
			if debug.Sample("frame-read", 30) {
				a.logger.Warn("frame read failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.config.Tracking.FrameInterval):
			}
			continue
		}
		if err := a.fitScreen(frame); err != nil {
			if debug.Sample("frame-size", 30) {
				a.logger.Warn("frame does not fit the tracker", "width", frame.Width, "height", frame.Height, "error", err)
			}
			continue
		}

		res, err := a.tracker.Draw(frame)
		stats := a.tracker.Stats()
		a.web.PublishStatus(res)
		if err := a.phones.BroadcastState(StateFromResult(res, stats)); err != nil {
			a.logger.Warn("state encode failed", "error", err)
		}

		if err == nil && overlayEvery > 0 && time.Since(lastOverlay) >= overlayEvery {
			lastOverlay = time.Now()
			jpeg, err := a.renderer.Render(frame, res, stats)
			if err != nil {
				if debug.Sample("overlay", 30) {
					a.logger.Warn("overlay failed", "error", err)
				}
				continue
			}
			a.web.SendCameraFrame(jpeg)
		}
	}
}

// fitScreen follows the tracker's screen to the frame size
func (a *App) fitScreen(f *imaging.Frame) error {
	screen := a.tracker.Config().Screen()
	if f.Width == screen.W && f.Height == screen.H {
		return nil
	}
	return a.tracker.Resize(f.Width, f.Height)
}

// StateFromResult converts a frame result to the state pushed to phones
func StateFromResult(res tracking.FrameResult, stats tracking.StatsSnapshot) protocol.StateData {
	return protocol.StateData{
		Calibrated: res.Calibrated,
		Sphero:     protocol.TouchPoint{X: res.Sphero.Position.X, Y: res.Sphero.Position.Y},
		Laser:      protocol.TouchPoint{X: res.Laser.Position.X, Y: res.Laser.Position.Y},
		SpheroLock: res.Sphero.Locked,
		LaserLock:  res.Laser.Locked,
		Offset:     res.Offset,
		FPS:        stats.FPS,
	}
}

// Tracker exposes the tracker for tools and tests.
func (a *App) Tracker() *tracking.Tracker {
	return a.tracker
}

// Shutdown stops the ball, puts it to sleep and releases devices.
func (a *App) Shutdown() {
	a.logger.Info("👋 shutting down")

	if a.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := robot.Shutdown(ctx, a.client); err != nil {
			a.logger.Warn("sphero shutdown incomplete", "error", err)
		}
		cancel()
		if a.stopSphero != nil {
			a.stopSphero()
			<-a.spheroDone
		}
		if err := a.client.Close(); err != nil {
			a.logger.Debug("sphero close", "error", err)
		}
	}
	if a.video != nil {
		if err := a.video.Close(); err != nil {
			a.logger.Debug("video close", "error", err)
		}
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.capture != nil {
		if err := a.capture.Close(); err != nil {
			a.logger.Debug("camera close", "error", err)
		}
	}
}
