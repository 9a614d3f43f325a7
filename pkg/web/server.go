// Package web serves the LaserShark dashboard: a REST API over the tracker
// and websocket feeds of tracker status, log lines and overlay frames.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/hub"
	"github.com/teslashibe/lasershark/pkg/tracking"
)

// maxLogs bounds the in-memory log buffer
const maxLogs = 500

// Tracker is the tracker surface the dashboard drives. *tracking.Tracker
// implements it.
type Tracker interface {
	Snapshot() tracking.FrameResult
	Pose() tracking.CameraPose
	Stats() tracking.StatsSnapshot
	Touch1(x, y int) tracking.Point
	Touch2(x1, y1, x2, y2 int) tracking.Point
	SetPhoneOrientation(pitch, roll, yaw float64)
	SetSpheroOrientation(pitch, roll, yaw float64)
	Calibrate() float64
	Calibrated() bool
	GetTuningParams() tracking.TuningParams
	SetTuningParams(params tracking.TuningParams)
	Resize(width, height int) error
}

var _ Tracker = (*tracking.Tracker)(nil)

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, touch, calibrate, drive, error
	Message string `json:"message"`
}

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	addr    string
	tracker Tracker
	logger  *slog.Logger

	logs   []LogEntry
	logsMu sync.RWMutex

	statsMu sync.RWMutex
	stats   map[string]func() any

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub

	// Camera API callbacks, set by the app when a capture source exists
	OnGetCameraConfig func() interface{}
	OnSetCameraConfig func(params map[string]interface{}) error
}

// NewServer creates a dashboard server on addr (e.g. ":8080"). staticDir,
// when non-empty, is served at "/".
func NewServer(addr string, tracker Tracker, staticDir string) *Server {
	s := &Server{
		addr:      addr,
		tracker:   tracker,
		logger:    log.With("component", "web"),
		logs:      make([]LogEntry, 0, maxLogs),
		stats:     make(map[string]func() any),
		statusHub: hub.New("status"),
		logHub:    hub.New("logs"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "LaserShark",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	if staticDir != "" {
		app.Static("/", staticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/touch/one", s.handleTouchOne)
	api.Post("/touch/two", s.handleTouchTwo)
	api.Post("/orientation/phone", s.handlePhoneOrientation)
	api.Post("/orientation/sphero", s.handleSpheroOrientation)
	api.Post("/calibrate", s.handleCalibrate)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Post("/resize", s.handleResize)
	api.Get("/stats", s.handleStats)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the Fiber app so other packages can mount routes on it.
func (s *Server) App() *fiber.App {
	return s.app
}

// AddStats registers an extra section for GET /api/stats.
func (s *Server) AddStats(name string, fn func() any) {
	s.statsMu.Lock()
	s.stats[name] = fn
	s.statsMu.Unlock()
}

// Run starts the hubs and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 dashboard listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// PublishStatus broadcasts a frame result to /ws/status clients
func (s *Server) PublishStatus(result tracking.FrameResult) {
	if err := s.statusHub.BroadcastJSON(result); err != nil {
		s.logger.Warn("status encode failed", "error", err)
	}
}

// SendCameraFrame broadcasts an overlay JPEG to /ws/camera clients
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// AddLog adds a log entry and broadcasts it to /ws/logs clients
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Logs returns a copy of the buffered log entries
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}
