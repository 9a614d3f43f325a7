package web

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/lasershark/pkg/camera"
	"github.com/teslashibe/lasershark/pkg/hub"
	"github.com/teslashibe/lasershark/pkg/tracking"
)

// TouchOneRequest is the body of POST /api/touch/one
type TouchOneRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TouchTwoRequest is the body of POST /api/touch/two: two opposite corners
// of the sphero's bounding rectangle
type TouchTwoRequest struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// OrientationRequest is the body of the orientation endpoints (degrees)
type OrientationRequest struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// ResizeRequest is the body of POST /api/resize
type ResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus returns the latest frame result. It changes once per frame,
// so orientation and touch updates show up after the next Draw.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.tracker.Snapshot())
}

func (s *Server) handleTouchOne(c *fiber.Ctx) error {
	var req TouchOneRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	p := s.tracker.Touch1(req.X, req.Y)
	s.AddLog("touch", fmt.Sprintf("laser re-acquired at (%d,%d)", p.X, p.Y))
	return c.JSON(fiber.Map{"laser": p})
}

func (s *Server) handleTouchTwo(c *fiber.Ctx) error {
	var req TouchTwoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	p := s.tracker.Touch2(req.X1, req.Y1, req.X2, req.Y2)
	s.AddLog("touch", fmt.Sprintf("sphero re-acquired at (%d,%d)", p.X, p.Y))
	return c.JSON(fiber.Map{
		"sphero":     p,
		"calibrated": s.tracker.Calibrated(),
	})
}

func (s *Server) handlePhoneOrientation(c *fiber.Ctx) error {
	var req OrientationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	s.tracker.SetPhoneOrientation(req.Pitch, req.Roll, req.Yaw)
	return c.JSON(fiber.Map{"pose": s.tracker.Pose()})
}

func (s *Server) handleSpheroOrientation(c *fiber.Ctx) error {
	var req OrientationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	s.tracker.SetSpheroOrientation(req.Pitch, req.Roll, req.Yaw)
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	offset := s.tracker.Calibrate()
	s.AddLog("calibrate", fmt.Sprintf("heading offset %.1f°", offset))
	return c.JSON(fiber.Map{"offset": offset, "calibrated": true})
}

func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.tracker.GetTuningParams())
}

func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if params.Throttle > 1 {
		return badRequest(c, fmt.Errorf("throttle %.2f out of range 0-1", params.Throttle))
	}
	switch params.Mode {
	case "", tracking.ModeBoresight, tracking.ModeLaser:
	default:
		return badRequest(c, fmt.Errorf("unknown mode %q", params.Mode))
	}
	s.tracker.SetTuningParams(params)
	return c.JSON(s.tracker.GetTuningParams())
}

func (s *Server) handleResize(c *fiber.Ctx) error {
	var req ResizeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	if err := s.tracker.Resize(req.Width, req.Height); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(fiber.Map{"screen": tracking.Size{W: req.Width, H: req.Height}})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	out := fiber.Map{"tracker": s.tracker.Stats()}
	s.statsMu.RLock()
	for name, fn := range s.stats {
		out[name] = fn()
	}
	s.statsMu.RUnlock()
	return c.JSON(out)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.OnGetCameraConfig == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no camera"})
	}
	return c.JSON(s.OnGetCameraConfig())
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.OnSetCameraConfig == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no camera"})
	}
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if err := s.OnSetCameraConfig(params); err != nil {
		return badRequest(c, err)
	}
	s.AddLog("info", "camera config updated")
	if s.OnGetCameraConfig != nil {
		return c.JSON(s.OnGetCameraConfig())
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": camera.PresetNames()})
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// handleStatusWS sends the current snapshot, then streams updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	c.WriteJSON(s.tracker.Snapshot())
	hub.NewClient(s.statusHub, c).Run()
}

// handleLogsWS replays the buffer, then streams new entries
func (s *Server) handleLogsWS(c *websocket.Conn) {
	for _, entry := range s.Logs() {
		c.WriteJSON(entry)
	}
	hub.NewClient(s.logHub, c).Run()
}

// handleCameraWS streams overlay JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
