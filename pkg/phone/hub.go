// Package phone hosts the WebSocket endpoint the phone app connects to.
// The phone streams camera frames, its compass orientation, the sphero's
// attitude and touches; the server answers with steering and state.
package phone

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/protocol"
)

// DefaultTouchRate is the maximum touch events per second per phone.
const DefaultTouchRate = 30

// Hub manages WebSocket connections from phones
type Hub struct {
	mu        sync.RWMutex
	phones    map[string]*Connection
	touchRate float64
	logger    *slog.Logger

	// Callbacks
	onFrame       func(phoneID string, frame *protocol.FrameData)
	onOrientation func(phoneID string, o *protocol.OrientationData)
	onAttitude    func(phoneID string, a *protocol.OrientationData)
	onTouch       func(phoneID string, touch *protocol.TouchData)
	onCalibrate   func(phoneID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	touchesDropped   atomic.Uint64
	messagesDropped  atomic.Uint64
}

// NewHub creates a phone hub. touchRate limits touches per second per
// phone; 0 selects DefaultTouchRate.
func NewHub(touchRate float64) *Hub {
	if touchRate <= 0 {
		touchRate = DefaultTouchRate
	}
	return &Hub{
		phones:    make(map[string]*Connection),
		touchRate: touchRate,
		logger:    log.With("component", "phone"),
	}
}

// OnFrame sets the callback for incoming camera frames
func (h *Hub) OnFrame(callback func(phoneID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// OnOrientation sets the callback for phone compass updates
func (h *Hub) OnOrientation(callback func(phoneID string, o *protocol.OrientationData)) {
	h.mu.Lock()
	h.onOrientation = callback
	h.mu.Unlock()
}

// OnAttitude sets the callback for relayed sphero attitude
func (h *Hub) OnAttitude(callback func(phoneID string, a *protocol.OrientationData)) {
	h.mu.Lock()
	h.onAttitude = callback
	h.mu.Unlock()
}

// OnTouch sets the callback for touches. Bursts over the touch rate are
// coalesced to the newest touch.
func (h *Hub) OnTouch(callback func(phoneID string, touch *protocol.TouchData)) {
	h.mu.Lock()
	h.onTouch = callback
	h.mu.Unlock()
}

// OnCalibrate sets the callback for calibrate requests
func (h *Hub) OnCalibrate(callback func(phoneID string)) {
	h.mu.Lock()
	h.onCalibrate = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/phone", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/phone", websocket.New(h.handlePhone))
	app.Get("/ws/phone/:id", websocket.New(h.handlePhone))
}

// handlePhone handles a phone WebSocket connection
func (h *Hub) handlePhone(c *websocket.Conn) {
	phoneID := c.Params("id")
	if phoneID == "" {
		phoneID = generatePhoneID()
	}

	throttle := newTouchThrottle(h.touchRate, func(td *protocol.TouchData) {
		h.deliverTouch(phoneID, td)
	})
	phone := newConnection(phoneID, c, c, throttle)
	go phone.writePump()

	h.mu.Lock()
	h.phones[phoneID] = phone
	count := len(h.phones)
	h.mu.Unlock()

	h.logger.Info("📱 phone connected", "id", phoneID, "total", count)

	defer func() {
		phone.shutdown()

		h.mu.Lock()
		if h.phones[phoneID] == phone {
			delete(h.phones, phoneID)
		}
		count := len(h.phones)
		h.mu.Unlock()

		h.logger.Info("📱 phone disconnected", "id", phoneID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("phone read error", "id", phoneID, "error", err)
			return
		}

		phone.mu.Lock()
		phone.LastSeen = time.Now()
		phone.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(phone, data)
	}
}

// handleMessage processes an incoming message from a phone
func (h *Hub) handleMessage(phone *Connection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("parse error", "id", phone.ID, "error", err)
		return
	}

	h.mu.RLock()
	frameCb := h.onFrame
	orientationCb := h.onOrientation
	attitudeCb := h.onAttitude
	calibrateCb := h.onCalibrate
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		if frameCb != nil {
			if frame, err := msg.GetFrameData(); err == nil {
				frameCb(phone.ID, frame)
			}
		}

	case protocol.TypeOrientation:
		if orientationCb != nil {
			if o, err := msg.GetOrientationData(); err == nil {
				orientationCb(phone.ID, o)
			}
		}

	case protocol.TypeAttitude:
		if attitudeCb != nil {
			if a, err := msg.GetOrientationData(); err == nil {
				attitudeCb(phone.ID, a)
			}
		}

	case protocol.TypeTouch:
		touch, err := msg.GetTouchData()
		if err != nil {
			return
		}
		now, superseded := phone.touches.offer(touch)
		if superseded {
			h.touchesDropped.Add(1)
		}
		if now {
			h.deliverTouch(phone.ID, touch)
		}

	case protocol.TypeCalibrate:
		if calibrateCb != nil {
			calibrateCb(phone.ID)
		}

	case protocol.TypePing:
		var id string
		if p, err := msg.GetPingData(); err == nil {
			id = p.ID
		}
		h.SendPong(phone.ID, id, msg.Timestamp)

	default:
		h.logger.Debug("unhandled message", "id", phone.ID, "type", msg.Type)
	}
}

func (h *Hub) deliverTouch(phoneID string, touch *protocol.TouchData) {
	h.mu.RLock()
	cb := h.onTouch
	h.mu.RUnlock()
	if cb != nil {
		cb(phoneID, touch)
	}
}

// SendSteer sends a roll command to a phone
func (h *Hub) SendSteer(phoneID string, heading int, speed float64) error {
	msg, err := protocol.NewSteerMessage(heading, speed)
	if err != nil {
		return err
	}
	return h.sendToPhone(phoneID, msg)
}

// SendPong sends a pong response to a phone
func (h *Hub) SendPong(phoneID, id string, pingTS int64) error {
	msg, err := protocol.NewPongMessage(id, pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToPhone(phoneID, msg)
}

// sendToPhone sends a message to a specific phone
func (h *Hub) sendToPhone(phoneID string, msg *protocol.Message) error {
	h.mu.RLock()
	phone, ok := h.phones[phoneID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "phone not connected")
	}

	if err := phone.Send(msg); err != nil {
		h.messagesDropped.Add(1)
		return err
	}
	h.messagesSent.Add(1)
	return nil
}

// Broadcast queues a message for all connected phones. A phone whose
// queue is full misses the message.
func (h *Hub) Broadcast(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	for _, phone := range h.GetPhones() {
		if err := phone.enqueue(data); err != nil {
			if h.messagesDropped.Add(1)%100 == 1 {
				h.logger.Warn("⚠️  phone not keeping up", "id", phone.ID, "error", err,
					"total_dropped", h.messagesDropped.Load())
			}
			continue
		}
		h.messagesSent.Add(1)
	}
	return nil
}

// BroadcastSteer sends the same roll command to every phone
func (h *Hub) BroadcastSteer(heading int, speed float64) error {
	msg, err := protocol.NewSteerMessage(heading, speed)
	if err != nil {
		return err
	}
	return h.Broadcast(msg)
}

// BroadcastState sends tracker state to every phone
func (h *Hub) BroadcastState(state protocol.StateData) error {
	msg, err := protocol.NewStateMessage(state)
	if err != nil {
		return err
	}
	return h.Broadcast(msg)
}

// GetPhone returns a phone connection by ID
func (h *Hub) GetPhone(phoneID string) *Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phones[phoneID]
}

// GetPhones returns all connected phones
func (h *Hub) GetPhones() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	phones := make([]*Connection, 0, len(h.phones))
	for _, p := range h.phones {
		phones = append(phones, p)
	}
	return phones
}

// PhoneCount returns the number of connected phones
func (h *Hub) PhoneCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.phones)
}

// Stats contains hub statistics
type Stats struct {
	PhoneCount       int    `json:"phone_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	TouchesDropped   uint64 `json:"touches_dropped"`
	MessagesDropped  uint64 `json:"messages_dropped"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		PhoneCount:       h.PhoneCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		TouchesDropped:   h.touchesDropped.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// Info contains info about a connected phone
type Info struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetPhoneInfos returns info about all connected phones
func (h *Hub) GetPhoneInfos() []Info {
	phones := h.GetPhones()
	infos := make([]Info, 0, len(phones))
	for _, p := range phones {
		p.mu.Lock()
		infos = append(infos, Info{ID: p.ID, Connected: p.Connected, LastSeen: p.LastSeen})
		p.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for phone management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	phones := api.Group("/phones")

	phones.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"phones": h.GetPhoneInfos(),
			"count":  h.PhoneCount(),
		})
	})

	phones.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	// Manual drive override, mostly for bench testing
	phones.Post("/:id/steer", func(c *fiber.Ctx) error {
		var cmd protocol.SteerCommand
		if err := c.BodyParser(&cmd); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if cmd.Speed < 0 || cmd.Speed > 1 {
			return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("speed %.2f out of range 0-1", cmd.Speed)})
		}

		if err := h.SendSteer(c.Params("id"), cmd.Heading, cmd.Speed); err != nil {
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"status": "sent"})
	})
}

// generatePhoneID generates a unique session ID
func generatePhoneID() string {
	return uuid.NewString()
}
