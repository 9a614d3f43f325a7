// Package protocol defines the WebSocket message types exchanged with the
// phone host. The phone owns the camera, the compass and (optionally) the
// Bluetooth link to the sphero; the server tracks and steers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Phone → Server messages
	TypeFrame       MessageType = "frame"       // Camera frame
	TypeOrientation MessageType = "orientation" // Phone compass attitude
	TypeAttitude    MessageType = "attitude"    // Sphero IMU attitude relayed by the phone
	TypeTouch       MessageType = "touch"       // One or two finger touch
	TypeCalibrate   MessageType = "calibrate"   // Recompute the heading offset

	// Server → Phone messages
	TypeSteer MessageType = "steer" // Roll command
	TypeState MessageType = "state" // Tracker state

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Phone → Server Message Types
// =============================================================================

// FrameData contains one camera frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// OrientationData is an attitude in degrees. For the phone it is the
// compass orientation (yaw = azimuth); for the sphero it is its IMU.
type OrientationData struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// TouchPoint is one finger in screen pixels
type TouchPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TouchData carries the fingers currently down. One finger re-acquires
// the laser; two fingers mark the sphero's bounding rectangle.
type TouchData struct {
	Points []TouchPoint `json:"points"`
}

// =============================================================================
// Server → Phone Message Types
// =============================================================================

// SteerCommand is the roll the phone should forward to the sphero
type SteerCommand struct {
	Heading int     `json:"heading"` // Degrees 0-359 in the sphero's frame
	Speed   float64 `json:"speed"`   // 0-1
}

// StateData summarises the tracker for the phone's overlay
type StateData struct {
	Calibrated bool       `json:"calibrated"`
	Sphero     TouchPoint `json:"sphero"`
	Laser      TouchPoint `json:"laser"`
	SpheroLock bool       `json:"sphero_lock"`
	LaserLock  bool       `json:"laser_lock"`
	Offset     float64    `json:"offset"`
	FPS        float64    `json:"fps"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
