package protocol

import (
	"encoding/base64"
	"fmt"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// NewOrientationMessage creates a phone orientation message
func NewOrientationMessage(pitch, roll, yaw float64) (*Message, error) {
	return NewMessage(TypeOrientation, OrientationData{Pitch: pitch, Roll: roll, Yaw: yaw})
}

// NewAttitudeMessage creates a sphero attitude message
func NewAttitudeMessage(pitch, roll, yaw float64) (*Message, error) {
	return NewMessage(TypeAttitude, OrientationData{Pitch: pitch, Roll: roll, Yaw: yaw})
}

// NewTouchMessage creates a touch message
func NewTouchMessage(points ...TouchPoint) (*Message, error) {
	return NewMessage(TypeTouch, TouchData{Points: points})
}

// NewCalibrateMessage creates a calibrate request
func NewCalibrateMessage() (*Message, error) {
	return NewMessage(TypeCalibrate, nil)
}

// NewSteerMessage creates a steering command message
func NewSteerMessage(heading int, speed float64) (*Message, error) {
	return NewMessage(TypeSteer, SteerCommand{Heading: heading, Speed: speed})
}

// NewStateMessage creates a tracker state message
func NewStateMessage(state StateData) (*Message, error) {
	return NewMessage(TypeState, state)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: ts})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	if f.Format != "" && f.Format != "jpeg" {
		return nil, fmt.Errorf("unsupported frame format %q", f.Format)
	}
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetOrientationData extracts orientation or attitude data from a message
func (m *Message) GetOrientationData() (*OrientationData, error) {
	var data OrientationData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTouchData extracts touch data from a message
func (m *Message) GetTouchData() (*TouchData, error) {
	var data TouchData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSteerCommand extracts a steering command from a message
func (m *Message) GetSteerCommand() (*SteerCommand, error) {
	var data SteerCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
