// Package video receives a remote camera (a phone running a GStreamer
// webrtcsink producer) over WebRTC and turns the H264 stream into JPEG
// frames for the tracker.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/lasershark/internal/log"
)

// DefaultProducer is the webrtcsink meta name the phone app advertises
const DefaultProducer = "lasershark"

// ErrProducerNotFound is returned when the signalling server lists no
// producer with the configured name
var ErrProducerNotFound = errors.New("video: producer not found")

// FrameSink receives decoded JPEG frames. camera.Queue.Push satisfies it.
type FrameSink func(jpeg []byte)

// Client connects to a producer's WebRTC video stream via GStreamer signalling
type Client struct {
	signallingURL string
	producerName  string

	ws      *websocket.Conn
	pc      *webrtc.PeerConnection
	wsMutex sync.Mutex

	myPeerID   string
	producerID string
	sessionID  string

	decoder *FastDecoder
	sink    FrameSink
	logger  *slog.Logger

	trackReady chan struct{}
	packets    atomic.Uint64
	units      atomic.Uint64
	frames     atomic.Uint64
	closed     atomic.Bool
}

// Stats for the dashboard
type Stats struct {
	Packets uint64 `json:"packets"`
	Units   uint64 `json:"access_units"`
	Frames  uint64 `json:"frames"`
}

// NewClient creates a client for the signalling server at url. Decoded
// frames go to sink.
func NewClient(url, producer string, decoder *FastDecoder, sink FrameSink) *Client {
	if producer == "" {
		producer = DefaultProducer
	}
	return &Client{
		signallingURL: url,
		producerName:  producer,
		decoder:       decoder,
		sink:          sink,
		logger:        log.With("component", "video"),
		trackReady:    make(chan struct{}, 1),
	}
}

// Connect establishes the WebRTC connection and waits for the video track
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to signalling server", "url", c.signallingURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	var err error
	c.ws, _, err = dialer.DialContext(ctx, c.signallingURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect failed: %w", err)
	}

	if err := c.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome failed: %w", err)
	}
	if err := c.findProducer(); err != nil {
		return fmt.Errorf("find producer failed: %w", err)
	}
	c.logger.Info("found producer", "name", c.producerName, "id", c.producerID)

	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection failed: %w", err)
	}
	if err := c.startSession(); err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}

	go c.handleSignalling()

	select {
	case <-c.trackReady:
		c.logger.Info("✅ video connected")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return fmt.Errorf("timeout waiting for video")
	}
	return nil
}

func (c *Client) waitForWelcome() error {
	c.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	c.myPeerID = welcome.PeerID
	return nil
}

func (c *Client) findProducer() error {
	if err := c.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	id, err := selectProducer(msg, c.producerName)
	if err != nil {
		return err
	}
	c.producerID = id
	return nil
}

// selectProducer picks the producer whose meta name matches from a list reply
func selectProducer(msg []byte, name string) (string, error) {
	var listResp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return "", err
	}
	if listResp.Type != "list" {
		return "", fmt.Errorf("expected list, got %s", listResp.Type)
	}
	for _, p := range listResp.Producers {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %d producers", ErrProducerNotFound, name, len(listResp.Producers))
}

func (c *Client) createPeerConnection() error {
	var err error
	c.pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	if _, err = c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info("got track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.handleVideoTrack(track)
		}
	})

	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.sendICECandidate(candidate)
		}
	})

	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Info("connection state", "state", state.String())
	})
	return nil
}

func (c *Client) startSession() error {
	return c.writeJSON(map[string]string{
		"type":   "startSession",
		"peerId": c.producerID,
	})
}

func (c *Client) writeJSON(v interface{}) error {
	c.wsMutex.Lock()
	defer c.wsMutex.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *Client) handleSignalling() {
	for !c.closed.Load() {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("signalling error", "error", err)
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg, &baseMsg); err != nil {
			continue
		}

		switch baseMsg.Type {
		case "sessionStarted":
			c.sessionID = baseMsg.SessionID
		case "peer":
			if err := c.handlePeerMessage(msg); err != nil {
				c.logger.Warn("peer message failed", "error", err)
			}
		case "endSession":
			c.logger.Info("producer ended session")
			return
		}
	}
}

// peerMessage is a signalling "peer" message carrying SDP or ICE
type peerMessage struct {
	SDP *struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"sdp"`
	ICE *webrtc.ICECandidateInit `json:"ice"`
}

func (c *Client) handlePeerMessage(msg []byte) error {
	var peer peerMessage
	if err := json.Unmarshal(msg, &peer); err != nil {
		return err
	}

	if peer.SDP != nil && peer.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: peer.SDP.SDP}
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		if err := c.sendSDP(answer); err != nil {
			return err
		}
	}

	if peer.ICE != nil {
		if err := c.pc.AddICECandidate(*peer.ICE); err != nil {
			return fmt.Errorf("add ice candidate: %w", err)
		}
	}
	return nil
}

func (c *Client) sendSDP(sdp webrtc.SessionDescription) error {
	return c.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": c.sessionID,
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	})
}

func (c *Client) sendICECandidate(candidate *webrtc.ICECandidate) {
	if c.sessionID == "" {
		return
	}
	if err := c.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": c.sessionID,
		"ice":       candidate.ToJSON(),
	}); err != nil {
		c.logger.Debug("send ice candidate failed", "error", err)
	}
}

func (c *Client) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case c.trackReady <- struct{}{}:
	default:
	}

	asm := NewAssembler()
	for !c.closed.Load() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		c.packets.Add(1)

		unit, err := asm.Push(pkt)
		if err != nil {
			c.logger.Debug("depacketize failed", "seq", pkt.SequenceNumber, "error", err)
			continue
		}
		if unit == nil {
			continue
		}
		c.units.Add(1)

		jpeg, err := c.decoder.DecodeUnit(unit)
		if err != nil {
			c.logger.Debug("decode failed", "error", err)
			continue
		}
		if jpeg != nil && c.sink != nil {
			c.frames.Add(1)
			c.sink(jpeg)
		}
	}
}

// Stats returns packet and frame counters
func (c *Client) Stats() Stats {
	return Stats{
		Packets: c.packets.Load(),
		Units:   c.units.Load(),
		Frames:  c.frames.Load(),
	}
}

// Close closes the WebRTC connection
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	var errs []error
	if c.pc != nil {
		errs = append(errs, c.pc.Close())
	}
	if c.ws != nil {
		errs = append(errs, c.ws.Close())
	}
	return errors.Join(errs...)
}
