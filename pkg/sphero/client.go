package sphero

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/lasershark/internal/log"
	"github.com/teslashibe/lasershark/pkg/debug"
)

// DefaultTimeout bounds how long Send waits for a response.
const DefaultTimeout = 2 * time.Second

// Client drives one Sphero over a Port. Run must be running for Send to
// receive responses.
type Client struct {
	port    Port
	timeout time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	seq     byte
	pending map[byte]chan Response
	closed  bool

	// OnAttitude is called from the read loop for every streamed sample.
	OnAttitude func(Attitude)
	// OnPower is called with the power state of async power notifications.
	OnPower func(state byte)

	badPackets uint64
}

// NewClient wraps an open port.
func NewClient(port Port) *Client {
	return &Client{
		port:    port,
		timeout: DefaultTimeout,
		pending: make(map[byte]chan Response),
	}
}

// Open opens the serial device at path and returns a client for it.
func Open(path string, opts PortOptions) (*Client, error) {
	port, err := OpenPort(path, opts)
	if err != nil {
		return nil, err
	}
	return NewClient(port), nil
}

// SetTimeout changes the response timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.timeout = d
	}
}

// Run reads packets until ctx is cancelled or the port fails. Responses are
// routed to the waiting Send call; async packets go to the callbacks.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	r := NewReader(c.port)
	for {
		pkt, err := r.Next()
		if err != nil {
			if errors.Is(err, ErrChecksum) || errors.Is(err, ErrBadPacket) {
				c.badPackets++
				if debug.Sample("sphero-bad-packet", 50) {
					log.Warn("dropping sphero packet", "error", err, "count", c.badPackets)
				}
				continue
			}
			if ctx.Err() != nil || c.isClosed() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return ctx.Err()
			}
			return fmt.Errorf("sphero read: %w", err)
		}

		switch p := pkt.(type) {
		case Response:
			c.deliver(p)
		case Async:
			c.dispatch(p)
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) deliver(rsp Response) {
	c.mu.Lock()
	ch, ok := c.pending[rsp.Seq]
	if ok {
		delete(c.pending, rsp.Seq)
	}
	c.mu.Unlock()
	if !ok {
		debug.Log("sphero: unsolicited response seq=%d code=0x%02X\n", rsp.Seq, rsp.Code)
		return
	}
	ch <- rsp
}

func (c *Client) dispatch(a Async) {
	switch a.ID {
	case AsyncSensorData:
		samples, err := ParseAttitude(a.Data)
		if err != nil {
			log.Warn("bad sensor packet", "error", err)
			return
		}
		if c.OnAttitude == nil {
			return
		}
		for _, s := range samples {
			c.OnAttitude(s)
		}
	case AsyncPowerNotification:
		if c.OnPower != nil && len(a.Data) > 0 {
			c.OnPower(a.Data[0])
		}
	default:
		debug.Log("sphero: async id=0x%02X len=%d\n", a.ID, len(a.Data))
	}
}

// Send writes cmd and, unless NoAnswer is set, waits for its response.
func (c *Client) Send(ctx context.Context, cmd Command) (Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, ErrNotConnected
	}
	c.seq++
	cmd.Seq = c.seq
	var ch chan Response
	if !cmd.NoAnswer {
		ch = make(chan Response, 1)
		c.pending[cmd.Seq] = ch
	}
	timeout := c.timeout
	c.mu.Unlock()

	buf, err := cmd.MarshalBinary()
	if err != nil {
		c.forget(cmd.Seq)
		return Response{}, err
	}

	c.writeMu.Lock()
	_, err = c.port.Write(buf)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(cmd.Seq)
		return Response{}, fmt.Errorf("sphero write: %w", err)
	}
	if cmd.NoAnswer {
		return Response{}, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rsp := <-ch:
		return rsp, rsp.Err()
	case <-timer.C:
		c.forget(cmd.Seq)
		return Response{}, fmt.Errorf("%w: did=0x%02X cid=0x%02X", ErrTimeout, cmd.DID, cmd.CID)
	case <-ctx.Done():
		c.forget(cmd.Seq)
		return Response{}, ctx.Err()
	}
}

func (c *Client) forget(seq byte) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func (c *Client) exec(ctx context.Context, cmd Command) error {
	_, err := c.Send(ctx, cmd)
	return err
}

// Ping checks the link.
func (c *Client) Ping(ctx context.Context) error {
	return c.exec(ctx, Ping())
}

// Roll drives toward heading at speed (0-1).
func (c *Client) Roll(ctx context.Context, heading int, speed float64) error {
	return c.exec(ctx, Roll(speed, heading))
}

// Stop halts the ball.
func (c *Client) Stop(ctx context.Context) error {
	return c.exec(ctx, Stop(0))
}

// SetHeading redefines the current heading.
func (c *Client) SetHeading(ctx context.Context, heading int) error {
	return c.exec(ctx, SetHeading(heading))
}

// SetStabilization turns stabilization on or off.
func (c *Client) SetStabilization(ctx context.Context, on bool) error {
	return c.exec(ctx, SetStabilization(on))
}

// SetRGB sets the main LED.
func (c *Client) SetRGB(ctx context.Context, r, g, b byte) error {
	return c.exec(ctx, SetRGB(r, g, b))
}

// SetBackLED sets the tail light brightness (0-1).
func (c *Client) SetBackLED(ctx context.Context, brightness float64) error {
	return c.exec(ctx, SetBackLED(brightness))
}

// StreamAttitude starts filtered pitch/roll/yaw streaming at
// MaxStreamRate/divisor Hz, one sample per packet, until stopped.
func (c *Client) StreamAttitude(ctx context.Context, divisor uint16) error {
	if divisor == 0 {
		return fmt.Errorf("stream divisor must be positive")
	}
	return c.exec(ctx, SetDataStreaming(divisor, 1, MaskAttitude, 0))
}

// StopStreaming turns sensor streaming off.
func (c *Client) StopStreaming(ctx context.Context) error {
	return c.exec(ctx, SetDataStreaming(0, 0, 0, 0))
}

// Sleep puts the ball to sleep.
func (c *Client) Sleep(ctx context.Context) error {
	return c.exec(ctx, Sleep(0))
}

// Close closes the port and fails pending requests.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[byte]chan Response)
	c.mu.Unlock()

	for seq, ch := range pending {
		ch <- Response{Code: RspGeneralError, Seq: seq}
	}
	return c.port.Close()
}
