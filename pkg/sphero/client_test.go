package sphero

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePort is one end of an in-memory serial link.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipePort) Close() error {
	p.r.Close()
	return p.w.Close()
}

// fakeSphero answers every command with RspOK unless silent is set and
// records what it received.
type fakeSphero struct {
	port   *pipePort
	silent bool

	mu       sync.Mutex
	received []Command
}

func newFakeLink(t *testing.T, silent bool) (*Client, *fakeSphero) {
	t.Helper()
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()

	dev := &fakeSphero{port: &pipePort{r: devR, w: devW}, silent: silent}
	go dev.serve()

	c := NewClient(&pipePort{r: hostR, w: hostW})
	t.Cleanup(func() {
		c.Close()
		dev.port.Close()
	})
	return c, dev
}

func (f *fakeSphero) serve() {
	head := make([]byte, 6)
	for {
		if _, err := io.ReadFull(f.port, head); err != nil {
			return
		}
		body := make([]byte, int(head[5]))
		if _, err := io.ReadFull(f.port, body); err != nil {
			return
		}
		cmd := Command{DID: head[2], CID: head[3], Seq: head[4], Data: body[:len(body)-1], NoAnswer: head[1] == 0xFE}
		f.mu.Lock()
		f.received = append(f.received, cmd)
		f.mu.Unlock()
		if f.silent || cmd.NoAnswer {
			continue
		}
		if _, err := f.port.Write(encodeResponse(RspOK, cmd.Seq, nil)); err != nil {
			return
		}
	}
}

func (f *fakeSphero) commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.received...)
}

func runClient(t *testing.T, c *Client) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)
	return cancel
}

func TestClientRoundTrip(t *testing.T) {
	c, dev := newFakeLink(t, false)
	runClient(t, c)

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Roll(ctx, 90, 0.5))
	require.NoError(t, c.StreamAttitude(ctx, 2))

	cmds := dev.commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, CmdPing, cmds[0].CID)
	assert.Equal(t, DeviceCore, cmds[0].DID)
	assert.Equal(t, CmdRoll, cmds[1].CID)
	assert.Equal(t, []byte{128, 0x00, 0x5A, 1}, cmds[1].Data)
	assert.Equal(t, CmdSetDataStreaming, cmds[2].CID)

	// sequence numbers increase per command
	assert.Equal(t, byte(1), cmds[0].Seq)
	assert.Equal(t, byte(2), cmds[1].Seq)
	assert.Equal(t, byte(3), cmds[2].Seq)
}

func TestClientTimeout(t *testing.T) {
	c, _ := newFakeLink(t, true)
	runClient(t, c)
	c.SetTimeout(50 * time.Millisecond)

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClientContextCancel(t *testing.T) {
	c, _ := newFakeLink(t, true)
	runClient(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientAttitudeStream(t *testing.T) {
	c, dev := newFakeLink(t, false)

	got := make(chan Attitude, 4)
	c.OnAttitude = func(a Attitude) { got <- a }
	runClient(t, c)

	go dev.port.Write(encodeAsync(AsyncSensorData, []byte{0x00, 0x05, 0xFF, 0xF6, 0x00, 0xB4}))

	select {
	case a := <-got:
		assert.Equal(t, Attitude{Pitch: 5, Roll: -10, Yaw: 180}, a)
	case <-time.After(time.Second):
		t.Fatal("no attitude sample delivered")
	}
}

func TestClientClosed(t *testing.T) {
	c, _ := newFakeLink(t, false)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestRunStopsOnCancel(t *testing.T) {
	c, _ := newFakeLink(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
