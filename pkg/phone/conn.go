package phone

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/lasershark/pkg/protocol"
)

const (
	writeWait = 2 * time.Second
	sendQueue = 16
)

var (
	// ErrSendQueueFull is returned when a phone is not keeping up; the
	// message is dropped.
	ErrSendQueueFull = errors.New("phone send queue full")
	// ErrPhoneClosed is returned for sends after the phone disconnected.
	ErrPhoneClosed = errors.New("phone disconnected")
)

// wsWriter is the part of the websocket the write pump uses
type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection represents a connected phone
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	touches *touchThrottle
	mu      sync.Mutex

	out       wsWriter
	send      chan []byte
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

func newConnection(id string, conn *websocket.Conn, out wsWriter, touches *touchThrottle) *Connection {
	now := time.Now()
	return &Connection{
		ID:        id,
		Conn:      conn,
		Connected: now,
		LastSeen:  now,
		touches:   touches,
		out:       out,
		send:      make(chan []byte, sendQueue),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
}

// Send queues a message for the phone. It never blocks on the network.
func (p *Connection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return p.enqueue(data)
}

func (p *Connection) enqueue(data []byte) error {
	select {
	case <-p.done:
		return ErrPhoneClosed
	default:
	}
	select {
	case p.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// writePump is the only writer on the connection. A write that misses its
// deadline closes the socket, which ends the read loop.
func (p *Connection) writePump() {
	defer close(p.exited)
	for {
		select {
		case data := <-p.send:
			p.out.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.out.WriteMessage(websocket.TextMessage, data); err != nil {
				p.close()
				p.out.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}

// shutdown stops the write pump and waits for it, so the socket is not
// touched after the handler returns.
func (p *Connection) shutdown() {
	p.close()
	<-p.exited
}

func (p *Connection) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.touches.stop()
	})
}
