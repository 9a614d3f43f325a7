package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/lasershark/pkg/imaging"
)

// ErrClosed is returned by Read after a source has been closed.
var ErrClosed = errors.New("camera: source closed")

// Source produces frames for the tracker. Read blocks until a frame is
// available and fills dst, reallocating its pixels if the size changed.
type Source interface {
	Read(ctx context.Context, dst *imaging.Frame) error
	Close() error
}

// DecodeFunc decodes one encoded image into dst.
type DecodeFunc func(data []byte, dst *imaging.Frame) error

// Queue is a push Source for frames that arrive as encoded images (phone
// uploads, WebRTC). Only the newest pending image is kept; older ones are
// dropped so the tracker never falls behind real time.
type Queue struct {
	decode DecodeFunc

	mu      sync.Mutex
	pending []byte
	ready   chan struct{}
	closed  chan struct{}
	once    sync.Once

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewQueue creates a queue that decodes with decode.
func NewQueue(decode DecodeFunc) *Queue {
	return &Queue{
		decode: decode,
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Push offers an encoded image. It never blocks.
func (q *Queue) Push(data []byte) {
	q.mu.Lock()
	if q.pending != nil {
		q.dropped.Add(1)
	}
	q.pending = data
	q.mu.Unlock()
	q.pushed.Add(1)

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Read waits for the next image and decodes it into dst.
func (q *Queue) Read(ctx context.Context, dst *imaging.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.closed:
			return ErrClosed
		case <-q.ready:
		}

		q.mu.Lock()
		data := q.pending
		q.pending = nil
		q.mu.Unlock()
		if data == nil {
			continue
		}
		return q.decode(data, dst)
	}
}

// Close wakes any blocked Read.
func (q *Queue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}

// QueueStats counts pushed and superseded images.
type QueueStats struct {
	Pushed  uint64 `json:"pushed"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{Pushed: q.pushed.Load(), Dropped: q.dropped.Load()}
}

var _ Source = (*Queue)(nil)
