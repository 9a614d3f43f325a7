package phone

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/teslashibe/lasershark/pkg/protocol"
)

// touchThrottle limits the touch rate of one phone. Touches over the limit
// are held back, newest wins, and the held touch is delivered as soon as
// the limiter allows, so the end of a drag is never lost.
type touchThrottle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	deliver func(*protocol.TouchData)
	pending *protocol.TouchData
	timer   *time.Timer
	stopped bool
}

func newTouchThrottle(perSecond float64, deliver func(*protocol.TouchData)) *touchThrottle {
	return &touchThrottle{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		deliver: deliver,
	}
}

// offer reports whether td may be delivered now. Otherwise td is held;
// superseded is true when it replaced an earlier held touch.
func (t *touchThrottle) offer(td *protocol.TouchData) (now, superseded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false, false
	}
	if t.timer == nil && t.limiter.Allow() {
		return true, false
	}

	superseded = t.pending != nil
	t.pending = td
	if t.timer == nil {
		t.timer = time.AfterFunc(t.limiter.Reserve().Delay(), t.flush)
	}
	return false, superseded
}

func (t *touchThrottle) flush() {
	t.mu.Lock()
	td := t.pending
	t.pending, t.timer = nil, nil
	stopped := t.stopped
	t.mu.Unlock()

	if td != nil && !stopped {
		t.deliver(td)
	}
}

func (t *touchThrottle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
