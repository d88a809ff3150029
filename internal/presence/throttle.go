package presence

import (
	"sync"
	"time"
)

// DefaultThrottleInterval spaces cursor broadcasts.
const DefaultThrottleInterval = 50 * time.Millisecond

// Throttle limits calls to fn to one per interval. The first call in a quiet
// period runs immediately; calls inside the window are coalesced and the
// latest value runs when the window closes.
type Throttle[T any] struct {
	fn       func(T)
	interval time.Duration

	mu      sync.Mutex
	last    time.Time
	pending bool
	latest  T
	timer   *time.Timer
	stopped bool
}

func NewThrottle[T any](interval time.Duration, fn func(T)) *Throttle[T] {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle[T]{fn: fn, interval: interval}
}

// Call submits v. fn runs synchronously when the window is open, otherwise
// from a timer goroutine.
func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	t.latest = v
	if elapsed := now.Sub(t.last); elapsed >= t.interval {
		t.last = now
		// A late trailing timer must not replay a value this call supersedes.
		t.pending = false
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.mu.Unlock()
		t.fn(v)
		return
	}
	if !t.pending {
		t.pending = true
		t.timer = time.AfterFunc(t.interval-now.Sub(t.last), t.flush)
	}
	t.mu.Unlock()
}

func (t *Throttle[T]) flush() {
	t.mu.Lock()
	if t.stopped || !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = nil
	t.last = time.Now()
	v := t.latest
	t.mu.Unlock()
	t.fn(v)
}

// Stop drops any pending trailing call. Later calls are ignored.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
