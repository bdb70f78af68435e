package timing

import (
	"sync"
	"time"
)

// Throttler lets at most one call through per window. The leading call of a
// burst runs immediately; calls that land while the gate is closed are
// dropped, never queued.
type Throttler[T any] struct {
	clock    Clock
	window   time.Duration
	callback func(T)

	mu       sync.Mutex
	closed   bool
	reopen   Timer
	gen      uint64
	disposed bool
}

// NewThrottler wraps callback so it fires at most once per window.
// A zero window lets every call through.
func NewThrottler[T any](window time.Duration, callback func(T), opts ...Option) (*Throttler[T], error) {
	if window < 0 {
		return nil, ErrNegativeDuration
	}
	if callback == nil {
		return nil, ErrNilCallback
	}
	o := buildOptions(opts)
	return &Throttler[T]{
		clock:    o.clock,
		window:   window,
		callback: callback,
	}, nil
}

// Window returns the throttle window.
func (t *Throttler[T]) Window() time.Duration { return t.window }

// Call runs the callback synchronously if the gate is open and reports
// whether it did.
func (t *Throttler[T]) Call(arg T) bool {
	t.mu.Lock()
	if t.disposed || t.closed {
		t.mu.Unlock()
		return false
	}
	if t.window > 0 {
		t.closed = true
		t.gen++
		gen := t.gen
		t.reopen = t.clock.AfterFunc(t.window, func() { t.open(gen) })
	}
	t.mu.Unlock()

	t.callback(arg)
	return true
}

func (t *Throttler[T]) open(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || gen != t.gen {
		return
	}
	t.closed = false
	t.reopen = nil
}

// Open reports whether the next Call would fire.
func (t *Throttler[T]) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.disposed && !t.closed
}

// Dispose cancels the pending reopen. A disposed throttler never fires.
func (t *Throttler[T]) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reopen != nil {
		t.reopen.Stop()
		t.reopen = nil
	}
	t.gen++
	t.disposed = true
}
