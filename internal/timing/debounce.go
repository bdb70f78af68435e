package timing

import (
	"sync"
	"time"
)

// Debouncer delays a callback until calls have been quiet for the configured
// delay. Only the argument of the last call in a burst is delivered.
type Debouncer[T any] struct {
	clock    Clock
	delay    time.Duration
	callback func(T)

	mu       sync.Mutex
	pending  Timer
	gen      uint64
	disposed bool
}

// NewDebouncer wraps callback so it runs delay after the last Call.
func NewDebouncer[T any](delay time.Duration, callback func(T), opts ...Option) (*Debouncer[T], error) {
	if delay < 0 {
		return nil, ErrNegativeDuration
	}
	if callback == nil {
		return nil, ErrNilCallback
	}
	o := buildOptions(opts)
	return &Debouncer[T]{
		clock:    o.clock,
		delay:    delay,
		callback: callback,
	}, nil
}

// Delay returns the quiet period.
func (d *Debouncer[T]) Delay() time.Duration { return d.delay }

// Call restarts the quiet period with arg as the value to deliver.
// It never blocks on the callback.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.clock.AfterFunc(d.delay, func() { d.fire(gen, arg) })
}

// fire runs the callback unless a newer call or a teardown superseded gen.
// Stop can lose the race against a timer that already started, so the
// generation check is what guarantees last-call-wins.
func (d *Debouncer[T]) fire(gen uint64, arg T) {
	d.mu.Lock()
	if d.disposed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.callback(arg)
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Cancel drops the scheduled invocation, if any. The debouncer stays usable.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Dispose cancels the scheduled invocation and ignores every later Call.
func (d *Debouncer[T]) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.disposed = true
}

func (d *Debouncer[T]) cancelLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}
