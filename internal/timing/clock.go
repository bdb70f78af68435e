// Package timing provides the rate-limiting primitives used by the demo:
// a trailing-edge Debouncer and a leading-edge, dropping Throttler.
//
// Both primitives own at most one pending timer at a time and expose
// Dispose for deterministic teardown. Time is read through a Clock so
// tests can drive timers by hand with a ManualClock.
package timing

import (
	"errors"
	"time"
)

var (
	// ErrNegativeDuration is returned when a delay or window is below zero.
	ErrNegativeDuration = errors.New("timing: duration must not be negative")
	// ErrNilCallback is returned when no callback is supplied.
	ErrNilCallback = errors.New("timing: callback must not be nil")
)

// Timer is a handle to a scheduled function.
type Timer interface {
	// Stop prevents the function from running. It reports false if the
	// function already ran or the timer was already stopped.
	Stop() bool
}

// Clock schedules deferred work and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the Clock backed by the runtime timers.
func SystemClock() Clock { return systemClock{} }

// Option configures a Debouncer or Throttler.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the clock used to schedule timers.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
