package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ratelab/internal/domain"
	"ratelab/internal/eventbus"
)

// Metric names, combined with a session or pane by Key
const (
	MetricRuns      = "runs"      // handler invocations
	MetricAPICalls  = "api_calls" // requests sent upstream
	MetricResolved  = "resolved"
	MetricFailed    = "failed"
	MetricDiscarded = "discarded"
	MetricCleared   = "cleared"
	MetricDropped   = "dropped" // scroll steps swallowed by the throttle
	MetricQueries   = "queries" // per-item visibility checks
)

// Counters that belong to no session or pane
const (
	Keystrokes  = "input.keystrokes"
	ScrollSteps = "scroll.steps"
)

// Key builds a counter name such as "search.debounced.api_calls"
func Key[S ~string](scope S, metric string) string {
	return string(scope) + "." + metric
}

const (
	sinkQueueSize = 256
	flushTimeout  = 200 * time.Millisecond
)

// Recorder owns the counters shown in the UI. Increments land in memory
// synchronously and are mirrored to sinks from a background worker.
type Recorder struct {
	mem    *MemoryStore
	sinks  []Store
	logger *slog.Logger
	now    func() time.Time

	queue     chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	buses     map[eventbus.EventBus]int // attach count per bus
}

type RecorderOption func(*Recorder)

// WithSink mirrors every increment to s
func WithSink(s Store) RecorderOption {
	return func(r *Recorder) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		mem:    NewMemoryStore(),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.sinks) > 0 {
		r.queue = make(chan Event, sinkQueueSize)
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

// Add increments name by delta
func (r *Recorder) Add(name string, delta int64) {
	ev := Event{Name: name, Delta: delta, At: r.now()}
	_ = r.mem.Record(context.Background(), ev)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.queue == nil || r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("stats sink queue full, dropping increment", "name", name)
	}
}

// Inc increments name by one
func (r *Recorder) Inc(name string) { r.Add(name, 1) }

func (r *Recorder) Get(name string) int64 { return r.mem.Get(name) }

func (r *Recorder) Snapshot() []Counter { return r.mem.Snapshot() }

// Reset zeroes the in-memory counters. Sinks keep their history. Events
// already published on attached buses are counted first so none of them
// lands after the reset.
func (r *Recorder) Reset() {
	r.mu.RLock()
	buses := make([]eventbus.EventBus, 0, len(r.buses))
	for b := range r.buses {
		buses = append(buses, b)
	}
	r.mu.RUnlock()

	for _, b := range buses {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := b.Flush(ctx); err != nil {
			r.logger.Warn("event bus flush before reset timed out", "error", err)
		}
		cancel()
	}
	r.mem.Reset()
	r.logger.Info("counters reset")
}

// Attach counts domain events published on bus. The returned func detaches.
func (r *Recorder) Attach(bus eventbus.EventBus) func() {
	r.mu.Lock()
	if r.buses == nil {
		r.buses = make(map[eventbus.EventBus]int)
	}
	r.buses[bus]++
	r.mu.Unlock()

	unsubs := []func(){
		bus.Subscribe(domain.EventSearchIssued, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.SearchIssuedEvent); ok {
				r.Inc(Key(ev.Session, MetricAPICalls))
			}
		}),
		bus.Subscribe(domain.EventSearchResolved, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.SearchResolvedEvent); ok {
				r.Inc(Key(ev.Session, MetricResolved))
			}
		}),
		bus.Subscribe(domain.EventSearchFailed, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.SearchFailedEvent); ok {
				r.Inc(Key(ev.Session, MetricFailed))
			}
		}),
		bus.Subscribe(domain.EventSearchDiscarded, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.SearchDiscardedEvent); ok {
				r.Inc(Key(ev.Session, MetricDiscarded))
			}
		}),
		bus.Subscribe(domain.EventSearchCleared, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.SearchClearedEvent); ok {
				r.Inc(Key(ev.Session, MetricCleared))
			}
		}),
		bus.Subscribe(domain.EventScrollHandled, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.ScrollHandledEvent); ok {
				if ev.Queries > 0 {
					r.Add(Key(ev.Pane, MetricQueries), int64(ev.Queries))
				}
			}
		}),
		bus.Subscribe(domain.EventScrollDropped, func(e eventbus.DomainEvent) {
			if ev, ok := e.(domain.ScrollDroppedEvent); ok {
				r.Inc(Key(ev.Pane, MetricDropped))
			}
		}),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
			r.mu.Lock()
			if r.buses[bus]--; r.buses[bus] <= 0 {
				delete(r.buses, bus)
			}
			r.mu.Unlock()
		})
	}
}

// Close flushes queued increments to the sinks and stops the worker
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		if r.queue != nil {
			close(r.queue)
		}
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for ev := range r.queue {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.Record(ctx, ev); err != nil {
				r.logger.Warn("stats sink error", "name", ev.Name, "error", err)
			}
			cancel()
		}
	}
}
