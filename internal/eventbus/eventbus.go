package eventbus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"ratelab/internal/domain"
)

// Re-export domain types for convenience
type DomainEvent = domain.DomainEvent
type EventType = domain.EventType

// EventHandler is a function that handles domain events
type EventHandler func(DomainEvent)

// EventBus is the interface for the event bus
type EventBus interface {
	Publish(event DomainEvent)
	Subscribe(eventType EventType, handler EventHandler) func()
	// Flush waits until every event published so far has been handled
	Flush(ctx context.Context) error
	Close()
}

type subscription struct {
	id      uint64
	handler EventHandler
}

// bus is the concrete implementation of EventBus
type bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   uint64

	eventChan chan DomainEvent
	wg        sync.WaitGroup

	// events queued or being handled
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond

	quit      chan struct{}
	closeOnce sync.Once
}

// New creates a new event bus and starts its dispatcher
func New(logger *slog.Logger) EventBus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &bus{
		logger:    logger,
		handlers:  make(map[EventType][]subscription),
		eventChan: make(chan DomainEvent, 1000),
		quit:      make(chan struct{}),
	}
	b.idle = sync.NewCond(&b.pendingMu)

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Publish queues an event for all subscribers. It never blocks; events are
// dropped when the queue is full or the bus is closed.
func (b *bus) Publish(event DomainEvent) {
	select {
	case <-b.quit:
		return
	default:
	}

	b.track(1)
	select {
	case b.eventChan <- event:
	default:
		b.track(-1)
		b.logger.Warn("event bus full, dropping event", "type", event.Type())
	}
}

func (b *bus) track(delta int) {
	b.pendingMu.Lock()
	b.pending += delta
	if b.pending == 0 {
		b.idle.Broadcast()
	}
	b.pendingMu.Unlock()
}

func (b *bus) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.pendingMu.Lock()
		b.idle.Broadcast()
		b.pendingMu.Unlock()
	})
	defer stop()

	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for b.pending > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-b.quit:
			return nil
		default:
		}
		b.idle.Wait()
	}
	return nil
}

// Subscribe subscribes to events of a specific type
// Returns an unsubscribe function
func (b *bus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Close stops the dispatcher. Queued events are discarded.
func (b *bus) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
		b.wg.Wait()

		b.pendingMu.Lock()
		b.idle.Broadcast()
		b.pendingMu.Unlock()
	})
}

// dispatch handles event distribution to subscribers
func (b *bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.mu.RLock()
			subs := b.handlers[event.Type()]
			// Copy so handlers run without the lock held
			handlers := make([]EventHandler, len(subs))
			for i, s := range subs {
				handlers[i] = s.handler
			}
			b.mu.RUnlock()

			b.track(len(handlers))
			for _, handler := range handlers {
				go b.call(handler, event)
			}
			b.track(-1)

		case <-b.quit:
			for {
				select {
				case <-b.eventChan:
					b.track(-1)
				default:
					return
				}
			}
		}
	}
}

func (b *bus) call(h EventHandler, event DomainEvent) {
	defer b.track(-1)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic",
				"type", event.Type(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(event)
}
