package domain

// EventType represents the type of domain event
type EventType string

// Event types
const (
	EventSearchIssued    EventType = "SearchIssued"
	EventSearchResolved  EventType = "SearchResolved"
	EventSearchFailed    EventType = "SearchFailed"
	EventSearchDiscarded EventType = "SearchDiscarded"
	EventSearchCleared   EventType = "SearchCleared"
	EventScrollHandled   EventType = "ScrollHandled"
	EventScrollDropped   EventType = "ScrollDropped"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	Type() EventType
}

// SearchIssuedEvent is emitted when a session sends a request upstream
type SearchIssuedEvent struct {
	Session Session
	Query   string
	Token   uint64
}

func (e SearchIssuedEvent) Type() EventType { return EventSearchIssued }

// SearchResolvedEvent is emitted when the live request of a session succeeds
type SearchResolvedEvent struct {
	Session Session
	Query   string
	Token   uint64
	Count   int
}

func (e SearchResolvedEvent) Type() EventType { return EventSearchResolved }

// SearchFailedEvent is emitted when the live request of a session fails
type SearchFailedEvent struct {
	Session Session
	Query   string
	Token   uint64
	Err     error
}

func (e SearchFailedEvent) Type() EventType { return EventSearchFailed }

// DiscardReason explains why a response never reached the session state
type DiscardReason string

const (
	DiscardStale   DiscardReason = "stale"
	DiscardAborted DiscardReason = "aborted"
	DiscardClosed  DiscardReason = "closed"
)

// SearchDiscardedEvent is emitted when a response is dropped
type SearchDiscardedEvent struct {
	Session Session
	Query   string
	Token   uint64
	Reason  DiscardReason
}

func (e SearchDiscardedEvent) Type() EventType { return EventSearchDiscarded }

// SearchClearedEvent is emitted when an empty query resets a session
type SearchClearedEvent struct {
	Session Session
}

func (e SearchClearedEvent) Type() EventType { return EventSearchCleared }

// ScrollHandledEvent is emitted each time a scroll handler runs
type ScrollHandledEvent struct {
	Pane     Pane
	Position ScrollPosition
	Queries  int // per-item visibility checks performed by the handler
}

func (e ScrollHandledEvent) Type() EventType { return EventScrollHandled }

// ScrollDroppedEvent is emitted when the throttle gate swallows a scroll step
type ScrollDroppedEvent struct {
	Pane Pane
}

func (e ScrollDroppedEvent) Type() EventType { return EventScrollDropped }
