package search

import (
	"context"

	"ratelab/internal/domain"
)

// Phase is the state of a search session
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseResolved
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher is the network collaborator a session queries
type Fetcher interface {
	Search(ctx context.Context, query string) ([]domain.Item, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, query string) ([]domain.Item, error)

func (f FetcherFunc) Search(ctx context.Context, query string) ([]domain.Item, error) {
	return f(ctx, query)
}

// Snapshot is a copy of a session's state
type Snapshot struct {
	Session domain.Session
	Phase   Phase
	Query   string        // query of the live or last applied request
	Token   uint64        // live token while pending, zero otherwise
	Results []domain.Item // last resolved results
	Err     error         // set in PhaseFailed
	Issued  int           // requests sent upstream
}

// Response is the outcome of one executed request
type Response struct {
	Token uint64
	Query string
	Items []domain.Item
	Err   error
}
