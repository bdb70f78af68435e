// Package search keeps one search session per Controller: it issues
// requests, cancels the ones a newer query supersedes, and lets only the
// response of the live request touch the session state.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ratelab/internal/domain"
	"ratelab/internal/eventbus"
	"ratelab/internal/fetch"
)

// Controller owns the state of a single search session. Controllers share
// nothing, so two sessions can run side by side without interfering.
type Controller struct {
	session domain.Session
	fetcher Fetcher
	bus     eventbus.EventBus
	logger  *slog.Logger
	parent  context.Context

	mu       sync.Mutex
	gen      uint64
	live     *Token
	phase    Phase
	query    string
	results  []domain.Item
	err      error
	issued   int
	disposed bool
}

// Option configures a Controller
type Option func(*Controller)

// WithBus publishes session events to b
func WithBus(b eventbus.EventBus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContext derives every request token from ctx
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.parent = ctx
		}
	}
}

// NewController creates an idle session backed by fetcher
func NewController(session domain.Session, fetcher Fetcher, opts ...Option) *Controller {
	c := &Controller{
		session: session,
		fetcher: fetcher,
		logger:  slog.New(slog.DiscardHandler),
		parent:  context.Background(),
		phase:   PhaseIdle,
		results: []domain.Item{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session", string(session))
	return c
}

// Session returns the session name
func (c *Controller) Session() domain.Session { return c.session }

// Search starts a new query. The previous request, if any, is cancelled and
// its response will be discarded. An empty query resolves to no results
// without a request and returns nil; otherwise the returned Request must be
// executed and its Response handed to Deliver.
func (c *Controller) Search(query string) *Request {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}

	if c.live != nil {
		c.live.Cancel()
		c.live = nil
	}
	c.gen++

	if query == "" {
		c.phase = PhaseResolved
		c.query = ""
		c.results = []domain.Item{}
		c.err = nil
		c.mu.Unlock()

		c.logger.Debug("query cleared")
		c.publish(domain.SearchClearedEvent{Session: c.session})
		return nil
	}

	tok := newToken(c.parent, c.gen)
	c.live = tok
	c.phase = PhasePending
	c.query = query
	c.err = nil
	c.issued++
	c.mu.Unlock()

	c.logger.Debug("search issued", "query", query, "token", tok.ID())
	c.publish(domain.SearchIssuedEvent{Session: c.session, Query: query, Token: tok.ID()})

	return &Request{Token: tok, Query: query, fetcher: c.fetcher}
}

// Deliver applies resp if it belongs to the live request and reports
// whether the session state changed. Responses of superseded requests and
// anything arriving after Dispose are dropped.
func (c *Controller) Deliver(resp Response) bool {
	c.mu.Lock()

	if c.disposed {
		c.mu.Unlock()
		c.discard(resp, domain.DiscardClosed)
		return false
	}
	if c.live == nil || c.live.ID() != resp.Token {
		c.mu.Unlock()
		c.discard(resp, domain.DiscardStale)
		return false
	}

	tok := c.live
	c.live = nil
	tok.Cancel()

	switch {
	case isAborted(resp.Err):
		c.phase = PhaseIdle
		c.mu.Unlock()
		c.discard(resp, domain.DiscardAborted)
		return true

	case resp.Err != nil:
		c.phase = PhaseFailed
		c.results = []domain.Item{}
		c.err = resp.Err
		c.mu.Unlock()

		c.logger.Warn("search failed", "query", resp.Query, "token", resp.Token, "error", resp.Err)
		c.publish(domain.SearchFailedEvent{Session: c.session, Query: resp.Query, Token: resp.Token, Err: resp.Err})
		return true

	default:
		items := resp.Items
		if items == nil {
			items = []domain.Item{}
		}
		c.phase = PhaseResolved
		c.results = items
		c.err = nil
		c.mu.Unlock()

		c.logger.Debug("search resolved", "query", resp.Query, "token", resp.Token, "count", len(items))
		c.publish(domain.SearchResolvedEvent{Session: c.session, Query: resp.Query, Token: resp.Token, Count: len(items)})
		return true
	}
}

// Dispose cancels the live request. Later Search calls are ignored and
// later responses are discarded.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true
	if c.live != nil {
		c.live.Cancel()
		c.live = nil
	}
	c.logger.Debug("session disposed")
}

// Snapshot returns a copy of the session state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Session: c.session,
		Phase:   c.phase,
		Query:   c.query,
		Results: append([]domain.Item(nil), c.results...),
		Err:     c.err,
		Issued:  c.issued,
	}
	if s.Results == nil {
		s.Results = []domain.Item{}
	}
	if c.live != nil {
		s.Token = c.live.ID()
	}
	return s
}

func (c *Controller) discard(resp Response, reason domain.DiscardReason) {
	c.logger.Debug("response discarded", "query", resp.Query, "token", resp.Token, "reason", string(reason))
	c.publish(domain.SearchDiscardedEvent{Session: c.session, Query: resp.Query, Token: resp.Token, Reason: reason})
}

func (c *Controller) publish(e domain.DomainEvent) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func isAborted(err error) bool {
	return fetch.IsAborted(err) || errors.Is(err, context.Canceled)
}
