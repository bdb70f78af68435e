package search

import "context"

// Token identifies one request and carries its cancellation signal
type Token struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

func newToken(parent context.Context, id uint64) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{id: id, ctx: ctx, cancel: cancel}
}

// ID returns the token's generation number
func (t *Token) ID() uint64 { return t.id }

// Context is cancelled once the token is superseded or torn down
func (t *Token) Context() context.Context { return t.ctx }

// Cancel signals the request to abort
func (t *Token) Cancel() { t.cancel() }

// Cancelled reports whether Cancel has been called
func (t *Token) Cancelled() bool { return t.ctx.Err() != nil }

// Request is a search that still has to be sent upstream
type Request struct {
	Token   *Token
	Query   string
	fetcher Fetcher
}

// Execute runs the request. It blocks on the network and is meant to run
// off the event loop; hand the Response back to Controller.Deliver.
func (r *Request) Execute() Response {
	items, err := r.fetcher.Search(r.Token.Context(), r.Query)
	return Response{Token: r.Token.ID(), Query: r.Query, Items: items, Err: err}
}
