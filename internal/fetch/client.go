// Package fetch is the HTTP collaborator behind the search demo: a JSON GET
// client that honors context cancellation, paces upstream calls with a
// token bucket, and sorts failures into aborted, HTTP and network errors.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ratelab/internal/domain"
)

const maxBodyBytes = 4 << 20

// Client fetches JSON documents from a single upstream API
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit paces requests to rps per second with the given burst.
// A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: 10 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root
func (c *Client) BaseURL() string { return c.baseURL }

// FetchJSON GETs rawURL and decodes the JSON body into v
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return classify(ctx, rawURL, err)
		}
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(ctx, rawURL, err)
		c.logger.Debug("request failed", "url", rawURL, "error", err)
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("response received",
		"url", rawURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return classify(ctx, rawURL, fmt.Errorf("decode body: %w", err))
	}
	return nil
}

type post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// SearchURL returns the posts search endpoint for query
func (c *Client) SearchURL(query string) string {
	return c.baseURL + "/posts?title_like=" + url.QueryEscape(query)
}

// Search returns the posts whose title matches query
func (c *Client) Search(ctx context.Context, query string) ([]domain.Item, error) {
	var posts []post
	if err := c.FetchJSON(ctx, c.SearchURL(query), &posts); err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, domain.Item{ID: p.ID, Title: p.Title})
	}
	return items, nil
}

// FetchAll fetches every URL in parallel. The first failure cancels the
// rest; results are returned in input order.
func (c *Client) FetchAll(ctx context.Context, urls []string) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			var raw json.RawMessage
			if err := c.FetchJSON(gctx, u, &raw); err != nil {
				return err
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
