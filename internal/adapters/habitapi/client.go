package habitapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"abitudini/gridrange/internal/core/contribution"
	"abitudini/gridrange/internal/infrastructure/cache"
)

// DefaultConcurrency bounds FetchAll when no limit is configured.
const DefaultConcurrency = 8

// maxGridSize caps a single grid fragment read from the habit API.
const maxGridSize = 4 << 20

// ErrGridTooLarge is returned for grid fragments above maxGridSize. Partial grids are never returned.
var ErrGridTooLarge = fmt.Errorf("grid exceeds %d bytes", maxGridSize)

// Doer sends HTTP requests. *http.Client and the traced client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches rendered contribution grids from the habit server.
type Client struct {
	client      Doer
	token       string
	concurrency int
	log         *slog.Logger
	cache       *cache.GridCache
	breaker     *CircuitBreaker
}

// Option customizes a Client.
type Option func(*Client)

// WithCache serves repeated requests for the same range from c.
func WithCache(c *cache.GridCache) Option {
	return func(client *Client) { client.cache = c }
}

// WithCircuitBreaker fails fast while the habit API keeps failing.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(client *Client) { client.breaker = cb }
}

// NewClient creates a habit API client. An empty token sends no Authorization header.
func NewClient(client Doer, token string, concurrency int, log *slog.Logger, opts ...Option) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	c := &Client{
		client:      client,
		token:       token,
		concurrency: concurrency,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchGrid retrieves the grid fragment for a single planned request.
func (c *Client) FetchGrid(ctx context.Context, request contribution.Request) (contribution.Grid, error) {
	if c.cache != nil {
		if html, ok := c.cache.Get(request.URL); ok {
			return contribution.Grid{HabitID: request.HabitID, HTML: html}, nil
		}
	}

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return contribution.Grid{}, fmt.Errorf("habit %d: %w", request.HabitID, err)
		}
	}

	grid, upstreamFault, err := c.fetch(ctx, request)
	if c.breaker != nil {
		switch {
		case upstreamFault:
			c.breaker.Failure()
		case err != nil:
			c.breaker.Release()
		default:
			c.breaker.Success()
		}
	}
	if err != nil {
		return contribution.Grid{}, err
	}

	if c.cache != nil {
		c.cache.Set(request.URL, grid.HTML)
	}
	return grid, nil
}

// fetch performs the HTTP call. upstreamFault marks failures the habit API is responsible for:
// transport errors other than caller cancellation, and 5xx answers.
func (c *Client) fetch(ctx context.Context, request contribution.Request) (grid contribution.Grid, upstreamFault bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, request.URL, nil)
	if err != nil {
		return contribution.Grid{}, false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Habit API request failed", "habit_id", request.HabitID, "error", err)
		cancelled := errors.Is(err, context.Canceled) || ctx.Err() != nil
		return contribution.Grid{}, !cancelled, fmt.Errorf("habit %d: request failed: %w", request.HabitID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("Habit API returned non-2xx status", "habit_id", request.HabitID, "status", resp.StatusCode)
		return contribution.Grid{}, resp.StatusCode >= 500, fmt.Errorf("habit %d: unexpected status code %d", request.HabitID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGridSize+1))
	if err != nil {
		return contribution.Grid{}, true, fmt.Errorf("habit %d: read response body: %w", request.HabitID, err)
	}
	if len(body) > maxGridSize {
		c.log.Warn("Habit API returned an oversized grid", "habit_id", request.HabitID, "limit_bytes", maxGridSize)
		return contribution.Grid{}, false, fmt.Errorf("habit %d: %w", request.HabitID, ErrGridTooLarge)
	}

	return contribution.Grid{HabitID: request.HabitID, HTML: string(body)}, false, nil
}

// FetchAll fetches every request with bounded concurrency. Grids come back in request order;
// the first failure cancels the requests still in flight.
func (c *Client) FetchAll(ctx context.Context, requests []contribution.Request) ([]contribution.Grid, error) {
	grids := make([]contribution.Grid, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, request := range requests {
		g.Go(func() error {
			grid, err := c.FetchGrid(ctx, request)
			if err != nil {
				return err
			}
			grids[i] = grid
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.log.Debug("Fetched contribution grids", "count", len(grids))
	return grids, nil
}
