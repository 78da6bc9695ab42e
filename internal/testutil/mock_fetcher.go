package testutil

import (
	"context"
	"sync"

	"abitudini/gridrange/internal/core/contribution"
)

// MockGridFetcher records every batch it receives and delegates to FetchAllFunc when set.
// Without FetchAllFunc it answers each request with a fixed fragment naming the habit.
type MockGridFetcher struct {
	FetchAllFunc func(ctx context.Context, requests []contribution.Request) ([]contribution.Grid, error)

	mu    sync.Mutex
	calls [][]contribution.Request
}

func (m *MockGridFetcher) FetchAll(ctx context.Context, requests []contribution.Request) ([]contribution.Grid, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]contribution.Request(nil), requests...))
	m.mu.Unlock()

	if m.FetchAllFunc != nil {
		return m.FetchAllFunc(ctx, requests)
	}

	grids := make([]contribution.Grid, len(requests))
	for i, req := range requests {
		grids[i] = contribution.Grid{HabitID: req.HabitID, HTML: "<div>" + req.URL + "</div>"}
	}
	return grids, nil
}

// Calls returns a copy of the batches seen so far.
func (m *MockGridFetcher) Calls() [][]contribution.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]contribution.Request(nil), m.calls...)
}
