package contribution

import (
	"context"
	"errors"

	"abitudini/gridrange/internal/core/daterange"
)

// ErrUpstreamUnavailable marks fetch failures where the habit API was not even tried.
var ErrUpstreamUnavailable = errors.New("habit API unavailable")

// Plan is the grid window chosen for one viewport width.
type Plan struct {
	Width  int                 `json:"width"`
	Months int                 `json:"months"`
	Range  daterange.DateRange `json:"range"`
}

// Request is one per-habit contribution grid fetch.
type Request struct {
	HabitID int    `json:"habitId"`
	URL     string `json:"url"`
}

// Grid is the rendered contribution grid fragment returned by the habit API.
type Grid struct {
	HabitID int    `json:"habitId"`
	HTML    string `json:"html"`
}

// GridFetcher is the request layer that resolves planned requests into grids.
type GridFetcher interface {
	FetchAll(ctx context.Context, requests []Request) ([]Grid, error)
}
