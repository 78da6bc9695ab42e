package contribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	corecontribution "abitudini/gridrange/internal/core/contribution"
	"abitudini/gridrange/internal/core/daterange"
)

var (
	ErrNoHabits        = errors.New("at least one habit id is required")
	ErrInvalidHabitID  = errors.New("habit id must be a positive integer")
	ErrFetcherNotReady = errors.New("habit API is not configured")
)

// Options configures a Service. Zero values fall back to sensible defaults.
type Options struct {
	Bounds   daterange.Bounds
	Location *time.Location
	Clock    func() time.Time
	BaseURL  string // Habit API origin; empty yields relative request URLs
	Fetcher  corecontribution.GridFetcher
	Logger   *slog.Logger
}

// Service plans contribution grid windows and forwards them to the request layer.
type Service struct {
	bounds   daterange.Bounds
	location *time.Location
	clock    func() time.Time
	baseURL  string
	fetcher  corecontribution.GridFetcher
	log      *slog.Logger
}

func NewService(opts Options) *Service {
	if opts.Bounds == (daterange.Bounds{}) {
		opts.Bounds = daterange.DefaultBounds
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		bounds:   opts.Bounds,
		location: opts.Location,
		clock:    opts.Clock,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		fetcher:  opts.Fetcher,
		log:      opts.Logger,
	}
}

// Today returns the current calendar date in the configured location.
func (s *Service) Today() time.Time {
	return s.clock().In(s.location)
}

// Plan sizes the grid window for width ending today.
func (s *Service) Plan(width int) corecontribution.Plan {
	return s.PlanAt(s.Today(), width)
}

// PlanAt sizes the grid window for width ending on today.
func (s *Service) PlanAt(today time.Time, width int) corecontribution.Plan {
	months, r := s.bounds.ForWidth(today, width)
	return corecontribution.Plan{Width: width, Months: months, Range: r}
}

// Requests builds one contribution request per habit for plan. Duplicate ids are dropped, order is kept.
func (s *Service) Requests(plan corecontribution.Plan, habitIDs []int) ([]corecontribution.Request, error) {
	if len(habitIDs) == 0 {
		return nil, ErrNoHabits
	}

	query := plan.Range.Query().Encode()
	seen := make(map[int]struct{}, len(habitIDs))
	requests := make([]corecontribution.Request, 0, len(habitIDs))

	for _, id := range habitIDs {
		if id <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidHabitID, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		requests = append(requests, corecontribution.Request{
			HabitID: id,
			URL:     s.contributionURL(id, query),
		})
	}

	return requests, nil
}

// Load plans the window for width and fetches every habit's grid through the request layer.
func (s *Service) Load(ctx context.Context, width int, habitIDs []int) (corecontribution.Plan, []corecontribution.Grid, error) {
	plan := s.Plan(width)
	grids, err := s.LoadPlan(ctx, plan, habitIDs)
	return plan, grids, err
}

// LoadPlan fetches every habit's grid for an already computed plan.
func (s *Service) LoadPlan(ctx context.Context, plan corecontribution.Plan, habitIDs []int) ([]corecontribution.Grid, error) {
	requests, err := s.Requests(plan, habitIDs)
	if err != nil {
		return nil, err
	}

	if s.fetcher == nil {
		return nil, ErrFetcherNotReady
	}

	s.log.Debug("loading contribution grids",
		"width", plan.Width,
		"months", plan.Months,
		"range", plan.Range.String(),
		"habits", len(requests),
	)

	grids, err := s.fetcher.FetchAll(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("fetch contribution grids: %w", err)
	}

	return grids, nil
}

func (s *Service) contributionURL(habitID int, query string) string {
	return s.baseURL + "/api/habits/" + strconv.Itoa(habitID) + "/contribution?" + query
}

// ParseHabitIDs parses a comma separated id list such as "1, 2,3".
func ParseHabitIDs(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHabitID, part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrNoHabits
	}
	return ids, nil
}
