package contribution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	corecontribution "abitudini/gridrange/internal/core/contribution"
)

// Planner sizes a grid window for a viewport width.
type Planner interface {
	Plan(width int) corecontribution.Plan
}

// LoadFunc receives every plan the Refresher decides to load.
type LoadFunc func(ctx context.Context, plan corecontribution.Plan) error

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	Planner      Planner
	Load         LoadFunc
	InitialDelay time.Duration
	Debounce     time.Duration
	Logger       *slog.Logger
}

// Refresher reloads grids once shortly after start and again after each burst of resizes settles.
// Only the last width of a burst is planned, and a plan covering the same window as the last
// successful load is skipped.
type Refresher struct {
	planner      Planner
	load         LoadFunc
	initialDelay time.Duration
	debounce     time.Duration
	log          *slog.Logger

	loading sync.Mutex // serializes loads

	mu      sync.Mutex
	ctx     context.Context
	timer   *time.Timer
	pending int
	last    *corecontribution.Plan
	closed  bool
	running sync.WaitGroup
}

func NewRefresher(opts RefresherOptions) *Refresher {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Refresher{
		planner:      opts.Planner,
		load:         opts.Load,
		initialDelay: opts.InitialDelay,
		debounce:     opts.Debounce,
		log:          opts.Logger,
		ctx:          context.Background(),
	}
}

// Start schedules the initial load for width. ctx bounds every later load too.
func (r *Refresher) Start(ctx context.Context, width int) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	r.schedule(r.initialDelay, width)
}

// Resize restarts the debounce window with the new width.
func (r *Refresher) Resize(width int) {
	r.schedule(r.debounce, width)
}

// Flush runs a pending load right away instead of waiting out its delay, then waits for it.
func (r *Refresher) Flush() {
	r.mu.Lock()
	if r.timer != nil && r.timer.Stop() {
		width := r.pending
		r.timer = nil
		r.mu.Unlock()

		r.fire(width)
		r.running.Done()
	} else {
		r.mu.Unlock()
	}

	r.running.Wait()
}

// Close cancels any pending load and waits for a running one to return.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.stopLocked()
	r.mu.Unlock()

	r.running.Wait()
}

func (r *Refresher) schedule(delay time.Duration, width int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.stopLocked()

	r.running.Add(1)
	r.pending = width
	r.timer = time.AfterFunc(delay, func() {
		defer r.running.Done()
		r.fire(width)
	})
}

// stopLocked cancels the pending timer. A timer that already fired owns its Done call.
func (r *Refresher) stopLocked() {
	if r.timer != nil && r.timer.Stop() {
		r.running.Done()
	}
	r.timer = nil
}

func (r *Refresher) fire(width int) {
	r.loading.Lock()
	defer r.loading.Unlock()

	r.mu.Lock()
	ctx := r.ctx
	last := r.last
	closed := r.closed
	r.mu.Unlock()

	if closed || ctx.Err() != nil {
		return
	}

	plan := r.planner.Plan(width)
	if last != nil && samePlan(*last, plan) {
		r.log.Debug("contribution range unchanged, skipping reload", "width", width, "months", plan.Months)
		return
	}

	if err := r.load(ctx, plan); err != nil {
		r.log.Error("contribution grid reload failed", "width", width, "months", plan.Months, "error", err)
		return
	}

	r.mu.Lock()
	r.last = &plan
	r.mu.Unlock()
}

func samePlan(a, b corecontribution.Plan) bool {
	return a.Months == b.Months && a.Range.From.Equal(b.Range.From) && a.Range.To.Equal(b.Range.To)
}
