package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	auditpostgres "abitudini/gridrange/internal/adapters/audit/postgres"
	"abitudini/gridrange/internal/adapters/habitapi"
	appcontribution "abitudini/gridrange/internal/application/contribution"
	apphealth "abitudini/gridrange/internal/application/health"
	"abitudini/gridrange/internal/core/audit"
	corecontribution "abitudini/gridrange/internal/core/contribution"
	"abitudini/gridrange/internal/core/daterange"
	"abitudini/gridrange/internal/infrastructure/cache"
	"abitudini/gridrange/internal/infrastructure/database"
	httpinfra "abitudini/gridrange/internal/infrastructure/http"
)

const databaseConnectTimeout = 5 * time.Second

// runtime holds the services a fetching command needs. close releases them in reverse order.
type runtime struct {
	service   *appcontribution.Service
	auditRepo audit.Repository // nil without a database
	checks    []apphealth.Check
	closers   []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newService builds the planner. fetcher may be nil for commands that never call the habit API.
func newService(fetcher corecontribution.GridFetcher) *appcontribution.Service {
	return appcontribution.NewService(appcontribution.Options{
		Bounds:   cfg.Grid.Bounds,
		Location: cfg.Grid.Location,
		BaseURL:  cfg.HabitAPI.BaseURL,
		Fetcher:  fetcher,
		Logger:   log,
	})
}

// wire connects the audit database (when configured) and the habit API client.
func wire(ctx context.Context) *runtime {
	rt := &runtime{}

	var auditRepo audit.Repository
	if pool := openAuditDatabase(ctx); pool != nil {
		rt.closers = append(rt.closers, pool.Close)
		rt.checks = append(rt.checks, apphealth.Check{Name: "audit-db", Probe: pool.Ping})
		auditRepo = auditpostgres.NewRepository(pool, log)
		rt.auditRepo = auditRepo
	}

	if cfg.Audit.Enabled && auditRepo == nil {
		log.Warn("Audit trail disabled: database connection required")
	}

	if cfg.HabitAPI.BaseURL == "" {
		log.Warn("HABIT_API_BASE_URL not set, grid loading is disabled")
		rt.service = newService(nil)
		return rt
	}

	traced := httpinfra.NewTracedClient(httpinfra.TracedClientConfig{
		Timeout:         cfg.HabitAPI.Timeout,
		AuditEnabled:    cfg.Audit.Enabled,
		LogResponseBody: cfg.Audit.LogResponseBody,
		MaxBodySize:     cfg.Audit.MaxBodySize,
		MaxConnsPerHost: cfg.Grid.FetchConcurrency,
	}, log, auditRepo, "habit-api")
	rt.closers = append(rt.closers, traced.Flush)

	gridCache := cache.NewGridCache(cfg.Grid.CacheTTL)
	rt.closers = append(rt.closers, startJanitor(ctx, gridCache, cfg.Grid.CacheTTL))

	breaker := habitapi.NewCircuitBreaker(cfg.HabitAPI.BreakerFailures, cfg.HabitAPI.BreakerCooldown)
	rt.checks = append(rt.checks, apphealth.Check{Name: "habit-api", Probe: breaker.Check})

	client := habitapi.NewClient(traced, cfg.HabitAPI.Token, cfg.Grid.FetchConcurrency, log,
		habitapi.WithCache(gridCache),
		habitapi.WithCircuitBreaker(breaker),
	)
	rt.service = newService(client)

	log.Info("Habit API configured",
		"base_url", cfg.HabitAPI.BaseURL,
		"concurrency", cfg.Grid.FetchConcurrency,
		"cache_ttl", cfg.Grid.CacheTTL,
		"audit_enabled", cfg.Audit.Enabled && auditRepo != nil,
	)
	return rt
}

// startJanitor sweeps expired grids once per TTL. The returned func stops it and waits.
func startJanitor(ctx context.Context, gridCache *cache.GridCache, ttl time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		gridCache.RunJanitor(ctx, ttl, log)
	}()
	return func() {
		cancel()
		<-done
	}
}

// openAuditDatabase returns nil when the database is not configured or unreachable.
func openAuditDatabase(ctx context.Context) *pgxpool.Pool {
	if !cfg.Database.Configured() {
		log.Info("Database not configured, audit trail disabled")
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, databaseConnectTimeout)
	defer cancel()

	pool, err := database.NewPool(connectCtx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Warn("Failed to connect to database, audit trail disabled",
			"error", err,
			"host", cfg.Database.Host,
			"database", cfg.Database.Database,
			"password_set", cfg.Database.Password != "",
		)
		return nil
	}

	if err := database.RunMigrations(connectCtx, pool, log); err != nil {
		pool.Close()
		log.Warn("Failed to run migrations, audit trail disabled", "error", err)
		return nil
	}

	log.Info("Database connection established", "database", cfg.Database.Database)
	return pool
}

// plan honors --today when given.
func plan(service *appcontribution.Service) (corecontribution.Plan, error) {
	if today == "" {
		return service.Plan(width), nil
	}
	day, err := daterange.ParseDate(today)
	if err != nil {
		return corecontribution.Plan{}, fmt.Errorf("--today: %w", err)
	}
	return service.PlanAt(day, width), nil
}
