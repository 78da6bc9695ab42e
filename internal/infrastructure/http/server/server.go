package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"abitudini/gridrange/internal/infrastructure/config"
	httperrors "abitudini/gridrange/internal/infrastructure/http"
	"abitudini/gridrange/internal/infrastructure/http/middleware"
)

// Server exposes the health check, the contribution range API and the fetch audit trail.
type Server struct {
	log             *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
	authenticator   *middleware.JWTAuthenticator
}

// Options wires handlers into the router. Contribution and audit handlers left nil answer 503.
type Options struct {
	Config          config.AppConfig
	Logger          *slog.Logger
	HealthHandler   http.Handler
	RangeHandler    http.Handler
	RequestsHandler http.Handler
	LoadHandler     http.Handler
	AuditHandler    http.Handler // reads {correlationID} with chi.URLParam
	Authenticator   *middleware.JWTAuthenticator
}

func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	if opts.Authenticator != nil {
		r.Use(opts.Authenticator.Middleware)
	}

	r.Method(http.MethodGet, "/health", opts.HealthHandler)

	r.Route("/api/v1/contribution", func(r chi.Router) {
		r.Method(http.MethodGet, "/range", orUnavailable(opts.RangeHandler, opts.Logger))
		r.Method(http.MethodGet, "/requests", orUnavailable(opts.RequestsHandler, opts.Logger))
		r.With(middleware.RequestTimeout(opts.Config.HabitAPI.Timeout)).
			Method(http.MethodPost, "/load", orUnavailable(opts.LoadHandler, opts.Logger))
	})
	r.Method(http.MethodGet, "/api/v1/audit/{correlationID}", orUnavailable(opts.AuditHandler, opts.Logger))

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}

	return &Server{
		log:             opts.Logger,
		httpServer:      srv,
		shutdownTimeout: opts.Config.HTTP.ShutdownTimeout,
		authenticator:   opts.Authenticator,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx := context.Background()
		if s.shutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdownTimeout)
			defer cancel()
		}

		s.log.Info("Shutting down HTTP server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the authenticator's background JWKS refresh.
func (s *Server) Close() {
	if s.authenticator != nil {
		s.authenticator.Close()
	}
}

func orUnavailable(h http.Handler, log *slog.Logger) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Service unavailable", []string{"endpoint is not configured"}, log)
	})
}
