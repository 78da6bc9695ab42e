package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"abitudini/gridrange/internal/infrastructure/config"
	httperrors "abitudini/gridrange/internal/infrastructure/http"
)

type tokenContextKey struct{}

var allowedAlgorithms = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodES256.Alg(),
}

// JWTAuthenticator validates bearer tokens against a remote JWKS.
type JWTAuthenticator struct {
	cfg     config.AuthSettings
	log     *slog.Logger
	keyFunc jwt.Keyfunc
	cancel  context.CancelFunc
	bypass  map[string]struct{}
}

// NewJWTAuthenticator loads the JWKS when auth is enabled and keeps it refreshed in the background.
func NewJWTAuthenticator(cfg config.AuthSettings, log *slog.Logger) (*JWTAuthenticator, error) {
	auth := &JWTAuthenticator{
		cfg:    cfg,
		log:    log,
		bypass: make(map[string]struct{}, len(cfg.BypassPaths)),
	}
	for _, path := range cfg.BypassPaths {
		if path != "" {
			auth.bypass[path] = struct{}{}
		}
	}

	if !cfg.Enabled {
		return auth, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSetURI}, keyfunc.Override{
		RefreshInterval: 6 * time.Hour,
		HTTPTimeout:     10 * time.Second,
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				log.Error("failed to refresh JWKS", "url", url, "error", err)
			}
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to load JWKS: %w", err)
	}

	auth.keyFunc = jwks.Keyfunc
	auth.cancel = cancel
	return auth, nil
}

// Middleware rejects requests without a valid bearer token unless auth is disabled or the path is bypassed.
func (a *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	if !a.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			httperrors.WriteError(w, http.StatusUnauthorized, "Authentication error", []string{err.Error()}, a.log)
			return
		}

		token, err := jwt.Parse(raw, a.keyFunc,
			jwt.WithIssuer(a.cfg.IssuerURI),
			jwt.WithLeeway(a.cfg.ClockSkew),
			jwt.WithValidMethods(allowedAlgorithms),
		)
		if err != nil || !token.Valid {
			a.log.Warn("token validation failed", "path", r.URL.Path, "error", err)
			httperrors.WriteError(w, http.StatusUnauthorized, "Authentication error", []string{"invalid or expired token"}, a.log)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), token)))
	})
}

// WithToken stores a verified token in ctx.
func WithToken(ctx context.Context, token *jwt.Token) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the verified token stored by Middleware.
func TokenFromContext(ctx context.Context) (*jwt.Token, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(*jwt.Token)
	return token, ok
}

// Close stops background JWKS refreshes.
func (a *JWTAuthenticator) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *JWTAuthenticator) shouldBypass(path string) bool {
	_, ok := a.bypass[path]
	return ok
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	return parts[1], nil
}
