package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeout bounds the request context, so handlers that fan out to the habit API
// stop waiting once d has elapsed. A non-positive d leaves the context untouched.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
