package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the request context. A running pipeline stops
// issuing model calls once the deadline passes and completes with its
// fallbacks, so an expired request is still answered; the request log line
// is marked with deadline_exceeded. A non-positive timeout disables it.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				AddLogField(ctx, "deadline_exceeded", "true")
			}
		})
	}
}
