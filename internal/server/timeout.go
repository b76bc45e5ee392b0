package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps how long a request may hold the fabrication path,
// generative call included. Cancellation is cooperative through the
// context; the bound comes from server.request_timeout_seconds and must
// exceed the synthesizer's own completion timeout to be meaningful.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
