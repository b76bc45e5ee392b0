package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key for the internal correlation ID.
const RequestIDKey contextKey = "request_id"

// RequestIDMiddleware tags each request with a correlation ID for log
// lines. The ID stays internal: clients only ever see the spoofed
// X-Request-ID minted by the response framing, so log correlation never
// leaks through the deception surface.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), RequestIDKey, uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation ID from context, or an empty
// string outside the middleware.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
