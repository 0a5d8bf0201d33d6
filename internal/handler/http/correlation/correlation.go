// Package correlation provides middleware and utilities for managing correlation IDs.
// Every request carries one so a notification can be traced from intake through
// delivery across logs of both the API and the worker.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// IDKey is the context key for storing correlation IDs.
	IDKey contextKey = "correlation_id"
	// Header is the HTTP header name for correlation IDs.
	Header = "X-Correlation-ID"
)

// FromContext retrieves the correlation ID from the context.
// Returns an empty string if none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(IDKey).(string); ok {
		return id
	}
	return ""
}

// WithID adds a correlation ID to the context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, IDKey, id)
}

// Middleware generates or propagates correlation IDs for HTTP requests.
// If an X-Correlation-ID header exists, it uses that value; otherwise it
// generates a new UUID v4. The ID is echoed on the response header and added
// to the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(Header, id)

		ctx := WithID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
