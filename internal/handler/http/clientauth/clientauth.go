// Package clientauth identifies the calling tenant from the X-Client-ID
// header. Authentication proper happens at the gateway in front of this
// service; the header is only used to scope data access.
package clientauth

import (
	"context"
	"net/http"
)

type clientKey struct{}

// Header carries the tenant identifier.
const Header = "X-Client-ID"

// FromContext returns the client ID set by Middleware, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(clientKey{}).(string); ok {
		return id
	}
	return ""
}

// FromRequest reads the header directly, for code running before Middleware.
func FromRequest(r *http.Request) string {
	return r.Header.Get(Header)
}

// Middleware rejects requests without the header and stores the client ID on
// the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing ` + Header + ` header"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, id)))
	})
}
