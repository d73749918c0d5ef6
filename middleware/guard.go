// Package middleware adapts the engine to net/http handler chains.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/taskhive/authstack"
)

type contextKey int

const ctxKeyIdentity contextKey = iota

// TokenValidator is the slice of the engine the guard needs.
type TokenValidator interface {
	Validate(raw string) (*authstack.AccessIdentity, error)
}

// Guard rejects requests without a valid bearer token and stores the
// asserted identity in the request context.
func Guard(v TokenValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		id, err := v.Validate(raw)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps Guard's context identity with a role check.
func RequireRole(role authstack.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || id.Role != role {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the identity stored by Guard, or nil.
func IdentityFromContext(ctx context.Context) *authstack.AccessIdentity {
	id, _ := ctx.Value(ctxKeyIdentity).(*authstack.AccessIdentity)
	return id
}

// WithRequestMetadata copies the caller's IP and user agent into the
// request context so engine calls downstream can fingerprint the device.
func WithRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = authstack.WithClientIP(ctx, clientIP(r))
		ctx = authstack.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return h[len(prefix):]
}

// clientIP prefers the leftmost X-Forwarded-For hop, falling back to the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
