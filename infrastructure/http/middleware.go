// Package http exposes the REST and websocket surface of the server:
// authentication, blog CRUD, the approval workflow, feature requests,
// the live streams and the ops endpoints.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"blog-lab/auth"
	"blog-lab/domain"
	"blog-lab/errors"
)

type contextKey string

const identityKey contextKey = "identity"

// AuthMiddleware validates the bearer token and injects the caller's
// identity. Websocket clients cannot set headers from the browser API, so
// a "token" query parameter is accepted as a fallback.
func AuthMiddleware(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r)
			if tokenStr == "" {
				renderError(w, r, fmt.Errorf("%w: authorization token is missing", errors.ErrUnauthenticated))
				return
			}
			identity, err := tokens.ValidateToken(tokenStr)
			if err != nil {
				renderError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuthMiddleware resolves the identity when a token is present and
// lets anonymous callers through. Read endpoints use it: published posts
// are public, the rest of the visibility rules live in the services.
func OptionalAuthMiddleware(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr := extractToken(r); tokenStr != "" {
				identity, err := tokens.ValidateToken(tokenStr)
				if err != nil {
					renderError(w, r, err)
					return
				}
				r = r.WithContext(withIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request the way the rest of the server
// logs: slog with key-value pairs.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start).String())
		})
	}
}

func withIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the authenticated caller; the zero Identity stands
// for an anonymous reader.
func IdentityFrom(ctx context.Context) domain.Identity {
	if identity, ok := ctx.Value(identityKey).(domain.Identity); ok {
		return identity
	}
	return domain.Identity{}
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
