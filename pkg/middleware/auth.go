package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/couchuser/pkg/auth"
	"github.com/platinummonkey/couchuser/pkg/contextkeys"
	"github.com/platinummonkey/couchuser/pkg/httputil"
	"github.com/platinummonkey/couchuser/pkg/observability"
)

// TokenChecker reports whether token is the live token issued to name
type TokenChecker interface {
	CheckSession(ctx context.Context, name, token string) (bool, error)
}

// AuthMiddleware provides bearer token authentication. A token is accepted
// when it is the live token issued to the name it encodes, under any account.
type AuthMiddleware struct {
	checker  TokenChecker
	optional bool // If true, allow requests without auth
	logger   *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(checker TokenChecker, optional bool, logger *observability.Logger) *AuthMiddleware {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AuthMiddleware{
		checker:  checker,
		optional: optional,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		name, _, err := auth.DecodeToken(token)
		if err != nil || name == "" {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		valid, err := m.checker.CheckSession(r.Context(), name, token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token check failed")
			httputil.WriteServiceUnavailable(w, "token store unavailable")
			return
		}
		if !valid {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser returns the authenticated user name, empty when unauthenticated
func GetUser(r *http.Request) string {
	return contextkeys.GetUser(r.Context())
}
