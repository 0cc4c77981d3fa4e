// Package middleware provides HTTP middleware for the Hearth API.
//
// Authentication happens upstream. A gateway or proxy verifies the caller and
// forwards their user ID in a trusted header; this package resolves that ID to
// a user and stores it in the request context.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/hearth/internal/auth"
	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/handler"
	"github.com/google/uuid"
)

// DefaultIdentityHeader is used when no header name is configured.
const DefaultIdentityHeader = "X-Hearth-User-ID"

// UserLookup resolves a user by ID.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AuthMiddleware resolves the trusted identity header into a user.
type AuthMiddleware struct {
	users  UserLookup
	header string
	logger *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware reading the given header.
func NewAuthMiddleware(users UserLookup, header string, logger *slog.Logger) *AuthMiddleware {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return &AuthMiddleware{
		users:  users,
		header: header,
		logger: logger,
	}
}

// GetUser retrieves the user from the request context.
// Returns nil if the request carried no identity.
func GetUser(ctx context.Context) *domain.User {
	return auth.GetUser(ctx)
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser loads the user named by the identity header, if any, and stores it
// in the context. It never rejects a request: a missing, malformed or unknown
// identity continues anonymously and RequireUser decides what to do.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(m.header))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			m.logger.Warn("malformed identity header", "header", m.header, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), id)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				m.logger.Warn("identity header names unknown user", "user_id", id)
			} else {
				m.logger.Error("failed to load user for identity", "user_id", id, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser rejects requests without a resolved user with 401.
// Use after WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	requireUser := Stack(authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /api/me/entitlements", requireUser(meHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
)
