package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/service"
	"github.com/peakscape/tours-api/pkg/logger"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// Guard authenticates requests and gates routes by role. Every protected
// route resolves the full account on each request, so deactivated accounts
// and stale tokens are rejected even before their JWTs expire.
type Guard struct {
	auth service.AuthService
}

func NewGuard(auth service.AuthService) *Guard {
	return &Guard{auth: auth}
}

func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, apperr.NewAuth("you are not logged in; please log in to get access"))
			return
		}

		user, err := g.auth.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, logger.UserIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth resolves the account when a valid token is present and lets
// the request through either way. Public reads use it so responses can be
// shaped for the viewer.
func (g *Guard) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if user, err := g.auth.VerifyToken(r.Context(), token); err == nil {
				ctx := context.WithValue(r.Context(), userContextKey, user)
				ctx = context.WithValue(ctx, logger.UserIDKey, user.ID)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a route to the given roles. It assumes RequireAuth ran
// earlier in the chain.
func (g *Guard) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				writeError(w, r, apperr.NewAuth("you are not logged in; please log in to get access"))
				return
			}
			if !allowed[user.Role] {
				writeError(w, r, apperr.NewForbidden("you do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser returns the authenticated account, or nil on unguarded routes.
func CurrentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userContextKey).(*domain.User)
	return user
}

// bearerToken pulls the session token from the Authorization header, falling
// back to the jwt cookie set at login.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}
