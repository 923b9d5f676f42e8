package middleware

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-carsharing/internal/auth"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	OperatorContextKey  contextKey = "operator"
	RequestIDContextKey contextKey = "request_id"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
	enabled     bool
}

// NewAuthMiddleware creates a new authentication middleware. With enabled
// false every request passes through unauthenticated, which is how the API
// runs when no operators are configured.
func NewAuthMiddleware(authService *auth.Service, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		enabled:     enabled,
	}
}

// Enabled reports whether requests are authenticated.
func (m *AuthMiddleware) Enabled() bool {
	return m.enabled
}

// Authenticate validates JWT tokens and adds the operator claims to the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		claims, err := m.authService.ValidateToken(authHeader)
		if err != nil {
			log.WithFields(log.Fields{
				"path":       r.URL.Path,
				"request_id": GetRequestID(r.Context()),
			}).WithError(err).Warn("Rejected API token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission middleware checks if the operator may perform the action
func (m *AuthMiddleware) RequirePermission(requiredAction string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.enabled {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed(r, requiredAction) {
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFleetAccess allows reads to viewers and everything else to
// operators, based on the request method.
func (m *AuthMiddleware) RequireFleetAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		action := models.ActionManageFleet
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			action = models.ActionViewFleet
		}
		if !allowed(r, action) {
			deny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowed(r *http.Request, action string) bool {
	claims, ok := GetOperatorFromContext(r.Context())
	if !ok {
		return false
	}
	operator := &models.Operator{Username: claims.Username, Role: claims.Role}
	return operator.HasPermission(action)
}

func deny(w http.ResponseWriter, r *http.Request) {
	if _, ok := GetOperatorFromContext(r.Context()); !ok {
		http.Error(w, "Operator context not found", http.StatusUnauthorized)
		return
	}
	http.Error(w, "Insufficient permissions", http.StatusForbidden)
}

// GetOperatorFromContext extracts operator claims from request context
func GetOperatorFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(OperatorContextKey).(*models.Claims)
	return claims, ok
}

// shouldSkipAuth determines if authentication should be skipped for a given path
func shouldSkipAuth(path string) bool {
	skipPaths := []string{
		"/api/auth/login",
		"/health",
		"/metrics",
	}

	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}
