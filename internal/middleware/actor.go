package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/forgo/rotativos/api/internal/model"
)

// Headers set by the gateway in front of the service. The gateway
// authenticates the caller; this service only reads who it was.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// RoleAdmin is the role allowed to resolve, promote and configure.
const RoleAdmin = "admin"

// Actor copies the gateway identity headers into the request context.
// Requests without an actor are rejected.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			model.NewUnauthorizedError("missing " + HeaderUserID + " header").WriteJSON(w)
			return
		}
		role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, RoleKey, role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects actors without the admin role. It must run after Actor.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			model.NewForbiddenError("administrator role required").WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts the actor's user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// IsAdmin reports whether the actor in ctx is an administrator
func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(RoleKey).(string)
	return role == RoleAdmin
}
