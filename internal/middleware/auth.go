// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, rate limiting and response hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/service"
	"github.com/olegiv/chapel-cms/internal/store"
	"github.com/olegiv/chapel-cms/internal/util"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for user data.
const (
	ContextKeyUser ContextKey = "user"
)

// SessionKeyUserID holds the signed-in user's id in the admin session.
const SessionKeyUserID = "user_id"

// Admin routes the middleware redirects to.
const (
	RouteLogin          = "/admin/login"
	RouteLogout         = "/admin/logout"
	RouteChangePassword = "/admin/password"
)

// UserLoader resolves a session's user id to an active account.
type UserLoader interface {
	ActiveUser(ctx context.Context, id string) (store.User, error)
}

// TokenVerifier resolves a bearer token to an active account.
type TokenVerifier interface {
	UserFromToken(ctx context.Context, token string) (store.User, error)
}

// Auth requires a signed-in admin session and loads the user into the
// request context. Unknown or deactivated users lose their session.
func Auth(sm *scs.SessionManager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := sm.GetString(r.Context(), SessionKeyUserID)
			if userID == "" {
				http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
				return
			}

			user, err := users.ActiveUser(r.Context(), userID)
			if err != nil {
				_ = sm.Destroy(r.Context())
				http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequirePasswordChange sends users flagged for a password change to the
// change-password form until they have set one.
func RequirePasswordChange(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user != nil && user.RequirePasswordChange &&
			r.URL.Path != RouteChangePassword && r.URL.Path != RouteLogout {
			http.Redirect(w, r, RouteChangePassword, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerAuth requires an "Authorization: Bearer <jwt>" header and loads the
// user into the request context. Failures are JSON 401 responses.
func BearerAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}

			user, err := tokens.UserFromToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user store.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *store.User {
	user, ok := r.Context().Value(ContextKeyUser).(store.User)
	if !ok {
		return nil
	}
	return &user
}

// GetUserID returns the current user's ID, or "" when anonymous.
func GetUserID(r *http.Request) string {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return ""
}

// GetClientIP returns the client address without port. Behind a trusted
// proxy chi's RealIP middleware has already rewritten RemoteAddr.
func GetClientIP(r *http.Request) string {
	return util.ClientIP(r, false)
}

// roleLevel returns a numeric level for role hierarchy; unknown roles get 0.
func roleLevel(role string) int {
	switch role {
	case model.RoleAdmin:
		return 2
	case model.RoleEditor:
		return 1
	default:
		return 0
	}
}

// RequireRole requires at least minRole (admin > editor). Denials are logged
// and, when events is set, recorded in the event log.
func RequireRole(minRole string, events *service.EventService) func(http.Handler) http.Handler {
	minLevel := roleLevel(minRole)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
				return
			}

			if roleLevel(user.Role) < minLevel {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", user.ID,
					"user_role", user.Role,
					"required_role", minRole,
				)
				if events != nil {
					_ = events.LogAuthEvent(r.Context(), model.EventLevelWarning, "Access denied: insufficient permissions",
						user.ID, GetClientIP(r), map[string]any{
							"method":        r.Method,
							"path":          r.URL.Path,
							"user_role":     user.Role,
							"required_role": minRole,
						})
				}
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
