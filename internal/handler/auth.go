// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
)

// AuthHandler handles sign-in, sign-out and password changes.
type AuthHandler struct {
	users          *service.UserService
	renderer       *render.Renderer
	sessionManager *scs.SessionManager
	metrics        *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler. m may be nil.
func NewAuthHandler(users *service.UserService, renderer *render.Renderer, sm *scs.SessionManager, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		users:          users,
		renderer:       renderer,
		sessionManager: sm,
		metrics:        m,
	}
}

// LoginData holds data for the login page.
type LoginData struct {
	Email string
}

// PasswordData holds data for the change-password page.
type PasswordData struct {
	Forced bool
}

// LoginForm renders the login page. Signed-in users go to the dashboard.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if userID := h.sessionManager.GetString(r.Context(), middleware.SessionKeyUserID); userID != "" {
		if _, err := h.users.ActiveUser(r.Context(), userID); err == nil {
			http.Redirect(w, r, redirectAdmin, http.StatusSeeOther)
			return
		}
	}

	h.renderer.RenderPage(w, r, "auth/login", render.TemplateData{
		Title: "Sign in",
		Data:  LoginData{},
	})
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectLogin) {
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	data := LoginData{Email: email}

	if email == "" || password == "" {
		h.loginError(w, r, http.StatusUnprocessableEntity, data, "Email and password are required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), email, password, service.Client{
		IP:        middleware.GetClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		var rl *service.RateLimitError
		switch {
		case errors.As(err, &rl):
			h.metrics.IncLogin("blocked")
			h.metrics.IncRateLimitRejection("login")
			secs := middleware.SetRetryAfter(w, rl.RetryAfter)
			h.loginError(w, r, http.StatusTooManyRequests, data,
				fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", secs))
		case errors.Is(err, service.ErrInvalidCredentials):
			h.metrics.IncLogin("failure")
			h.loginError(w, r, http.StatusUnauthorized, data, "Invalid credentials")
		default:
			logAndInternalError(w, "login failed", "error", err)
		}
		return
	}
	h.metrics.IncLogin("success")

	// Prevent session fixation
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "failed to renew session token", "error", err)
		return
	}
	h.sessionManager.Put(r.Context(), middleware.SessionKeyUserID, user.ID)
	slog.Info("user logged in", "user_id", user.ID, "email", user.Email)

	if user.RequirePasswordChange {
		flashAndRedirect(w, r, h.renderer, redirectPassword, "Please choose a new password to continue.", "info")
		return
	}
	flashSuccess(w, r, h.renderer, redirectAdmin, "Welcome back, "+displayName(user.Name, user.Email)+"!")
}

func (h *AuthHandler) loginError(w http.ResponseWriter, r *http.Request, status int, data LoginData, message string) {
	h.renderer.RenderPageStatus(w, r, "auth/login", status, render.TemplateData{
		Title:     "Sign in",
		Data:      data,
		Flash:     message,
		FlashType: "error",
	})
}

// Logout ends the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionManager.GetString(r.Context(), middleware.SessionKeyUserID)
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("failed to destroy session", "error", err)
	}
	if userID != "" {
		slog.Info("user logged out", "user_id", userID)
	}
	http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
}

// ChangePasswordForm renders the change-password page.
func (h *AuthHandler) ChangePasswordForm(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	h.renderer.RenderPage(w, r, "auth/password", render.TemplateData{
		Title: "Change password",
		User:  user,
		Data:  PasswordData{Forced: user != nil && user.RequirePasswordChange},
	})
}

// ChangePassword handles the change-password form submission.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, redirectPassword) {
		return
	}

	current := r.FormValue("current_password")
	next := r.FormValue("new_password")

	render422 := func(errs map[string]string) {
		h.renderer.RenderPageStatus(w, r, "auth/password", http.StatusUnprocessableEntity, render.TemplateData{
			Title:  "Change password",
			User:   user,
			Data:   PasswordData{Forced: user.RequirePasswordChange},
			Errors: errs,
		})
	}

	if next != r.FormValue("confirm_password") {
		render422(map[string]string{"confirmPassword": "Passwords do not match"})
		return
	}

	if err := h.users.ChangePassword(r.Context(), *user, current, next); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			render422(verr.Fields)
			return
		}
		logAndInternalError(w, "failed to change password", "user_id", user.ID, "error", err)
		return
	}

	// New session token after a credential change
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		slog.Warn("failed to renew session token", "error", err)
	}
	flashSuccess(w, r, h.renderer, redirectAdmin, "Your password has been updated.")
}

// displayName returns name, falling back to email.
func displayName(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return email
}
