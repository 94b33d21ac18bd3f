// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the admin dashboard HTML handlers and the
// health and upload endpoints.
package handler

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
)

// flashAndRedirect sets a flash message and redirects to the given URL.
// Uses http.StatusSeeOther (303) for POST redirects.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, message, messageType string) {
	renderer.SetFlash(r, message, messageType)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// flashError sets an error flash message and redirects to the given URL.
func flashError(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, message string) {
	flashAndRedirect(w, r, renderer, url, message, "error")
}

// flashSuccess sets a success flash message and redirects to the given URL.
func flashSuccess(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, message string) {
	flashAndRedirect(w, r, renderer, url, message, "success")
}

// parseFormOrRedirect parses the request form and redirects with an error message on failure.
// Returns true if parsing succeeded, false if it failed (and redirect was performed).
func parseFormOrRedirect(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, redirectURL string) bool {
	if err := r.ParseForm(); err != nil {
		flashError(w, r, renderer, redirectURL, "Invalid form data")
		return false
	}
	return true
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// serviceMessage returns a message for a service error that is safe to show
// to the user, or "" when the error is unexpected.
func serviceMessage(err error) string {
	var (
		verr *service.ValidationError
		ferr *service.ForbiddenError
	)
	switch {
	case errors.As(err, &verr):
		if keys := slices.Sorted(maps.Keys(verr.Fields)); len(keys) > 0 {
			return verr.Fields[keys[0]]
		}
		return "Invalid input"
	case errors.As(err, &ferr):
		return ferr.Reason
	case errors.Is(err, service.ErrNotFound):
		return "Not found"
	case errors.Is(err, service.ErrConflict):
		return "A user with this email already exists"
	case errors.Is(err, service.ErrForbidden):
		return "You do not have permission to do that"
	}
	return ""
}

// flashServiceError reports err as a flash message, logging unexpected errors.
func flashServiceError(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, action string, err error) {
	msg := serviceMessage(err)
	if msg == "" {
		slog.Error("admin action failed", "action", action, "path", r.URL.Path, "user_id", middleware.GetUserID(r), "error", err)
		msg = "Failed to " + action
	}
	flashError(w, r, renderer, url, msg)
}

// actor returns the audit identity of the signed-in user.
func actor(r *http.Request) service.Actor {
	a := service.Actor{IP: middleware.GetClientIP(r)}
	if u := middleware.GetUser(r); u != nil {
		a.UserID, a.Email = u.ID, u.Email
	}
	return a
}

// statusFor returns the status a re-rendered form uses for a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
