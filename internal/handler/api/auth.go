// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/service"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RegisterResponse returns the new account and its one-time password.
type RegisterResponse struct {
	User              service.Profile `json:"user"`
	TemporaryPassword string          `json:"temporaryPassword"`
}

// PermissionsRequest is the body of PATCH /api/auth/users/{id}/permissions.
type PermissionsRequest struct {
	CanDeleteAdmins *bool `json:"canDeleteAdmins"`
}

// Login handles POST /api/auth/login
// Failures share one generic message so accounts cannot be enumerated.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		WriteValidationError(w, map[string]string{"credentials": "Email and password are required"})
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password, service.Client{
		IP:        middleware.GetClientIP(r),
		UserAgent: r.UserAgent(),
	})
	switch {
	case err == nil:
		h.metrics.IncLogin("success")
		WriteSuccess(w, res, nil)
	case errors.Is(err, service.ErrRateLimited):
		h.metrics.IncLogin("blocked")
		h.metrics.IncRateLimitRejection("login")
		h.writeServiceError(w, r, err, "log in")
	case errors.Is(err, service.ErrInvalidCredentials):
		h.metrics.IncLogin("failure")
		WriteUnauthorized(w, "Invalid credentials")
	default:
		h.writeServiceError(w, r, err, "log in")
	}
}

// Me handles GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	WriteSuccess(w, h.users.Profile(*user), nil)
}

// ChangePassword handles POST /api/auth/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.users.ChangePassword(r.Context(), *user, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, r, err, "change password")
		return
	}
	WriteSuccess(w, map[string]string{"message": "Password updated"}, nil)
}

// Register handles POST /api/auth/register
// Admins only. The temporary password is shown in this response only.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, password, err := h.users.Register(r.Context(), *user, req.Name, req.Email, req.Role, middleware.GetClientIP(r))
	if err != nil {
		h.writeServiceError(w, r, err, "register user")
		return
	}
	WriteCreated(w, RegisterResponse{User: profile, TemporaryPassword: password})
}

// ListUsers handles GET /api/auth/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	users, err := h.users.List(r.Context(), *user)
	if err != nil {
		h.writeServiceError(w, r, err, "list users")
		return
	}
	WriteSuccess(w, users, &Meta{Total: int64(len(users))})
}

// DeleteUser handles DELETE /api/auth/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	if err := h.users.Delete(r.Context(), *user, chi.URLParam(r, "id"), middleware.GetClientIP(r)); err != nil {
		h.writeServiceError(w, r, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPermissions handles PATCH /api/auth/users/{id}/permissions
// Super admin only.
func (h *Handler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	var req PermissionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CanDeleteAdmins == nil {
		WriteValidationError(w, map[string]string{"canDeleteAdmins": "canDeleteAdmins is required"})
		return
	}

	profile, err := h.users.SetCanDeleteAdmins(r.Context(), *user, chi.URLParam(r, "id"), *req.CanDeleteAdmins, middleware.GetClientIP(r))
	if err != nil {
		h.writeServiceError(w, r, err, "update permissions")
		return
	}
	WriteSuccess(w, profile, nil)
}
