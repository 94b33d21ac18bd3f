// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
)

// UsersHandler handles account management.
type UsersHandler struct {
	users    *service.UserService
	renderer *render.Renderer
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(users *service.UserService, renderer *render.Renderer) *UsersHandler {
	return &UsersHandler{users: users, renderer: renderer}
}

// UsersListData holds data for the users page.
type UsersListData struct {
	Users []service.Profile
	Me    service.Profile
	Roles []string
	// Created is set right after registration; the temporary password is
	// shown once and never stored in the session.
	Created           *service.Profile
	TemporaryPassword string
	Form              RegisterForm
}

// RegisterForm holds the posted registration fields.
type RegisterForm struct {
	Name  string
	Email string
	Role  string
}

// List handles GET /admin/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, http.StatusOK, UsersListData{Form: RegisterForm{Role: model.RoleEditor}}, nil)
}

func (h *UsersHandler) renderList(w http.ResponseWriter, r *http.Request, status int, data UsersListData, errs map[string]string) {
	user := middleware.GetUser(r)
	users, err := h.users.List(r.Context(), *user)
	if err != nil {
		flashServiceError(w, r, h.renderer, redirectAdmin, "list users", err)
		return
	}
	data.Users = users
	data.Me = h.users.Profile(*user)
	data.Roles = []string{model.RoleEditor, model.RoleAdmin}

	h.renderer.RenderPageStatus(w, r, "admin/users", status, render.TemplateData{
		Title:  "Users",
		User:   user,
		Nav:    navUsers,
		Data:   data,
		Errors: errs,
		Breadcrumbs: []render.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Users", Active: true},
		},
	})
}

// Register handles POST /admin/users.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectUsers) {
		return
	}
	form := RegisterForm{
		Name:  strings.TrimSpace(r.FormValue("name")),
		Email: strings.TrimSpace(r.FormValue("email")),
		Role:  r.FormValue("role"),
	}

	user := middleware.GetUser(r)
	profile, password, err := h.users.Register(r.Context(), *user, form.Name, form.Email, form.Role, middleware.GetClientIP(r))
	if err != nil {
		msg := serviceMessage(err)
		if msg == "" {
			flashServiceError(w, r, h.renderer, redirectUsers, "register user", err)
			return
		}
		errs := map[string]string{"form": msg}
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			errs = verr.Fields
		}
		h.renderList(w, r, statusFor(err), UsersListData{Form: form}, errs)
		return
	}

	h.renderList(w, r, http.StatusCreated, UsersListData{
		Created:           &profile,
		TemporaryPassword: password,
		Form:              RegisterForm{Role: model.RoleEditor},
	}, nil)
}

// Delete handles POST /admin/users/{id}/delete.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if err := h.users.Delete(r.Context(), *user, chi.URLParam(r, "id"), middleware.GetClientIP(r)); err != nil {
		flashServiceError(w, r, h.renderer, redirectUsers, "delete user", err)
		return
	}
	flashSuccess(w, r, h.renderer, redirectUsers, "User deleted.")
}

// SetPermissions handles POST /admin/users/{id}/permissions.
func (h *UsersHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectUsers) {
		return
	}
	allowed := r.FormValue("can_delete_admins") == "true"

	user := middleware.GetUser(r)
	profile, err := h.users.SetCanDeleteAdmins(r.Context(), *user, chi.URLParam(r, "id"), allowed, middleware.GetClientIP(r))
	if err != nil {
		flashServiceError(w, r, h.renderer, redirectUsers, "update permissions", err)
		return
	}
	if allowed {
		flashSuccess(w, r, h.renderer, redirectUsers, displayName(profile.Name, profile.Email)+" may now delete admins.")
		return
	}
	flashSuccess(w, r, h.renderer, redirectUsers, displayName(profile.Name, profile.Email)+" may no longer delete admins.")
}
