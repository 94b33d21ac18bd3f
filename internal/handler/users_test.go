// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/olegiv/chapel-cms/internal/store"
)

func TestUsers_AdminOnly(t *testing.T) {
	env := newAdminEnv(t, adminOptions{})

	assertStatus(t, env.signIn(testEditorEmail).get("/admin/users"), http.StatusForbidden)

	rec := env.signIn(testAdminEmail).get("/admin/users")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec, testSuperEmail, testAdminEmail, testEditorEmail)
}

func TestUsers_Register(t *testing.T) {
	env := newAdminEnv(t, adminOptions{})
	c := env.signIn(testAdminEmail)

	rec := c.postForm("/admin/users", url.Values{"name": {"Usher"}, "email": {"usher@church.test"}, "role": {"editor"}})
	assertStatus(t, rec, http.StatusCreated)
	assertContains(t, rec, "Temporary password", "usher@church.test")

	u, err := env.queries.GetUserByEmail(context.Background(), "usher@church.test")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if !u.RequirePasswordChange {
		t.Error("registered user should have to change the password")
	}

	// The password is not shown again.
	rec = c.get("/admin/users")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Temporary password") {
		t.Error("temporary password shown twice")
	}

	rec = c.postForm("/admin/users", url.Values{"name": {"Again"}, "email": {"usher@church.test"}, "role": {"editor"}})
	assertStatus(t, rec, http.StatusConflict)
	assertContains(t, rec, "already exists", `value="Again"`)

	rec = c.postForm("/admin/users", url.Values{"name": {"Bad"}, "email": {"not-an-email"}, "role": {"editor"}})
	assertStatus(t, rec, http.StatusUnprocessableEntity)
	assertContains(t, rec, "field-error")
}

func TestUsers_Delete(t *testing.T) {
	env := newAdminEnv(t, adminOptions{})
	c := env.signIn(testAdminEmail)

	assertRedirect(t, c.postForm("/admin/users/editor/delete", nil), "/admin/users")
	if _, err := env.queries.GetUserByID(context.Background(), "editor"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}

	// Admins cannot delete other admins without the permission.
	assertRedirect(t, c.postForm("/admin/users/super/delete", nil), "/admin/users")
	assertContains(t, c.get("/admin/users"), "flash-error")
	if _, err := env.queries.GetUserByID(context.Background(), "super"); err != nil {
		t.Errorf("super-admin deleted: %v", err)
	}
}

func TestUsers_SetPermissions(t *testing.T) {
	env := newAdminEnv(t, adminOptions{})

	// Only the super-admin grants the permission.
	deacon := env.signIn(testAdminEmail)
	assertRedirect(t, deacon.postForm("/admin/users/admin/permissions", url.Values{"can_delete_admins": {"true"}}), "/admin/users")
	assertContains(t, deacon.get("/admin/users"), "flash-error")

	super := env.signIn(testSuperEmail)
	assertRedirect(t, super.postForm("/admin/users/admin/permissions", url.Values{"can_delete_admins": {"true"}}), "/admin/users")
	assertContains(t, super.get("/admin/users"), "may now delete admins")

	u, err := env.queries.GetUserByID(context.Background(), "admin")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !u.CanDeleteAdmins {
		t.Error("CanDeleteAdmins = false after grant")
	}
}
