// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/service"
	"github.com/olegiv/chapel-cms/internal/testutil"
)

type profileResponse struct {
	Data service.Profile `json:"data"`
}

func TestLogin_ReturnsProfileWithPermissions(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: testSuperEmail, Password: testPassword})
	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		Data service.LoginResult `json:"data"`
	}
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Data.Token)
	assert.False(t, resp.Data.ExpiresAt.IsZero())
	assert.Equal(t, model.Permissions{
		IsSuperAdmin:    true,
		CanDeleteAdmins: true,
		CanManageUsers:  true,
		CanEditContent:  true,
	}, resp.Data.User.Permissions)

	rec = env.do(http.MethodGet, "/api/auth/me", resp.Data.Token, nil)
	assertStatusCode(t, rec, http.StatusOK)
	var me profileResponse
	decode(t, rec, &me)
	assert.Equal(t, testSuperEmail, me.Data.Email)
}

func TestLogin_GenericFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, req := range []LoginRequest{
		{Email: "editor@church.test", Password: "wrong-password"},
		{Email: "nobody@church.test", Password: testPassword},
	} {
		rec := env.do(http.MethodPost, "/api/auth/login", "", req)
		assertStatusCode(t, rec, http.StatusUnauthorized)
		resp := assertErrorResponse(t, rec, "unauthorized")
		assert.Equal(t, "Invalid credentials", resp.Error.Message)
	}

	rec := env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "editor@church.test"})
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
}

func TestLogin_ThrottledWithRetryAfter(t *testing.T) {
	env := newTestEnv(t, envOptions{maxLoginAttempts: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "editor@church.test", Password: "nope"})
		assertStatusCode(t, rec, http.StatusUnauthorized)
	}

	rec := env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "editor@church.test", Password: testPassword})
	assertStatusCode(t, rec, http.StatusTooManyRequests)

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	resp := assertErrorResponse(t, rec, "rate_limit_exceeded")
	assert.Equal(t, strconv.Itoa(retryAfter), resp.Error.Details["retry_after"])

	snap, err := env.metrics.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, float64(2), snap.LoginFailures)
	assert.Equal(t, float64(1), snap.RateLimited)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login("editor@church.test")

	rec := env.do(http.MethodPost, "/api/auth/change-password", token, ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "blessed-assurance",
	})
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(http.MethodPost, "/api/auth/change-password", token, ChangePasswordRequest{
		CurrentPassword: testPassword, NewPassword: "blessed-assurance",
	})
	assertStatusCode(t, rec, http.StatusOK)

	rec = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "editor@church.test", Password: "blessed-assurance"})
	assertStatusCode(t, rec, http.StatusOK)
}

func TestRegister_ReturnsTemporaryPasswordOnce(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token := env.login(testSuperEmail)

	rec := env.do(http.MethodPost, "/api/auth/register", token, RegisterRequest{
		Name: "Youth Leader", Email: "youth@church.test", Role: model.RoleEditor,
	})
	assertStatusCode(t, rec, http.StatusCreated)

	var resp struct {
		Data RegisterResponse `json:"data"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Data.User.RequirePasswordChange)
	require.NotEmpty(t, resp.Data.TemporaryPassword)

	rec = env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "youth@church.test", Password: resp.Data.TemporaryPassword})
	assertStatusCode(t, rec, http.StatusOK)

	rec = env.do(http.MethodPost, "/api/auth/register", token, RegisterRequest{
		Name: "Again", Email: "youth@church.test", Role: model.RoleEditor,
	})
	assertStatusCode(t, rec, http.StatusConflict)

	editorToken := env.login("editor@church.test")
	rec = env.do(http.MethodPost, "/api/auth/register", editorToken, RegisterRequest{
		Name: "Nope", Email: "nope@church.test", Role: model.RoleEditor,
	})
	assertStatusCode(t, rec, http.StatusForbidden)
}

func TestListUsers_AdminOnly(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(http.MethodGet, "/api/auth/users", env.login("editor@church.test"), nil)
	assertStatusCode(t, rec, http.StatusForbidden)

	rec = env.do(http.MethodGet, "/api/auth/users", env.login("deacon@church.test"), nil)
	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		Data []service.Profile `json:"data"`
	}
	decode(t, rec, &resp)
	assert.Len(t, resp.Data, 3)
}

func TestDeleteUser_Rules(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	testutil.CreateUser(t, env.queries, "elder", "elder@church.test", model.RoleAdmin, testPassword)
	deacon := env.login("deacon@church.test")

	rec := env.do(http.MethodDelete, "/api/auth/users/elder", deacon, nil)
	assertStatusCode(t, rec, http.StatusForbidden)
	resp := assertErrorResponse(t, rec, "forbidden")
	assert.NotEmpty(t, resp.Error.Message)

	rec = env.do(http.MethodDelete, "/api/auth/users/admin", deacon, nil)
	assertStatusCode(t, rec, http.StatusForbidden)

	rec = env.do(http.MethodDelete, "/api/auth/users/super", deacon, nil)
	assertStatusCode(t, rec, http.StatusForbidden)

	rec = env.do(http.MethodDelete, "/api/auth/users/editor", deacon, nil)
	assertStatusCode(t, rec, http.StatusNoContent)

	rec = env.do(http.MethodDelete, "/api/auth/users/editor", deacon, nil)
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestSetPermissions_SuperAdminGrantsDeleteAdmins(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	testutil.CreateUser(t, env.queries, "elder", "elder@church.test", model.RoleAdmin, testPassword)
	super := env.login(testSuperEmail)
	deacon := env.login("deacon@church.test")

	rec := env.do(http.MethodPatch, "/api/auth/users/admin/permissions", deacon, map[string]bool{"canDeleteAdmins": true})
	assertStatusCode(t, rec, http.StatusForbidden)

	rec = env.do(http.MethodPatch, "/api/auth/users/admin/permissions", super, map[string]any{})
	assertStatusCode(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(http.MethodPatch, "/api/auth/users/super/permissions", super, map[string]bool{"canDeleteAdmins": false})
	assertStatusCode(t, rec, http.StatusForbidden)

	rec = env.do(http.MethodPatch, "/api/auth/users/admin/permissions", super, map[string]bool{"canDeleteAdmins": true})
	assertStatusCode(t, rec, http.StatusOK)
	var resp profileResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Data.Permissions.CanDeleteAdmins)

	rec = env.do(http.MethodDelete, "/api/auth/users/elder", deacon, nil)
	assertStatusCode(t, rec, http.StatusNoContent)
}
