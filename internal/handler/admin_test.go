// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"
	"testing"
)

func TestDashboard(t *testing.T) {
	env := newAdminEnv(t, adminOptions{})
	env.seed("home", "hero", map[string]any{"title": "Welcome"})
	env.seed("home", "welcome", map[string]any{"title": "Hello"})
	env.seed("give", "intro", "Thank you")

	rec := env.signIn(testEditorEmail).get("/admin")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec,
		`href="/admin/pages/home"`,
		`href="/admin/pages/shared"`,
		"<td>Total</td><td>3</td>",
		"Content saves",
	)
}

func TestAdminNav_ByRole(t *testing.T) {
	env := newAdminEnv(t, adminOptions{})

	rec := env.signIn(testEditorEmail).get("/admin")
	if strings.Contains(rec.Body.String(), `href="/admin/users"`) {
		t.Error("editor sees the users link")
	}

	rec = env.signIn(testSuperEmail).get("/admin")
	assertContains(t, rec, `href="/admin/users"`, `href="/admin/events"`, "super-admin")
}
