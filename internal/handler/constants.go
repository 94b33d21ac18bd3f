// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Admin routes used for redirects.
const (
	redirectAdmin    = "/admin"
	redirectLogin    = "/admin/login"
	redirectPassword = "/admin/password"
	redirectUsers    = "/admin/users"
	redirectMedia    = "/admin/media"
	redirectPages    = "/admin/pages/"
)

// Navigation entries of the admin layout.
const (
	navDashboard = "dashboard"
	navPages     = "pages"
	navMedia     = "media"
	navUsers     = "users"
	navEvents    = "events"
	navGuide     = "guide"
)

// pageURL returns the editor URL of page, optionally anchored at a section.
func pageURL(page, section string) string {
	u := redirectPages + page
	if section != "" {
		u += "#section-" + section
	}
	return u
}
