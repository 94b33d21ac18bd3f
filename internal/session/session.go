// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the admin session manager.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Cookie names. The __Host- prefix requires Secure and Path=/, so it is
// used only outside development.
const (
	CookieName       = "chapel_session"
	SecureCookieName = "__Host-chapel_session"
)

// Defaults for a session manager.
const (
	DefaultLifetime    = 12 * time.Hour
	DefaultIdleTimeout = 2 * time.Hour
	cleanupInterval    = 10 * time.Minute
)

// New creates a session manager backed by the sessions table in db.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.NewWithCleanupInterval(db, cleanupInterval)

	sm.Lifetime = DefaultLifetime
	sm.IdleTimeout = DefaultIdleTimeout
	sm.Cookie.Name = CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev
	if !isDev {
		sm.Cookie.Name = SecureCookieName
	}
	return sm
}
