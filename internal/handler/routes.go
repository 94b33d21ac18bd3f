// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/service"
)

// AdminRoutes wires the admin HTML handlers under /admin.
type AdminRoutes struct {
	Sessions *scs.SessionManager
	Users    middleware.UserLoader
	Events   *service.EventService // optional, records access denials

	CSRF         func(http.Handler) http.Handler // optional
	LoginLimiter *middleware.RateLimiter          // optional

	Auth      *AuthHandler
	Dashboard *AdminHandler
	Pages     *PagesHandler
	Accounts  *UsersHandler
	Media     *MediaHandler
	EventLog  *EventsHandler
	Guide     *GuideHandler
}

// Register mounts the admin routes on r.
func (a AdminRoutes) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(a.Sessions.LoadAndSave)
		if a.CSRF != nil {
			r.Use(a.CSRF)
		}

		r.Get("/login", a.Auth.LoginForm)
		login := r.With()
		if a.LoginLimiter != nil {
			login = r.With(a.LoginLimiter.HTMLMiddleware())
		}
		login.Post("/login", a.Auth.Login)
		r.Post("/logout", a.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(a.Sessions, a.Users))
			r.Use(middleware.RequirePasswordChange)

			r.Get("/password", a.Auth.ChangePasswordForm)
			r.Post("/password", a.Auth.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleEditor, a.Events))

				r.Get("/", a.Dashboard.Dashboard)
				r.Get("/pages/{page}", a.Pages.Edit)
				r.Post("/pages/{page}", a.Pages.NewSection)
				r.Post("/pages/{page}/{section}", a.Pages.SaveSection)
				r.Post("/pages/{page}/{section}/delete", a.Pages.DeleteSection)

				r.Get("/media", a.Media.Library)
				r.Post("/media", a.Media.Upload)
				r.Post("/media/{name}/delete", a.Media.Delete)

				if a.Guide != nil {
					r.Get("/guide", a.Guide.Show)
				}
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin, a.Events))

				r.Get("/users", a.Accounts.List)
				r.Post("/users", a.Accounts.Register)
				r.Post("/users/{id}/delete", a.Accounts.Delete)
				r.Post("/users/{id}/permissions", a.Accounts.SetPermissions)
				r.Get("/events", a.EventLog.List)
			})
		})
	})
}
