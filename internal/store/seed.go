// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/chapel-cms/internal/auth"
	"github.com/olegiv/chapel-cms/internal/model"
)

// DefaultSuperAdminName is the display name of the seeded super-admin.
const DefaultSuperAdminName = "Administrator"

// SeedSection is one fixture document.
type SeedSection struct {
	Page    string
	Section string
	Value   any
}

// SeedResult reports what Seed created.
type SeedResult struct {
	SuperAdminCreated bool
	TemporaryPassword string
	SectionsCreated   int
}

// Seed creates the super-admin account when no users exist and inserts the
// fixture sections that are not stored yet. Existing sections are never overwritten.
func Seed(ctx context.Context, users UserRepository, contents ContentRepository, superAdminEmail string) (SeedResult, error) {
	var result SeedResult

	count, err := users.CountUsers(ctx)
	if err != nil {
		return result, fmt.Errorf("counting users: %w", err)
	}
	if count == 0 {
		password, err := auth.GenerateTemporaryPassword()
		if err != nil {
			return result, fmt.Errorf("generating password: %w", err)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return result, fmt.Errorf("hashing password: %w", err)
		}
		now := time.Now().UTC()
		user, err := users.CreateUser(ctx, CreateUserParams{
			ID:                    uuid.NewString(),
			Name:                  DefaultSuperAdminName,
			Email:                 superAdminEmail,
			PasswordHash:          hash,
			Role:                  model.RoleAdmin,
			RequirePasswordChange: true,
			CreatedAt:             now,
			UpdatedAt:             now,
		})
		if err != nil {
			return result, fmt.Errorf("creating super admin: %w", err)
		}
		result.SuperAdminCreated = true
		result.TemporaryPassword = password
		slog.Info("created super admin", "id", user.ID, "email", user.Email)
	} else {
		slog.Info("users already exist, skipping super admin seed")
	}

	now := time.Now().UTC()
	for _, s := range FixtureSections() {
		_, err := contents.GetContent(ctx, s.Page, s.Section)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return result, fmt.Errorf("checking %s/%s: %w", s.Page, s.Section, err)
		}
		if _, err := contents.UpsertContent(ctx, UpsertContentParams{
			Page:    s.Page,
			Section: s.Section,
			Value:   s.Value,
			Now:     now,
		}); err != nil {
			return result, fmt.Errorf("seeding %s/%s: %w", s.Page, s.Section, err)
		}
		result.SectionsCreated++
	}

	return result, nil
}

// FixtureSections returns the representative starter content for every page.
func FixtureSections() []SeedSection {
	return []SeedSection{
		{model.PageShared, "header", map[string]any{
			"churchName": "Grace Community Church",
			"logo":       "/uploads/logo.png",
			"navigation": []any{
				map[string]any{"label": "Home", "href": "/"},
				map[string]any{"label": "About", "href": "/about.html"},
				map[string]any{"label": "Events", "href": "/events.html"},
				map[string]any{"label": "Give", "href": "/give.html"},
			},
		}},
		{model.PageShared, "footer", map[string]any{
			"address":   "120 Chapel Street, Springfield",
			"phone":     "(555) 010-2030",
			"copyright": "Grace Community Church",
		}},
		{model.PageHome, "hero", map[string]any{
			"title":           "Welcome Home",
			"subtitle":        "A place to belong, believe and become.",
			"backgroundImage": "/uploads/hero.jpg",
			"ctaText":         "Plan a Visit",
			"ctaLink":         "/contact.html",
		}},
		{model.PageHome, "service-times", map[string]any{
			"title": "Join Us This Sunday",
			"times": []any{
				map[string]any{"day": "Sunday", "time": "9:00 AM", "label": "Traditional Service"},
				map[string]any{"day": "Sunday", "time": "11:00 AM", "label": "Contemporary Service"},
			},
		}},
		{model.PageHome, "next-steps", map[string]any{
			"title": "Next Steps",
			"steps": []any{
				map[string]any{"title": "Get Connected", "description": "Find a small group near you.", "image": "/uploads/connect.jpg"},
				map[string]any{"title": "Serve", "description": "Use your gifts to serve others.", "image": "/uploads/serve.jpg"},
			},
		}},
		{model.PageHome, "events", map[string]any{
			"title": "Upcoming Events",
			"events": []any{
				map[string]any{
					"title": "Community Picnic", "date": "2026-06-14", "time": "12:00 PM",
					"location": "Riverside Park", "description": "Food, games and fellowship.", "image": "/uploads/picnic.jpg",
				},
			},
		}},
		{model.PageAbout, "story", map[string]any{
			"title": "Our Story",
			"text":  "<p>Founded in 1962, Grace Community Church has served Springfield for six decades.</p>",
			"image": "/uploads/building.jpg",
		}},
		{model.PageAbout, "leadership", map[string]any{
			"title": "Our Leadership",
			"leaders": []any{
				map[string]any{"name": "Rev. Sarah Miller", "role": "Lead Pastor", "photo": "/uploads/miller.jpg"},
				map[string]any{"name": "David Chen", "role": "Worship Director", "photo": "/uploads/chen.jpg"},
			},
		}},
		{model.PageDepartments, "ministries", map[string]any{
			"title": "Ministries",
			"items": []any{
				map[string]any{"name": "Children", "description": "Sunday school for ages 3 to 11."},
				map[string]any{"name": "Youth", "description": "Wednesday nights for grades 6 to 12."},
			},
		}},
		{model.PageMedia, "gallery", map[string]any{
			"title":  "Photo Gallery",
			"images": []any{"/uploads/gallery-1.jpg", "/uploads/gallery-2.jpg", "/uploads/gallery-3.jpg"},
		}},
		{model.PageMedia, "sermons", map[string]any{
			"title":   "Recent Sermons",
			"showAll": false,
			"videos": []any{
				map[string]any{"title": "Hope Renewed", "url": "https://www.youtube.com/embed/dQw4w9WgXcQ", "date": "2026-05-03"},
			},
		}},
		{model.PageContact, "info", map[string]any{
			"title":   "Contact Us",
			"email":   "hello@gracechurch.org",
			"phone":   "(555) 010-2030",
			"address": "120 Chapel Street, Springfield",
			"mapUrl":  "https://maps.example.org/grace",
		}},
		{model.PageEvents, "upcoming", map[string]any{
			"title":  "Events Calendar",
			"events": []any{},
		}},
		{model.PageGive, "options", map[string]any{
			"title":       "Give",
			"description": "Your generosity supports our ministries and community outreach.",
			"onlineUrl":   "https://give.example.org/grace",
			"showQRCode":  true,
		}},
	}
}
