// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
)

// AdminHandler handles the dashboard.
type AdminHandler struct {
	contents *service.ContentService
	renderer *render.Renderer
	metrics  *metrics.Metrics
}

// NewAdminHandler creates a new AdminHandler. m may be nil.
func NewAdminHandler(contents *service.ContentService, renderer *render.Renderer, m *metrics.Metrics) *AdminHandler {
	return &AdminHandler{contents: contents, renderer: renderer, metrics: m}
}

// PageSummary is one row of the dashboard page table.
type PageSummary struct {
	Page     string
	Sections int64
}

// DashboardData holds data for the dashboard.
type DashboardData struct {
	Pages         []PageSummary
	TotalSections int64
	Stats         *metrics.Snapshot
	Uptime        string
}

// Dashboard handles GET /admin.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.contents.PageCounts(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to count sections", "error", err)
		return
	}

	byPage := make(map[string]int64, len(counts))
	for _, c := range counts {
		byPage[c.Page] = c.Sections
	}

	var data DashboardData
	for _, p := range model.Pages {
		data.Pages = append(data.Pages, PageSummary{Page: p, Sections: byPage[p]})
		data.TotalSections += byPage[p]
	}

	if h.metrics != nil {
		if snap, err := h.metrics.Snapshot(); err != nil {
			slog.Warn("failed to read metrics", "error", err)
		} else {
			data.Stats = &snap
			data.Uptime = (time.Duration(snap.UptimeSeconds) * time.Second).String()
		}
	}

	h.renderer.RenderPage(w, r, "admin/dashboard", render.TemplateData{
		Title: "Dashboard",
		User:  middleware.GetUser(r),
		Nav:   navDashboard,
		Data:  data,
	})
}
