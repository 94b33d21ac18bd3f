// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/chapel-cms/internal/geoip"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
)

// EventsPerPage is the number of events to display per page.
const EventsPerPage = 25

// detailsLengthThreshold is the max chars before details are collapsible.
const detailsLengthThreshold = 80

// EventsHandler shows the audit log.
type EventsHandler struct {
	events   *service.EventService
	geo      *geoip.Lookup
	renderer *render.Renderer
}

// NewEventsHandler creates a new EventsHandler. geo may be nil.
func NewEventsHandler(events *service.EventService, geo *geoip.Lookup, renderer *render.Renderer) *EventsHandler {
	return &EventsHandler{events: events, geo: geo, renderer: renderer}
}

// EventRow is one formatted audit entry.
type EventRow struct {
	Level       string
	Category    string
	Message     string
	UserID      string
	IPAddress   string
	Country     string
	Details     string
	DetailsLong bool
	CreatedAt   time.Time
}

// EventsListData holds data for the event log.
type EventsListData struct {
	Events     []EventRow
	Pagination Pagination
}

// List handles GET /admin/events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	events, total, err := h.events.List(r.Context(), EventsPerPage, int64(page-1)*EventsPerPage)
	if err != nil {
		logAndInternalError(w, "failed to list events", "error", err)
		return
	}

	data := EventsListData{Pagination: buildPagination(page, total, EventsPerPage, "/admin/events")}
	for _, e := range events {
		details := formatMetadata(e.Metadata)
		row := EventRow{
			Level:       e.Level,
			Category:    e.Category,
			Message:     e.Message,
			UserID:      e.UserID,
			IPAddress:   e.IPAddress,
			Details:     details,
			DetailsLong: len(details) > detailsLengthThreshold,
			CreatedAt:   e.CreatedAt,
		}
		if h.geo != nil && e.IPAddress != "" {
			row.Country = h.geo.LookupCountry(e.IPAddress)
		}
		data.Events = append(data.Events, row)
	}

	h.renderer.RenderPage(w, r, "admin/events", render.TemplateData{
		Title: "Event Log",
		User:  middleware.GetUser(r),
		Nav:   navEvents,
		Data:  data,
		Breadcrumbs: []render.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Event Log", Active: true},
		},
	})
}

// formatMetadata converts JSON metadata to "key: value" pairs in key order.
func formatMetadata(metadata string) string {
	if metadata == "" || metadata == "{}" {
		return ""
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(metadata), &data); err != nil {
		return metadata
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			parts = append(parts, k+": "+v)
		case map[string]any, []any:
			b, _ := json.Marshal(v)
			parts = append(parts, k+": "+string(b))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}
