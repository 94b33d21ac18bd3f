// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/store"
)

// SaveContentRequest is the body of a section upsert.
type SaveContentRequest struct {
	Content any `json:"content"`
}

// ListPages handles GET /api/content
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.contents.Pages(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "list pages")
		return
	}
	if pages == nil {
		pages = []string{}
	}
	WriteSuccess(w, pages, &Meta{Total: int64(len(pages))})
}

// ListSections handles GET /api/content/{page}
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.contents.Sections(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		h.writeServiceError(w, r, err, "list sections")
		return
	}
	WriteSuccess(w, sectionsOrEmpty(sections), &Meta{Total: int64(len(sections))})
}

// GetSection handles GET /api/content/{page}/{section}
func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	doc, err := h.contents.Section(r.Context(), chi.URLParam(r, "page"), chi.URLParam(r, "section"))
	if err != nil {
		h.writeServiceError(w, r, err, "load section")
		return
	}
	WriteSuccess(w, doc, nil)
}

// SaveSection handles POST and PUT /api/content/{page}/{section}
// Requires a bearer token. HTML-bearing strings are sanitized before storage.
func (h *Handler) SaveSection(w http.ResponseWriter, r *http.Request) {
	var req SaveContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page := chi.URLParam(r, "page")
	doc, err := h.contents.Save(r.Context(), page, chi.URLParam(r, "section"), req.Content, actor(r))
	if err != nil {
		h.writeServiceError(w, r, err, "save section")
		return
	}
	h.metrics.IncContentWrite(page, "save")
	WriteSuccess(w, doc, nil)
}

// DeleteSection handles DELETE /api/content/{page}/{section}
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	if err := h.contents.Delete(r.Context(), page, chi.URLParam(r, "section"), actor(r)); err != nil {
		h.writeServiceError(w, r, err, "delete section")
		return
	}
	h.metrics.IncContentWrite(page, "delete")
	w.WriteHeader(http.StatusNoContent)
}

func sectionsOrEmpty(s []store.Content) []store.Content {
	if s == nil {
		return []store.Content{}
	}
	return s
}
