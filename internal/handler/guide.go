// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/render"
)

// GuideFile is the markdown file shown on the guide page.
const GuideFile = "guide/editing.md"

// GuideHandler shows the editing guide.
type GuideHandler struct {
	renderer *render.Renderer
	html     template.HTML
}

// NewGuideHandler converts the guide in fsys to HTML once.
func NewGuideHandler(fsys fs.FS, renderer *render.Renderer) (*GuideHandler, error) {
	src, err := fs.ReadFile(fsys, GuideFile)
	if err != nil {
		return nil, fmt.Errorf("reading guide: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("rendering guide: %w", err)
	}

	return &GuideHandler{
		renderer: renderer,
		html:     template.HTML(buf.String()), //nolint:gosec // embedded markdown, raw HTML disabled
	}, nil
}

// Show handles GET /admin/guide.
func (h *GuideHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderPage(w, r, "admin/guide", render.TemplateData{
		Title: "Editing Guide",
		User:  middleware.GetUser(r),
		Nav:   navGuide,
		Data:  h.html,
		Breadcrumbs: []render.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Editing Guide", Active: true},
		},
	})
}
