// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sitepatch

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/store"
)

// ContentLister is the read side of the content store used by the site.
type ContentLister interface {
	ListContentByPage(ctx context.Context, page string) ([]store.Content, error)
}

// Handler serves the public site, patching HTML pages with stored content.
type Handler struct {
	fsys     fs.FS
	files    http.Handler
	contents ContentLister
	patcher  *Patcher
	logger   *slog.Logger

	// OnPatched is called with the page name after a page was patched.
	OnPatched func(page string)
}

// NewHandler serves files from fsys. HTML pages are patched with the sections
// of their page plus the shared sections.
func NewHandler(fsys fs.FS, contents ContentLister, patcher *Patcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		fsys:     fsys,
		files:    http.FileServerFS(fsys),
		contents: contents,
		patcher:  patcher,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name, ok := h.htmlFile(r.URL.Path)
	if !ok {
		h.files.ServeHTTP(w, r)
		return
	}

	raw, err := fs.ReadFile(h.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("failed to read site page", "file", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(h.render(r.Context(), PageName(r.URL.Path), raw))
}

// render returns the patched page, or raw unchanged when content cannot be loaded.
func (h *Handler) render(ctx context.Context, page string, raw []byte) []byte {
	sections, err := h.loadSections(ctx, page)
	if err != nil {
		h.logger.Warn("serving static page, content unavailable", "page", page, "error", err)
		return raw
	}
	if len(sections) == 0 {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		h.logger.Warn("serving static page, parse failed", "page", page, "error", err)
		return raw
	}
	h.patcher.Patch(doc, sections)

	out, err := doc.Html()
	if err != nil {
		h.logger.Warn("serving static page, render failed", "page", page, "error", err)
		return raw
	}
	if h.OnPatched != nil {
		h.OnPatched(page)
	}
	return []byte(out)
}

func (h *Handler) loadSections(ctx context.Context, page string) ([]store.Content, error) {
	var sections []store.Content
	if page != model.PageShared && model.ValidPage(page) {
		own, err := h.contents.ListContentByPage(ctx, page)
		if err != nil {
			return nil, err
		}
		sections = append(sections, own...)
	}
	shared, err := h.contents.ListContentByPage(ctx, model.PageShared)
	if err != nil {
		return nil, err
	}
	return append(sections, shared...), nil
}

// htmlFile maps a request path to an HTML file in the site, if it names one.
func (h *Handler) htmlFile(urlPath string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	switch {
	case clean == "" || clean == ".":
		return "index.html", true
	case strings.HasSuffix(urlPath, "/"):
		return path.Join(clean, "index.html"), true
	case path.Ext(clean) == ".html":
		return clean, true
	case path.Ext(clean) == "":
		if _, err := fs.Stat(h.fsys, clean+".html"); err == nil {
			return clean + ".html", true
		}
	}
	return "", false
}
