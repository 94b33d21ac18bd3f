// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
)

// MediaHandler handles the media library and serves stored uploads.
type MediaHandler struct {
	media    *service.MediaService
	renderer *render.Renderer
	metrics  *metrics.Metrics
}

// NewMediaHandler creates a new MediaHandler. m may be nil.
func NewMediaHandler(mediaSvc *service.MediaService, renderer *render.Renderer, m *metrics.Metrics) *MediaHandler {
	return &MediaHandler{media: mediaSvc, renderer: renderer, metrics: m}
}

// MediaLibraryData holds data for the media library.
type MediaLibraryData struct {
	Files       []service.MediaFile
	TotalSize   int64
	MaxUploadMB int64
	Allowed     string
}

// Library handles GET /admin/media.
func (h *MediaHandler) Library(w http.ResponseWriter, r *http.Request) {
	files, err := h.media.List(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list media", "error", err)
		return
	}

	data := MediaLibraryData{
		Files:       files,
		MaxUploadMB: h.media.MaxBytes() >> 20,
		Allowed:     strings.Join(media.AllowedExtensions(), ", "),
	}
	for _, f := range files {
		data.TotalSize += f.Size
	}

	h.renderer.RenderPage(w, r, "admin/media", render.TemplateData{
		Title: "Media",
		User:  middleware.GetUser(r),
		Nav:   navMedia,
		Data:  data,
		Breadcrumbs: []render.Breadcrumb{
			{Label: "Dashboard", URL: redirectAdmin},
			{Label: "Media", Active: true},
		},
	})
}

// Upload handles POST /admin/media.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.media.MaxBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.metrics.ObserveUpload("rejected", 0)
			flashError(w, r, h.renderer, redirectMedia, uploadMessage(media.ErrTooLarge, h.media.MaxBytes()))
			return
		}
		flashError(w, r, h.renderer, redirectMedia, "Please choose a file to upload.")
		return
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		flashError(w, r, h.renderer, redirectMedia, "Please choose a file to upload.")
		return
	}
	defer func() { _ = f.Close() }()

	file, err := h.media.Upload(r.Context(), f, fh.Filename)
	if err != nil {
		h.metrics.ObserveUpload("rejected", 0)
		flashError(w, r, h.renderer, redirectMedia, uploadMessage(err, h.media.MaxBytes()))
		return
	}
	h.metrics.ObserveUpload("success", file.Size)

	slog.Info("media uploaded", "file", file.Filename, "size", file.Size, "user_id", middleware.GetUserID(r))
	flashSuccess(w, r, h.renderer, redirectMedia, fmt.Sprintf("Uploaded %s as %s.", fh.Filename, file.Path))
}

// Delete handles POST /admin/media/{name}/delete.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.media.Delete(r.Context(), name); err != nil {
		flashServiceError(w, r, h.renderer, redirectMedia, "delete file", err)
		return
	}
	slog.Info("media deleted", "file", name, "user_id", middleware.GetUserID(r))
	flashSuccess(w, r, h.renderer, redirectMedia, "File deleted.")
}

// Serve handles GET /uploads/*, serving files from the configured storage
// with range and conditional request support.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	f, obj, err := h.media.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logAndInternalError(w, "failed to open upload", "file", name, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if obj.ContentType == media.MimeTypeSVG {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	}
	http.ServeContent(w, r, obj.Name, obj.ModTime, f)
}
