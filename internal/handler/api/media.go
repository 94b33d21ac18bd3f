// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/service"
)

// Multipart limits.
const (
	multipartMemory    = 8 << 20
	multipartOverhead  = 1 << 20
	MaxFilesPerRequest = 10
)

// Upload handles POST /api/media/upload
// Expects one file in the "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r, 1) {
		return
	}
	fh := firstFile(r.MultipartForm, "file")
	if fh == nil {
		WriteValidationError(w, map[string]string{"file": "No file uploaded"})
		return
	}

	file, err := h.store(r, fh)
	if err != nil {
		h.writeServiceError(w, r, err, "upload file")
		return
	}
	WriteCreated(w, file)
}

// UploadMultiple handles POST /api/media/upload-multiple
// Expects up to MaxFilesPerRequest files in the "files" field. Either every
// file is stored or none is.
func (h *Handler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r, MaxFilesPerRequest) {
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteValidationError(w, map[string]string{"files": "No files uploaded"})
		return
	}
	if len(headers) > MaxFilesPerRequest {
		WriteValidationError(w, map[string]string{"files": "Too many files in one request"})
		return
	}

	stored := make([]*service.MediaFile, 0, len(headers))
	for _, fh := range headers {
		file, err := h.store(r, fh)
		if err != nil {
			for _, f := range stored {
				if derr := h.media.Delete(r.Context(), f.Filename); derr != nil {
					h.logger.Warn("failed to roll back upload", "file", f.Filename, "error", derr)
				}
			}
			h.writeServiceError(w, r, err, "upload files")
			return
		}
		stored = append(stored, file)
	}
	WriteCreated(w, stored)
}

// parseMultipart bounds the body to files times the upload cap and parses it.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request, files int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, files*h.media.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.metrics.ObserveUpload("rejected", 0)
			h.writeServiceError(w, r, media.ErrTooLarge, "upload file")
			return false
		}
		WriteBadRequest(w, "Invalid multipart form", nil)
		return false
	}
	return true
}

// store validates and saves one part, recording the outcome.
func (h *Handler) store(r *http.Request, fh *multipart.FileHeader) (*service.MediaFile, error) {
	if fh.Size > h.media.MaxBytes() {
		h.metrics.ObserveUpload("rejected", 0)
		return nil, media.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	file, err := h.media.Upload(r.Context(), f, fh.Filename)
	if err != nil {
		h.metrics.ObserveUpload("rejected", 0)
		h.logger.Info("upload rejected", "file", fh.Filename, "error", err, "ip", actor(r).IP)
		return nil, err
	}
	h.metrics.ObserveUpload("success", file.Size)
	h.auditMedia(r, "Media uploaded", file.Filename, file.Size)
	return file, nil
}

// ListFiles handles GET /api/media/files
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.media.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "list files")
		return
	}
	WriteSuccess(w, files, &Meta{Total: int64(len(files))})
}

// DeleteFile handles DELETE /api/media/files/{name}
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.media.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeServiceError(w, r, err, "delete file")
		return
	}
	h.auditMedia(r, "Media deleted", chi.URLParam(r, "name"), 0)
	w.WriteHeader(http.StatusNoContent)
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}
