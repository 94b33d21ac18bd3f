// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON API: content sections, accounts and media.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/service"
)

// MaxJSONBodyBytes caps JSON request bodies.
const MaxJSONBodyBytes = 4 << 20

// Config holds the dependencies of the API handlers.
type Config struct {
	Contents *service.ContentService
	Users    *service.UserService
	Media    *service.MediaService
	Events   *service.EventService // optional
	Metrics  *metrics.Metrics      // optional

	// LoginLimiter and UploadLimiter add per-IP token buckets in front of
	// login and upload. Both are optional.
	LoginLimiter  *middleware.RateLimiter
	UploadLimiter *middleware.RateLimiter

	Logger *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	contents      *service.ContentService
	users         *service.UserService
	media         *service.MediaService
	events        *service.EventService
	metrics       *metrics.Metrics
	loginLimiter  *middleware.RateLimiter
	uploadLimiter *middleware.RateLimiter
	logger        *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		contents:      cfg.Contents,
		users:         cfg.Users,
		media:         cfg.Media,
		events:        cfg.Events,
		metrics:       cfg.Metrics,
		loginLimiter:  cfg.LoginLimiter,
		uploadLimiter: cfg.UploadLimiter,
		logger:        logger,
	}
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	bearer := middleware.BearerAuth(h.users)

	r.Get("/status", h.Status)

	r.Route("/content", func(r chi.Router) {
		r.Get("/", h.ListPages)
		r.Get("/{page}", h.ListSections)
		r.Get("/{page}/{section}", h.GetSection)

		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Post("/{page}/{section}", h.SaveSection)
			r.Put("/{page}/{section}", h.SaveSection)
			r.Delete("/{page}/{section}", h.DeleteSection)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(limit(h.loginLimiter)...).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Get("/me", h.Me)
			r.Post("/change-password", h.ChangePassword)
			r.Post("/register", h.Register)
			r.Get("/users", h.ListUsers)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Patch("/users/{id}/permissions", h.SetPermissions)
		})
	})

	r.Route("/media", func(r chi.Router) {
		r.Use(bearer)
		r.With(limit(h.uploadLimiter)...).Post("/upload", h.Upload)
		r.With(limit(h.uploadLimiter)...).Post("/upload-multiple", h.UploadMultiple)
		r.Get("/files", h.ListFiles)
		r.Delete("/files/{name}", h.DeleteFile)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "Endpoint not found")
	})
	return r
}

func limit(rl *middleware.RateLimiter) []func(http.Handler) http.Handler {
	if rl == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{rl.Middleware()}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int64 `json:"total"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// WriteTooManyRequests writes a 429 response with Retry-After guidance.
func WriteTooManyRequests(w http.ResponseWriter, rl *service.RateLimitError) {
	secs := middleware.SetRetryAfter(w, rl.RetryAfter)
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
		fmt.Sprintf("Too many attempts. Try again in %d seconds.", secs),
		map[string]string{"retry_after": strconv.Itoa(secs)})
}

// writeServiceError maps service and media errors to responses. Unknown
// errors are logged and answered with a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var (
		verr *service.ValidationError
		rerr *service.RateLimitError
		ferr *service.ForbiddenError
	)
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr.Fields)
	case errors.As(err, &rerr):
		WriteTooManyRequests(w, rerr)
	case errors.As(err, &ferr):
		WriteForbidden(w, ferr.Reason)
	case errors.Is(err, service.ErrValidation):
		WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", nil)
	case errors.Is(err, service.ErrForbidden):
		WriteForbidden(w, "Insufficient permissions")
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteUnauthorized(w, "Invalid credentials")
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, "Not found")
	case errors.Is(err, service.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "A user with this email already exists", nil)
	case errors.Is(err, media.ErrTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("File exceeds the %d MB upload limit", h.media.MaxBytes()>>20), nil)
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmptyFile):
		WriteValidationError(w, map[string]string{"file": capitalizeFirst(err.Error())})
	default:
		h.logger.Error("api request failed",
			"action", action,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		WriteInternalError(w, "Failed to "+action)
	}
}

// decodeJSON reads a size-limited JSON body into dst. On failure the 400
// response is already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", nil)
			return false
		}
		WriteBadRequest(w, "Invalid JSON body", nil)
		return false
	}
	return true
}

// auditMedia records a media event when an event log is configured.
func (h *Handler) auditMedia(r *http.Request, message, name string, size int64) {
	if h.events == nil {
		return
	}
	a := actor(r)
	meta := map[string]any{"file": name}
	if size > 0 {
		meta["size"] = size
	}
	_ = h.events.LogMediaEvent(r.Context(), model.EventLevelInfo, message, a.UserID, a.IP, meta)
}

// actor returns the audit identity of the authenticated request.
func actor(r *http.Request) service.Actor {
	a := service.Actor{IP: middleware.GetClientIP(r)}
	if u := middleware.GetUser(r); u != nil {
		a.UserID, a.Email = u.ID, u.Email
	}
	return a
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{Status: "ok", Version: "v1"}, nil)
}

// capitalizeFirst returns s with the first letter capitalized.
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
