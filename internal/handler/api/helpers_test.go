// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/auth"
	"github.com/olegiv/chapel-cms/internal/content"
	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/ratelimit"
	"github.com/olegiv/chapel-cms/internal/service"
	"github.com/olegiv/chapel-cms/internal/store"
	"github.com/olegiv/chapel-cms/internal/testutil"
)

const (
	testSuperEmail = "pastor@church.test"
	testPassword   = "amazing-grace"
)

// testEnv is an API router backed by a temporary database and uploads dir.
type testEnv struct {
	t       *testing.T
	router  chi.Router
	queries *store.Queries
	metrics *metrics.Metrics
	events  *service.EventService
	dir     string
}

type envOptions struct {
	maxLoginAttempts int
	maxUploadBytes   int64
	uploadLimiter    *middleware.RateLimiter
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	if opts.maxLoginAttempts == 0 {
		opts.maxLoginAttempts = 5
	}
	if opts.maxUploadBytes == 0 {
		opts.maxUploadBytes = 1 << 20
	}

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	q := store.New(db)
	events := service.NewEventService(q)
	logger := testutil.TestLoggerSilent()

	dir := t.TempDir()
	storage, err := media.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	m := metrics.New()
	h := NewHandler(Config{
		Contents: service.NewContentService(q, content.NewSanitizer(), events),
		Users: service.NewUserService(service.UserServiceConfig{
			Users:           q,
			Limiter:         ratelimit.NewMemory(opts.maxLoginAttempts, time.Minute),
			Tokens:          auth.NewTokenIssuer("api-test-secret-with-enough-bytes-1!", time.Hour),
			Events:          events,
			SuperAdminEmail: testSuperEmail,
			Logger:          logger,
		}),
		Media:         service.NewMediaService(storage, opts.maxUploadBytes, logger),
		Events:        events,
		Metrics:       m,
		UploadLimiter: opts.uploadLimiter,
		Logger:        logger,
	})

	testutil.CreateUser(t, q, "super", testSuperEmail, model.RoleAdmin, testPassword)
	testutil.CreateUser(t, q, "admin", "deacon@church.test", model.RoleAdmin, testPassword)
	testutil.CreateUser(t, q, "editor", "editor@church.test", model.RoleEditor, testPassword)

	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return &testEnv{t: t, router: r, queries: q, metrics: m, events: events, dir: dir}
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doRaw sends a request with a raw body.
func (e *testEnv) doRaw(method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// login returns a bearer token for email.
func (e *testEnv) login(email string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: testPassword})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Data service.LoginResult `json:"data"`
	}
	decode(e.t, rec, &resp)
	return resp.Data.Token
}

// upload posts files as a multipart form under field.
func (e *testEnv) upload(path, token, field string, files map[string][]byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			e.t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write(data)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, expected, w.Body.String())
	}
}

func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decode(t, w, &resp)
	if resp.Error.Code != expectedCode {
		t.Errorf("error code = %q, want %q", resp.Error.Code, expectedCode)
	}
	return resp
}
