// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/chapel-cms/internal/auth"
	"github.com/olegiv/chapel-cms/internal/content"
	"github.com/olegiv/chapel-cms/internal/editor"
	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/ratelimit"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/service"
	"github.com/olegiv/chapel-cms/internal/session"
	"github.com/olegiv/chapel-cms/internal/store"
	"github.com/olegiv/chapel-cms/internal/testutil"
	"github.com/olegiv/chapel-cms/web"
)

const (
	testSuperEmail  = "pastor@church.test"
	testAdminEmail  = "deacon@church.test"
	testEditorEmail = "editor@church.test"
	testPassword    = "amazing-grace"
)

// adminEnv is the admin router backed by a temporary database and uploads dir.
type adminEnv struct {
	t        *testing.T
	router   chi.Router
	queries  *store.Queries
	contents *service.ContentService
	users    *service.UserService
	media    *service.MediaService
	events   *service.EventService
	metrics  *metrics.Metrics
	health   *HealthHandler
	tokens   *auth.TokenIssuer
	dir      string
}

type adminOptions struct {
	maxLoginAttempts int
	maxUploadBytes   int64
}

func newAdminEnv(t *testing.T, opts adminOptions) *adminEnv {
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
	logger := testutil.TestLoggerSilent()

	dir := t.TempDir()
	storage, err := media.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	sm := session.New(db, true)
	templates, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:     templates,
		SessionManager:  sm,
		SuperAdminEmail: testSuperEmail,
		IsDev:           true,
	})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	sanitizer := content.NewSanitizer()
	ed, err := editor.New(sanitizer, "")
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}

	m := metrics.New()
	events := service.NewEventService(q)
	tokens := auth.NewTokenIssuer("admin-test-secret-with-enough-bytes!", time.Hour)
	users := service.NewUserService(service.UserServiceConfig{
		Users:           q,
		Limiter:         ratelimit.NewMemory(opts.maxLoginAttempts, time.Minute),
		Tokens:          tokens,
		Events:          events,
		SuperAdminEmail: testSuperEmail,
		Logger:          logger,
	})
	contents := service.NewContentService(q, sanitizer, events)
	mediaSvc := service.NewMediaService(storage, opts.maxUploadBytes, logger)

	guide, err := NewGuideHandler(web.Guide, renderer)
	if err != nil {
		t.Fatalf("NewGuideHandler: %v", err)
	}

	r := chi.NewRouter()
	AdminRoutes{
		Sessions:  sm,
		Users:     users,
		Events:    events,
		Auth:      NewAuthHandler(users, renderer, sm, m),
		Dashboard: NewAdminHandler(contents, renderer, m),
		Pages:     NewPagesHandler(contents, mediaSvc, content.NewClassifier(nil), ed, renderer, m),
		Accounts:  NewUsersHandler(users, renderer),
		Media:     NewMediaHandler(mediaSvc, renderer, m),
		EventLog:  NewEventsHandler(events, nil, renderer),
		Guide:     guide,
	}.Register(r)

	health := NewHealthHandler(HealthConfig{DB: db, Sessions: sm, Users: users, UploadsDir: dir})
	r.Get("/health", health.Health)
	r.Get("/uploads/*", NewMediaHandler(mediaSvc, renderer, m).Serve)

	testutil.CreateUser(t, q, "super", testSuperEmail, model.RoleAdmin, testPassword)
	testutil.CreateUser(t, q, "admin", testAdminEmail, model.RoleAdmin, testPassword)
	testutil.CreateUser(t, q, "editor", testEditorEmail, model.RoleEditor, testPassword)

	return &adminEnv{
		t:        t,
		router:   r,
		queries:  q,
		contents: contents,
		users:    users,
		media:    mediaSvc,
		events:   events,
		metrics:  m,
		health:   health,
		tokens:   tokens,
		dir:      dir,
	}
}

// seed stores a section directly.
func (e *adminEnv) seed(page, section string, value any) {
	e.t.Helper()
	if _, err := e.contents.Save(context.Background(), page, section, value, service.Actor{}); err != nil {
		e.t.Fatalf("seeding %s/%s: %v", page, section, err)
	}
}

// section loads a stored section.
func (e *adminEnv) section(page, section string) map[string]any {
	e.t.Helper()
	doc, err := e.contents.Section(context.Background(), page, section)
	if err != nil {
		e.t.Fatalf("loading %s/%s: %v", page, section, err)
	}
	obj, ok := doc.Value.(map[string]any)
	if !ok {
		e.t.Fatalf("%s/%s is %T, want object", page, section, doc.Value)
	}
	return obj
}

// list loads a stored section whose content is a list.
func (e *adminEnv) list(page, section string) []any {
	e.t.Helper()
	doc, err := e.contents.Section(context.Background(), page, section)
	if err != nil {
		e.t.Fatalf("loading %s/%s: %v", page, section, err)
	}
	items, ok := doc.Value.([]any)
	if !ok {
		e.t.Fatalf("%s/%s is %T, want list", page, section, doc.Value)
	}
	return items
}

// client is a browser session against the admin router.
type client struct {
	env     *adminEnv
	cookies map[string]*http.Cookie
}

func (e *adminEnv) anonymous() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{}}
}

// signIn logs in as email and returns the session.
func (e *adminEnv) signIn(email string) *client {
	e.t.Helper()
	c := e.anonymous()
	rec := c.postForm("/admin/login", url.Values{"email": {email}, "password": {testPassword}})
	if rec.Code != http.StatusSeeOther {
		e.t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	return c
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.env.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.env.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// postMultipart posts fields and files (field name to file name and data).
func (c *client) postMultipart(path string, fields url.Values, files map[string]testFile) *httptest.ResponseRecorder {
	c.env.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			_ = mw.WriteField(k, v)
		}
	}
	for field, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		if err != nil {
			c.env.t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = io.Copy(part, bytes.NewReader(f.data))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

type testFile struct {
	name string
	data []byte
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 120, G: 60, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	assertStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func assertContains(t *testing.T, rec *httptest.ResponseRecorder, substrings ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, s := range substrings {
		if !strings.Contains(body, s) {
			t.Errorf("body does not contain %q", s)
		}
	}
}
