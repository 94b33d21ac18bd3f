// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, http.StatusUnprocessableEntity, "validation_error", "Invalid page", map[string]string{"page": "unknown"})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
	var body APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "validation_error" || body.Error.Details["page"] != "unknown" {
		t.Errorf("body = %+v", body)
	}
}

func TestSetRetryAfter(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{2 * time.Second, 2},
		{2100 * time.Millisecond, 3},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if got := SetRetryAfter(rec, tt.d); got != tt.want {
			t.Errorf("SetRetryAfter(%s) = %d, want %d", tt.d, got, tt.want)
		}
		if rec.Header().Get("Retry-After") != strconv.Itoa(tt.want) {
			t.Errorf("header = %q", rec.Header().Get("Retry-After"))
		}
	}
}

func limitedRequest(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter("upload", 0.1, 2)
	var rejected []string
	rl.OnReject = func(scope string) { rejected = append(rejected, scope) }
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		if rec := limitedRequest(handler, "203.0.113.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}

	rec := limitedRequest(handler, "203.0.113.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	var body APIError
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error.Details["retry_after"] == "" {
		t.Errorf("missing retry_after detail: %s", rec.Body.String())
	}
	if len(rejected) != 1 || rejected[0] != "upload" {
		t.Errorf("OnReject calls = %v", rejected)
	}

	if rec := limitedRequest(handler, "203.0.113.2"); rec.Code != http.StatusOK {
		t.Errorf("other client: status %d", rec.Code)
	}
}

func TestRateLimiter_HTMLMiddleware(t *testing.T) {
	rl := NewRateLimiter("public", 0.1, 1)
	handler := rl.HTMLMiddleware()(okHandler())

	_ = limitedRequest(handler, "192.0.2.9")
	rec := limitedRequest(handler, "192.0.2.9")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter("api", 10, 10)
	handler := rl.Middleware()(okHandler())
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_ = limitedRequest(handler, ip)
	}

	if rl.Prune(5) {
		t.Error("should not prune below the limit")
	}
	if !rl.Prune(2) || rl.Len() != 0 {
		t.Errorf("expected prune to clear, len=%d", rl.Len())
	}
}
