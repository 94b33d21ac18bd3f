// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testCSRFKey = []byte("12345678901234567890123456789012")

func TestDefaultCSRFConfig(t *testing.T) {
	dev := DefaultCSRFConfig(testCSRFKey, true, "0.0.0.0:9000")
	if len(dev.TrustedOrigins) != 3 {
		t.Fatalf("dev TrustedOrigins = %v", dev.TrustedOrigins)
	}
	for _, origin := range dev.TrustedOrigins {
		if strings.HasPrefix(origin, "http") {
			t.Errorf("TrustedOrigin should be host:port, not a URL: %s", origin)
		}
	}

	dev = DefaultCSRFConfig(testCSRFKey, true, "localhost:8080")
	if len(dev.TrustedOrigins) != 2 {
		t.Errorf("duplicate default addr should not be added: %v", dev.TrustedOrigins)
	}

	prod := DefaultCSRFConfig(testCSRFKey, false, "church.test")
	if len(prod.TrustedOrigins) != 0 {
		t.Errorf("production should trust no extra origins, got %v", prod.TrustedOrigins)
	}
}

func TestCSRF_CrossSiteFormPostRejected(t *testing.T) {
	handler := CSRF(DefaultCSRFConfig(testCSRFKey, false, ""))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/pages/home", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCSRF_SameOriginAndSafeMethodsAllowed(t *testing.T) {
	handler := CSRF(DefaultCSRFConfig(testCSRFKey, false, ""))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/pages/home", strings.NewReader("a=b"))
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("same-origin POST status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("cross-site GET status = %d, want 200", rec.Code)
	}
}

func TestCSRF_CustomErrorHandler(t *testing.T) {
	cfg := DefaultCSRFConfig(testCSRFKey, false, "")
	cfg.ErrorHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CSRF(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want custom handler's 418", rec.Code)
	}
}
