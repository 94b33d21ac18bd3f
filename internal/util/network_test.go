// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"net"
	"net/http/httptest"
	"testing"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.32.0.1", false},
		{"192.168.1.1", true},
		{"100.64.0.1", true},
		{"8.8.8.8", false},
		{"::1", true},
		{"fd00::1", true},
		{"2a00:1450::1", false},
	}

	for _, tt := range tests {
		if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
			t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
		}
	}
	if !IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) should be true")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"remote addr with port", "203.0.113.5:5123", "", "", false, "203.0.113.5"},
		{"remote addr without port", "203.0.113.5", "", "", false, "203.0.113.5"},
		{"ipv6 remote", "[2001:db8::1]:443", "", "", false, "2001:db8::1"},
		{"headers ignored without proxy", "10.0.0.1:1", "1.2.3.4", "5.6.7.8", false, "10.0.0.1"},
		{"real ip preferred", "10.0.0.1:1", "1.2.3.4", "5.6.7.8", true, "1.2.3.4"},
		{"first forwarded entry", "10.0.0.1:1", "", "5.6.7.8, 10.0.0.2", true, "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
