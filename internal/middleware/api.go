// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message
	apiErr.Error.Details = details

	_ = json.NewEncoder(w).Encode(apiErr)
}

// SetRetryAfter sets the Retry-After header, rounding up to whole seconds.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	return secs
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// allow takes a token for key, or reports how long until one is available.
func (lc *limiterCache[K]) allow(key K) (bool, time.Duration) {
	res := lc.get(key).Reserve()
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

func (lc *limiterCache[K]) len() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

// RateLimiter is a per-client-IP token bucket limiter.
type RateLimiter struct {
	cache *limiterCache[string]
	scope string

	// OnReject is called with the limiter scope for every refused request.
	OnReject func(scope string)
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst for each client IP. scope names it in logs and metrics.
func NewRateLimiter(scope string, rps float64, burst int) *RateLimiter {
	return &RateLimiter{cache: newLimiterCache[string](rps, burst), scope: scope}
}

// Prune drops all buckets when more than maxSize clients are tracked.
func (rl *RateLimiter) Prune(maxSize int) bool {
	return rl.cache.clearIfExceeds(maxSize)
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	return rl.cache.len()
}

func (rl *RateLimiter) reject(r *http.Request, ip string) {
	slog.Warn("rate limit exceeded", "scope", rl.scope, "ip", ip, "path", r.URL.Path)
	if rl.OnReject != nil {
		rl.OnReject(rl.scope)
	}
}

// Middleware returns the limiter for API routes (JSON errors).
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)
			if ok, wait := rl.cache.allow(ip); !ok {
				rl.reject(r, ip)
				secs := SetRetryAfter(w, wait)
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
					"Rate limit exceeded. Please slow down.",
					map[string]string{"retry_after": strconv.Itoa(secs)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HTMLMiddleware returns the limiter for HTML routes (plain text errors).
func (rl *RateLimiter) HTMLMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)
			if ok, wait := rl.cache.allow(ip); !ok {
				rl.reject(r, ip)
				SetRetryAfter(w, wait)
				http.Error(w, "Too many requests. Please wait a moment and try again.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
