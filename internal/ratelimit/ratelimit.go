// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ratelimit counts attempts per key in fixed windows. It backs login
// throttling: every attempt is recorded, and a successful login resets the key.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of recording an attempt.
type Decision struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration // zero when allowed
}

// Limiter records attempts per key.
type Limiter interface {
	// Record counts one attempt for key and reports whether it is within the limit.
	Record(ctx context.Context, key string) (Decision, error)
	// Reset clears the attempts recorded for key.
	Reset(ctx context.Context, key string) error
}

type window struct {
	count int
	start time.Time
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	period  time.Duration
	now     func() time.Time // injectable clock for testing
}

// NewMemory allows max attempts per key within each period.
func NewMemory(max int, period time.Duration) *Memory {
	return &Memory{
		windows: make(map[string]*window),
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

// Record implements Limiter.
func (m *Memory) Record(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.period {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++

	return decide(w.count, m.max, w.start.Add(m.period).Sub(now)), nil
}

// Reset implements Limiter.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.windows, key)
	m.mu.Unlock()
	return nil
}

// Prune drops expired windows and returns how many were removed.
func (m *Memory) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, w := range m.windows {
		if now.Sub(w.start) >= m.period {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func decide(count, max int, untilReset time.Duration) Decision {
	d := Decision{Limit: max, Remaining: max - count, Allowed: count <= max}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = untilReset
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d
}
