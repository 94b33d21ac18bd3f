// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Default schedules.
const (
	PruneLimitersSpec = "@every 10m"
	PruneEventsSpec   = "@daily"
	ReloadGeoIPSpec   = "@daily"
)

// MaxTrackedClients is the size at which per-IP request limiters are reset.
const MaxTrackedClients = 10000

// AttemptPruner drops expired login attempt windows.
type AttemptPruner interface {
	Prune() int
}

// ClientPruner resets per-client limiters past a size.
type ClientPruner interface {
	Prune(maxSize int) bool
}

// EventPruner deletes audit events older than a duration.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Reloader reloads a file-backed database.
type Reloader interface {
	Reload() error
}

// PruneLimitersJob prunes the login limiter and the per-IP request limiters.
// attempts may be nil when attempts live in Redis.
func PruneLimitersJob(attempts AttemptPruner, clients []ClientPruner, logger *slog.Logger) Job {
	return Job{
		Name: "prune-limiters",
		Spec: PruneLimitersSpec,
		Run: func(context.Context) error {
			if attempts != nil {
				if n := attempts.Prune(); n > 0 {
					logger.Debug("pruned login attempt windows", "count", n)
				}
			}
			for _, c := range clients {
				if c.Prune(MaxTrackedClients) {
					logger.Info("reset request limiter", "max_clients", MaxTrackedClients)
				}
			}
			return nil
		},
	}
}

// PruneEventsJob deletes audit events past the retention period.
func PruneEventsJob(events EventPruner, retention time.Duration, logger *slog.Logger) Job {
	return Job{
		Name: "prune-events",
		Spec: PruneEventsSpec,
		Run: func(ctx context.Context) error {
			n, err := events.DeleteOldEvents(ctx, retention)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("deleted old events", "count", n, "retention", retention)
			}
			return nil
		},
	}
}

// ReloadGeoIPJob picks up a replaced GeoIP database file.
func ReloadGeoIPJob(geo Reloader) Job {
	return Job{
		Name: "reload-geoip",
		Spec: ReloadGeoIPSpec,
		Run: func(context.Context) error {
			return geo.Reload()
		},
	}
}
