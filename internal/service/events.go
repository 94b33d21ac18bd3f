// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the business rules of the CMS: content writes,
// accounts and permissions, media uploads and the audit log.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/store"
)

// EventStore is the persistence used by EventService.
type EventStore interface {
	CreateEvent(ctx context.Context, arg store.CreateEventParams) (int64, error)
	ListEvents(ctx context.Context, limit, offset int64) ([]store.Event, error)
	CountEvents(ctx context.Context) (int64, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventService provides event logging functionality.
type EventService struct {
	events EventStore
	now    func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events, now: time.Now}
}

// LogEvent creates a new event log entry. Failures are logged and returned.
func (s *EventService) LogEvent(ctx context.Context, level, category, message, userID, ipAddress string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	_, err := s.events.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    userID,
		Metadata:  metadataJSON,
		IPAddress: ipAddress,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		slog.Error("failed to log event", "error", err, "category", category)
		return err
	}
	return nil
}

// LogAuthEvent logs an authentication-related event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message, userID, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, ipAddress, metadata)
}

// LogContentEvent logs a content-related event.
func (s *EventService) LogContentEvent(ctx context.Context, level, message, userID, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryContent, message, userID, ipAddress, metadata)
}

// LogUserEvent logs a user-related event.
func (s *EventService) LogUserEvent(ctx context.Context, level, message, userID, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, userID, ipAddress, metadata)
}

// LogMediaEvent logs a media-related event.
func (s *EventService) LogMediaEvent(ctx context.Context, level, message, userID, ipAddress string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryMedia, message, userID, ipAddress, metadata)
}

// List returns a page of events, newest first, and the total count.
func (s *EventService) List(ctx context.Context, limit, offset int64) ([]store.Event, int64, error) {
	events, err := s.events.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.events.CountEvents(ctx)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.events.DeleteEventsBefore(ctx, s.now().UTC().Add(-olderThan))
}
