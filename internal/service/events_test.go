// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/store"
	"github.com/olegiv/chapel-cms/internal/testutil"
)

func TestLogEvent(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	svc := NewEventService(store.New(db))
	ctx := context.Background()

	err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryContent, "Content saved",
		"user-1", "192.168.1.100", map[string]any{"page": "home"})
	require.NoError(t, err)

	events, total, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), total)

	e := events[0]
	assert.Equal(t, "info", e.Level)
	assert.Equal(t, "content", e.Category)
	assert.Equal(t, "user-1", e.UserID)
	assert.Equal(t, "192.168.1.100", e.IPAddress)
	assert.Equal(t, `{"page":"home"}`, e.Metadata)
}

func TestLogEvent_NilMetadata(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	svc := NewEventService(store.New(db))
	require.NoError(t, svc.LogAuthEvent(context.Background(), model.EventLevelWarning, "Login failed", "", "", nil))

	events, _, err := svc.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "{}", events[0].Metadata)
	assert.Equal(t, "auth", events[0].Category)
}

func TestDeleteOldEvents(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	svc := NewEventService(store.New(db))
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now.AddDate(0, 0, -100) }
	require.NoError(t, svc.LogMediaEvent(ctx, model.EventLevelInfo, "old", "", "", nil))
	svc.now = func() time.Time { return now }
	require.NoError(t, svc.LogMediaEvent(ctx, model.EventLevelInfo, "new", "", "", nil))

	removed, err := svc.DeleteOldEvents(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	events, _, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].Message)
}
