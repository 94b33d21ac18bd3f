// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Store errors shared by every backend.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Content is one content document, unique by (Page, Section).
// Value is the decoded JSON content with numbers kept as json.Number.
type Content struct {
	Page      string    `json:"page"`
	Section   string    `json:"section"`
	Value     any       `json:"content"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpsertContentParams holds the fields written by an upsert.
type UpsertContentParams struct {
	Page      string
	Section   string
	Value     any
	UpdatedBy string
	Now       time.Time
}

// User is a dashboard account.
type User struct {
	ID                    string
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  string
	IsActive              bool
	RequirePasswordChange bool
	CanDeleteAdmins       bool
	LastLoginAt           sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CreateUserParams holds the fields for a new user.
type CreateUserParams struct {
	ID                    string
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  string
	RequirePasswordChange bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Event is an event log entry.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    string
	Metadata  string // JSON object
	IPAddress string
	CreatedAt time.Time
}

// CreateEventParams holds the fields for a new event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    string
	Metadata  string
	IPAddress string
	CreatedAt time.Time
}

// PageCount is the number of sections stored for a page.
type PageCount struct {
	Page     string
	Sections int64
}

// ContentRepository stores content documents.
type ContentRepository interface {
	ListPages(ctx context.Context) ([]string, error)
	CountSectionsByPage(ctx context.Context) ([]PageCount, error)
	ListContentByPage(ctx context.Context, page string) ([]Content, error)
	GetContent(ctx context.Context, page, section string) (Content, error)
	UpsertContent(ctx context.Context, arg UpsertContentParams) (Content, error)
	DeleteContent(ctx context.Context, page, section string) error
}

// UserRepository stores dashboard accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string, requireChange bool, now time.Time) error
	UpdateUserCanDeleteAdmins(ctx context.Context, id string, allowed bool, now time.Time) error
	UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error
	DeleteUser(ctx context.Context, id string) error
}
