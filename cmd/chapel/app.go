// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/olegiv/chapel-cms/internal/config"
	"github.com/olegiv/chapel-cms/internal/logging"
	"github.com/olegiv/chapel-cms/internal/store"
	"github.com/olegiv/chapel-cms/internal/store/mongostore"
)

// backends holds the opened databases. SQLite always holds sessions and
// events; content and users live in MongoDB when configured.
type backends struct {
	db       *sql.DB
	queries  *store.Queries
	mongo    *mongostore.Store
	contents store.ContentRepository
	users    store.UserRepository
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger returns the console logger used before the database is open.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return logger
}

// withEventLog upgrades the logger to also persist WARN and ERROR records.
func withEventLog(cfg *config.Config, events logging.EventWriter) *slog.Logger {
	text := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})
	logger := slog.New(logging.NewEventLogHandler(text, events))
	slog.SetDefault(logger)
	return logger
}

// openSQLite opens the database and applies pending migrations.
func openSQLite(cfg *config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	db, err := openSQLite(cfg)
	if err != nil {
		return nil, err
	}
	q := store.New(db)
	b := &backends{db: db, queries: q, contents: q, users: q}

	if cfg.UseMongo() {
		ms, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		b.mongo = ms
		b.contents = ms
		b.users = ms
		slog.Info("content backend", "backend", config.BackendMongo, "database", cfg.MongoDatabase)
	} else {
		slog.Info("content backend", "backend", config.BackendSQLite)
	}
	return b, nil
}

func (b *backends) Close(ctx context.Context) {
	if b.mongo != nil {
		if err := b.mongo.Close(ctx); err != nil {
			slog.Error("error closing mongodb connection", "error", err)
		}
	}
	if err := b.db.Close(); err != nil {
		slog.Error("error closing database connection", "error", err)
	}
}

// seed creates the super-admin and any missing starter sections.
func (b *backends) seed(ctx context.Context, cfg *config.Config) (store.SeedResult, error) {
	res, err := store.Seed(ctx, b.users, b.contents, cfg.SuperAdminEmail)
	if err != nil {
		return res, fmt.Errorf("seeding database: %w", err)
	}
	return res, nil
}
