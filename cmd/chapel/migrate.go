// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/olegiv/chapel-cms/internal/config"
	"github.com/olegiv/chapel-cms/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openForMigrate() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	newLogger(cfg)
	return store.NewDB(cfg.DBPath)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openForMigrate()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return err
	}
	slog.Info("migrations applied successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	db, err := openForMigrate()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := store.MigrateDown(db); err != nil {
		return err
	}
	slog.Info("migration rolled back successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := openForMigrate()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	v, err := store.MigrationVersion(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
