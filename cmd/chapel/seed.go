// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/olegiv/chapel-cms/internal/config"
	"github.com/olegiv/chapel-cms/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the super-admin account and starter content",
	Long: "Seed creates the super-admin account when no users exist and stores the " +
		"starter sections that are missing. Existing sections are never overwritten.",
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	newLogger(cfg)

	ctx := cmd.Context()
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close(ctx)

	res, err := b.seed(ctx, cfg)
	if err != nil {
		return err
	}
	printSeedResult(cmd.OutOrStdout(), cfg, res)
	fmt.Fprintf(cmd.OutOrStdout(), "Sections created: %d\n", res.SectionsCreated)
	return nil
}

// printSeedResult shows the generated super-admin password once. It is
// written to the terminal only, never to the log.
func printSeedResult(out io.Writer, cfg *config.Config, res store.SeedResult) {
	if !res.SuperAdminCreated {
		return
	}
	fmt.Fprintf(out, "Super admin: %s\nTemporary password: %s\n", cfg.SuperAdminEmail, res.TemporaryPassword)
	fmt.Fprintln(out, "The password must be changed at first sign-in.")
}
