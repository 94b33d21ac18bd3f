// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olegiv/chapel-cms/internal/auth"
	"github.com/olegiv/chapel-cms/internal/config"
	"github.com/olegiv/chapel-cms/internal/model"
	"github.com/olegiv/chapel-cms/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var (
	userName     string
	userEmail    string
	userRole     string
	userPassword string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: "Create an account without signing in. When --password is empty a " +
		"random password is generated and printed.",
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address (required)")
	userCreateCmd.Flags().StringVar(&userRole, "role", model.RoleEditor, "role: editor or admin")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	_ = userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
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

	users := service.NewUserService(service.UserServiceConfig{
		Users:           b.users,
		Events:          service.NewEventService(b.queries),
		SuperAdminEmail: cfg.SuperAdminEmail,
	})

	password := userPassword
	generated := password == ""
	if generated {
		if password, err = auth.GenerateTemporaryPassword(); err != nil {
			return err
		}
	}

	name := userName
	if name == "" {
		name = userEmail
	}
	profile, err := users.CreateUser(ctx, name, userEmail, userRole, password)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid account: %v", verr.Fields)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s %s (%s)\n", profile.Role, profile.Email, profile.ID)
	if generated {
		fmt.Fprintf(out, "Password: %s\n", password)
	}
	return nil
}
