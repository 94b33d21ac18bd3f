// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command chapel runs the church site content manager.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "chapel",
	Short: "Chapel - content manager for a static church website",
	Long: "Chapel stores the editable sections of a static church website, serves the " +
		"admin editor and JSON API, and patches the stored content into the site's HTML pages.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env files are optional; the environment wins over them.
		if envFile != "" {
			_ = godotenv.Load(envFile)
			return
		}
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file to load (default: .env)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
