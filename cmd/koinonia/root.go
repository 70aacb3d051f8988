// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Koinonia CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "koinonia",
		Short: "Koinonia - a church community platform",
		Long: `Koinonia is a social platform for church communities with
verified membership, bilateral connections, a shared feed, and
community moderation.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
