// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/koinonia/koinonia/internal/config"
	"github.com/koinonia/koinonia/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect schema migrations on the PostgreSQL database.`,
	}

	cmd.PersistentFlags().String("database.url", config.Defaults().Database.URL, "PostgreSQL connection URL")

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

// migratorFor loads configuration for a migrate subcommand and opens a
// migrator against the configured database.
func migratorFor(cmd *cobra.Command) (*store.Migrator, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return store.NewMigrator(cfg.Database.URL)
}

func closeMigrator(m *store.Migrator) {
	if err := m.Close(); err != nil {
		slog.Warn("error closing migrator", "error", err)
	}
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			cmd.Println("Applying migrations...")
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the most recent migration. With --all, roll back every
migration, dropping all tables and their data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if all {
				cmd.Println("Rolling back all migrations...")
				if err := m.Down(); err != nil {
					return err
				}
			} else {
				cmd.Println("Rolling back one migration...")
				if err := m.Steps(-1); err != nil {
					return err
				}
			}
			cmd.Println("Rollback complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				cmd.Println("No migrations applied")
				return nil
			}
			if dirty {
				cmd.Printf("Version %d (dirty: a migration failed partway; fix the database and run 'migrate force')\n", version)
				return nil
			}
			cmd.Printf("Version %d\n", version)
			return nil
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "force",
		Short: "Set the migration version without running migrations",
		Long: `Mark the database as being at a specific migration version without
running any migrations. Use only to recover from a dirty state after
repairing the schema by hand.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("version") {
				return oops.Code("INVALID_VERSION").Errorf("--version is required")
			}

			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if err := m.Force(version); err != nil {
				return err
			}
			cmd.Printf("Forced version to %d\n", version)
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "migration version to force")
	return cmd
}
