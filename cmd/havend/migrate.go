// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/havenwell/haven/internal/config"
	"github.com/havenwell/haven/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with up/down/version.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back, or inspect schema migrations against the PostgreSQL database.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations (drops all tables and data)",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			RunE:  runMigrateVersion,
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE:  runMigrateStatus,
		},
	)

	return cmd
}

// getDatabaseURL resolves the connection string the same way serve
// does: the --config file (or XDG default), then the DATABASE_URL
// environment override.
func getDatabaseURL() (string, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database_url is required (or set %s)", config.EnvDatabaseURL)
	}
	return cfg.DatabaseURL, nil
}

func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	databaseURL, err := getDatabaseURL()
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrln("warning: failed to close migrator:", closeErr)
		}
	}()

	return fn(migrator)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		cmd.Println("Applying migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations applied")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		cmd.Println("Rolling back migrations...")
		if err := m.Down(); err != nil {
			return err
		}
		cmd.Println("Migrations rolled back")
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if dirty {
			cmd.Printf("Version: %d (dirty, manual intervention required)\n", version)
			return nil
		}
		cmd.Printf("Version: %d\n", version)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m *store.Migrator) error {
		applied, err := m.AppliedMigrations()
		if err != nil {
			return err
		}
		pending, err := m.PendingMigrations()
		if err != nil {
			return err
		}

		cmd.Printf("Applied: %d\n", len(applied))
		for _, v := range applied {
			cmd.Printf("  %06d\n", v)
		}
		cmd.Printf("Pending: %d\n", len(pending))
		for _, v := range pending {
			cmd.Printf("  %06d\n", v)
		}
		return nil
	})
}
