// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the havend CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "havend",
		Short: "Haven account service",
		Long: `havend is the account service for the Haven wellness companion.
It registers identities, verifies credentials, and issues the session
tokens the mobile client presents to downstream services.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())

	return cmd
}
