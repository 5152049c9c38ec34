// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the user-service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user-service",
		Short: "Player identity and session issuance service",
		Long: `user-service exchanges identity-provider proof for game accounts
and session tokens, and serves the authenticated profile API.`,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
