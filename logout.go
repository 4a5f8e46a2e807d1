package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/graph"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved credential for the configured account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := cliContextFrom(cmd.Context())

			if cc.Cfg.TokenPath == "" {
				return fmt.Errorf("logout: no account is configured")
			}

			if err := graph.Logout(cc.Cfg.TokenPath, cc.Logger); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			cc.Statusf("Credential removed from %s.\n", cc.Cfg.TokenPath)

			return nil
		},
	}
}
