package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/graph"
	"github.com/arwynfr/drivesync/internal/remote"
)

func newDrivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List drives accessible to the configured account's saved credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDrives(cmd)
		},
	}
}

func runDrives(cmd *cobra.Command) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	if cc.Cfg.TokenPath == "" {
		return fmt.Errorf("drives: no account is configured — run `drivesync login` first")
	}

	tokens, err := graph.TokenSourceFromPath(ctx, cc.Cfg.TokenPath, cc.Logger)
	if err != nil {
		return fmt.Errorf("drives: %w", err)
	}

	drives, err := remote.ListDrives(ctx, tokens, cc.Logger)
	if err != nil {
		return fmt.Errorf("drives: %w", err)
	}

	headers := []string{"ID", "NAME", "TYPE", "OWNER", "SELECTED"}
	rows := make([][]string, 0, len(drives))

	for _, d := range drives {
		selected := ""
		if d.ID.Equal(cc.Cfg.DriveID) {
			selected = "*"
		}

		rows = append(rows, []string{d.ID.String(), d.Name, d.DriveType, d.OwnerEmail, selected})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}
