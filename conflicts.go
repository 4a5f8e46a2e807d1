package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/pathkey"
	"github.com/arwynfr/drivesync/internal/store"
)

func newConflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List and resolve paths both sides changed since the last sync",
	}

	cmd.AddCommand(newConflictsListCmd())
	cmd.AddCommand(newConflictsResolveCmd())

	return cmd
}

func newConflictsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unresolved conflicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := cliContextFrom(cmd.Context())
			ctx := cmd.Context()

			metaStore, err := store.Open(ctx, cc.Cfg.DBPath, cc.Logger)
			if err != nil {
				return fmt.Errorf("conflicts: opening metadata store: %w", err)
			}
			defer metaStore.Close()

			conflicts, err := metaStore.GetUnresolvedConflicts(ctx, accountid.Hash(cc.Cfg.Account))
			if err != nil {
				return fmt.Errorf("conflicts: %w", err)
			}

			if len(conflicts) == 0 {
				fmt.Println("No unresolved conflicts.")
				return nil
			}

			rows := make([][]string, 0, len(conflicts))
			for _, c := range conflicts {
				rows = append(rows, []string{
					c.Path.Display(),
					formatSize(c.LocalSize), formatTime(c.LocalMtime),
					formatSize(c.RemoteSize), formatTime(c.RemoteMtime),
				})
			}

			printTable(os.Stdout, []string{"PATH", "LOCAL SIZE", "LOCAL MTIME", "REMOTE SIZE", "REMOTE MTIME"}, rows)

			return nil
		},
	}
}

func newConflictsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <remote-path> <keep-local|keep-remote>",
		Short: "Mark a conflict resolved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflictsResolve(cmd, args[0], args[1])
		},
	}
}

func runConflictsResolve(cmd *cobra.Command, rawPath, resolution string) error {
	if resolution != "keep-local" && resolution != "keep-remote" {
		return fmt.Errorf("conflicts resolve: resolution must be keep-local or keep-remote, got %q", resolution)
	}

	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	metaStore, err := store.Open(ctx, cc.Cfg.DBPath, cc.Logger)
	if err != nil {
		return fmt.Errorf("conflicts resolve: opening metadata store: %w", err)
	}
	defer metaStore.Close()

	account := accountid.Hash(cc.Cfg.Account)

	conflicts, err := metaStore.GetUnresolvedConflicts(ctx, account)
	if err != nil {
		return fmt.Errorf("conflicts resolve: %w", err)
	}

	target := pathkey.Canonical(rawPath)

	for _, c := range conflicts {
		if !c.Path.Equal(target) {
			continue
		}

		if err := metaStore.ResolveConflict(ctx, c.ID, resolution); err != nil {
			return fmt.Errorf("conflicts resolve: %w", err)
		}

		cc.Statusf("Resolved %s as %s.\n", c.Path.Display(), resolution)
		cc.Statusf("Note: the next `drivesync sync` round re-detects this conflict unless one side's file is changed to match the other.\n")

		return nil
	}

	return fmt.Errorf("conflicts resolve: no unresolved conflict at %s", target.Display())
}
