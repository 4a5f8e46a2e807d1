package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/config"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

func newFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage the remote/local folder pairs this account syncs",
	}

	cmd.AddCommand(newFolderAddCmd())
	cmd.AddCommand(newFolderRemoveCmd())
	cmd.AddCommand(newFolderListCmd())

	return cmd
}

func newFolderAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <remote-path> <local-dir>",
		Short: "Add a folder pair to sync",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := cliContextFrom(cmd.Context())
			cfg := cc.Cfg

			remote := pathkey.Canonical(args[0]).Display()
			local := args[1]

			for _, f := range cfg.Folders {
				if f.Remote == remote {
					return fmt.Errorf("folder add: %s is already mapped to %s", remote, f.Local)
				}
			}

			cfg.Folders = append(cfg.Folders, config.Folder{Remote: remote, Local: local})

			if err := config.Save(cc.ConfigPath, cfg); err != nil {
				return fmt.Errorf("folder add: %w", err)
			}

			cc.Statusf("Added %s <-> %s\n", remote, local)

			return nil
		},
	}
}

func newFolderRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <remote-path>",
		Short: "Remove a folder pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := cliContextFrom(cmd.Context())
			cfg := cc.Cfg

			target := pathkey.Canonical(args[0]).Display()

			kept := cfg.Folders[:0]
			found := false

			for _, f := range cfg.Folders {
				if f.Remote == target {
					found = true
					continue
				}

				kept = append(kept, f)
			}

			if !found {
				return fmt.Errorf("folder remove: %s is not mapped", target)
			}

			cfg.Folders = kept

			if err := config.Save(cc.ConfigPath, cfg); err != nil {
				return fmt.Errorf("folder remove: %w", err)
			}

			cc.Statusf("Removed %s\n", target)

			return nil
		},
	}
}

func newFolderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured folder pairs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := cliContextFrom(cmd.Context())

			rows := make([][]string, 0, len(cc.Cfg.Folders))
			for _, f := range cc.Cfg.Folders {
				rows = append(rows, []string{f.Remote, f.Local})
			}

			printTable(os.Stdout, []string{"REMOTE", "LOCAL"}, rows)

			return nil
		},
	}
}
