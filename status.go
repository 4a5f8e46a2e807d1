package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured account, drive, folder pairs, and unresolved conflict count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()
	cfg := cc.Cfg

	fmt.Printf("Account:  %s\n", nonEmpty(cfg.Account, "(none — run `drivesync login`)"))
	fmt.Printf("Drive:    %s\n", nonEmpty(cfg.Drive, "-"))
	fmt.Printf("Config:   %s\n", cc.ConfigPath)
	fmt.Printf("Database: %s\n", nonEmpty(cfg.DBPath, "-"))
	fmt.Println()

	fmt.Println("Folders:")
	if len(cfg.Folders) == 0 {
		fmt.Println("  (none — run `drivesync folder add`)")
	} else {
		rows := make([][]string, 0, len(cfg.Folders))
		for _, f := range cfg.Folders {
			rows = append(rows, []string{f.Remote, f.Local})
		}

		printTable(os.Stdout, []string{"REMOTE", "LOCAL"}, rows)
	}

	if cfg.Account == "" || cfg.DBPath == "" {
		return nil
	}

	metaStore, err := store.Open(ctx, cfg.DBPath, cc.Logger)
	if err != nil {
		return fmt.Errorf("status: opening metadata store: %w", err)
	}
	defer metaStore.Close()

	hashed := accountid.Hash(cfg.Account)

	conflicts, err := metaStore.GetUnresolvedConflicts(ctx, hashed)
	if err != nil {
		return fmt.Errorf("status: listing conflicts: %w", err)
	}

	fmt.Printf("\nUnresolved conflicts: %d\n", len(conflicts))

	return nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
