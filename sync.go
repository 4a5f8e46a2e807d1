package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/config"
	"github.com/arwynfr/drivesync/internal/graph"
	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
	"github.com/arwynfr/drivesync/internal/remote"
	"github.com/arwynfr/drivesync/internal/store"
	syncpkg "github.com/arwynfr/drivesync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation round against every configured folder pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "override the big-delete safety guard for this round")

	return cmd
}

func runSync(cmd *cobra.Command, force bool) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()
	cfg := cc.Cfg

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	metaStore, err := store.Open(ctx, cfg.DBPath, cc.Logger)
	if err != nil {
		return fmt.Errorf("sync: opening metadata store: %w", err)
	}
	defer metaStore.Close()

	tokens, err := graph.TokenSourceFromPath(ctx, cfg.TokenPath, cc.Logger)
	if err != nil {
		if errors.Is(err, graph.ErrNotLoggedIn) {
			return fmt.Errorf("sync: not logged in — run `drivesync login` first")
		}

		return fmt.Errorf("sync: %w", err)
	}

	hashed := accountid.Hash(cfg.Account)

	client := remote.NewClient(transferHTTPClient(), cc.Logger)
	client.Register(hashed.String(), cfg.DriveID, tokens)

	guard := syncpkg.DefaultBigDeleteGuard()
	guard.MinItems = cfg.BigDeleteMinItems
	guard.MaxCount = cfg.BigDeleteMaxCount
	guard.MaxPercentage = cfg.BigDeleteMaxPercentage
	guard.Force = force

	engine := syncpkg.NewEngine(localfs.NewOSFileSystem(), client, metaStore, guard, cfg.TransferPermits, cc.Logger)

	if bl, blErr := syncpkg.NewBandwidthLimiter(cfg.BandwidthLimit, cc.Logger); blErr != nil {
		cc.Logger.Warn("sync: ignoring invalid bandwidth_limit", "error", blErr)
	} else if bl != nil {
		engine.SetBandwidthLimiter(bl)
	}

	folders := make([]syncpkg.FolderMapping, 0, len(cfg.Folders))
	for _, f := range cfg.Folders {
		folders = append(folders, syncpkg.FolderMapping{
			RemoteFolder: pathkey.Canonical(f.Remote),
			LocalRoot:    f.Local,
		})
	}

	coordinator := syncpkg.NewSessionCoordinator(metaStore, func(accountid.Hashed) bool { return cfg.DetailedLogging }, cc.Logger)

	stopProgress := watchProgress(coordinator.Sink(hashed), cc.Quiet)
	defer stopProgress()

	runErr := coordinator.Start(ctx, hashed, func(runCtx context.Context, sink *syncpkg.ProgressSink) (syncpkg.SessionTotals, error) {
		return engine.RunOnce(runCtx, hashed, cfg.DriveID.String(), folders, sink)
	})

	if runErr != nil {
		if errors.Is(runErr, syncpkg.ErrSessionAlreadyRunning) {
			return fmt.Errorf("sync: a session is already running for this account")
		}

		return fmt.Errorf("sync: %w", runErr)
	}

	return nil
}

// watchProgress subscribes to sink and drives a terminal progress bar until
// the session reaches a terminal Snapshot.Status. It returns immediately;
// call the returned function once the session completes to stop the
// subscription and finalize the bar. Color and the bar itself are both
// skipped when stderr isn't a terminal, matching the teacher's auto-disable
// for piped output.
func watchProgress(sink *syncpkg.ProgressSink, quiet bool) func() {
	ch, unsubscribe := sink.Subscribe()

	if quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		go func() {
			for range ch {
			}
		}()

		return unsubscribe
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		var bar *progressbar.ProgressBar

		for snap := range ch {
			if snap.TotalBytes > 0 && bar == nil {
				bar = progressbar.NewOptions64(snap.TotalBytes,
					progressbar.OptionSetDescription("syncing"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowBytes(true),
					progressbar.OptionClearOnFinish(),
				)
			}

			if bar != nil {
				bar.Set64(snap.CompletedBytes)
			}

			if isTerminalStatus(snap.Status) {
				finishLine(snap)
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func isTerminalStatus(status syncpkg.SessionStatus) bool {
	switch status {
	case syncpkg.SessionCompleted, syncpkg.SessionFailed, syncpkg.SessionPaused:
		return true
	default:
		return false
	}
}

func finishLine(snap syncpkg.Snapshot) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	switch snap.Status {
	case syncpkg.SessionCompleted:
		fmt.Fprintf(os.Stderr, "%s %d uploaded/downloaded, %d deleted, %d conflicts, %s transferred\n",
			green("done"), snap.CompletedFiles, snap.FilesDeleted, snap.ConflictsDetected, formatSize(snap.CompletedBytes))
	case syncpkg.SessionFailed:
		fmt.Fprintf(os.Stderr, "%s sync round failed\n", red("failed"))
	case syncpkg.SessionPaused:
		fmt.Fprintf(os.Stderr, "%s sync round cancelled\n", yellow("paused"))
	}
}
