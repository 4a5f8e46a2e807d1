package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// CLIContext bundles the loaded config and logger threaded through every
// command via the cobra command context.
type CLIContext struct {
	Cfg        *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Quiet      bool
}

// cliContextKey is the context key CLIContext is stored under.
type cliContextKey struct{}

// cliContextFrom extracts the CLIContext a PersistentPreRunE stored on the
// command context. Every RunE handler in this tree relies on it having been
// set — a nil return here is always a programmer error in command wiring.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

// Statusf prints a progress message to stderr unless --quiet was passed.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// httpClientTimeout bounds metadata calls (listing, deltas, drive lookups);
// transfers use transferHTTPClient instead since large files on slow links
// can run well past it.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

func transferHTTPClient() *http.Client {
	return &http.Client{Timeout: 0}
}

// newRootCmd builds the fully-assembled root command with every subcommand
// registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "drivesync",
		Short:         "Bidirectional OneDrive sync client",
		Long:          "A bidirectional OneDrive sync client: reconciles a local directory tree against a drive and transfers the difference.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: "+config.DefaultConfigPath()+")")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show info-level logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "show debug-level logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress progress output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newDrivesCmd())
	cmd.AddCommand(newFolderCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConflictsCmd())

	return cmd
}

// loadCLIContext resolves the config path, loads whatever config exists (or
// DefaultConfig if nothing has been saved yet — login and folder commands
// run against an empty config on first use), and stashes a CLIContext on
// the command's context for every RunE handler to pick up.
func loadCLIContext(cmd *cobra.Command) error {
	logger := buildLogger()

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{Cfg: cfg, ConfigPath: path, Logger: logger, Quiet: flagQuiet}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger builds an slog.Logger from the mutually-exclusive
// --verbose/--debug/--quiet flags. Default level is Warn.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-facing error message and exits non-zero.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
