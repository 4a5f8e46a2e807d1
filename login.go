package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/config"
	"github.com/arwynfr/drivesync/internal/driveid"
	"github.com/arwynfr/drivesync/internal/graph"
	"github.com/arwynfr/drivesync/internal/remote"
)

func newLoginCmd() *cobra.Command {
	var account string
	var browser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate an account and select the drive to sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if account == "" {
				return fmt.Errorf("login: --account is required")
			}

			return runLogin(cmd, account, browser)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account id to authenticate (e.g. an email address)")
	cmd.Flags().BoolVar(&browser, "browser", false, "use the browser authorization-code flow instead of device code")

	return cmd
}

func runLogin(cmd *cobra.Command, account string, browser bool) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	cfg := cc.Cfg
	if cfg.TokenPath == "" {
		cfg.TokenPath = config.DefaultTokenPath()
	}

	if cfg.DBPath == "" {
		cfg.DBPath = config.DefaultDBPath()
	}

	var tokens graph.TokenSource
	var err error

	if browser {
		tokens, err = graph.LoginWithBrowser(ctx, cfg.TokenPath, openBrowserURL, cc.Logger)
	} else {
		tokens, err = graph.Login(ctx, cfg.TokenPath, displayDeviceAuth, cc.Logger)
	}

	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cc.Statusf("Authenticated. Fetching available drives...\n")

	drives, err := remote.ListDrives(ctx, tokens, cc.Logger)
	if err != nil {
		return fmt.Errorf("login: listing drives: %w", err)
	}

	if len(drives) == 0 {
		return fmt.Errorf("login: account has no accessible drives")
	}

	chosen, err := chooseDrive(cc, drives)
	if err != nil {
		return err
	}

	canonical, err := canonicalizeDrive(chosen)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	client := remote.NewClient(defaultHTTPClient(), cc.Logger)
	hashed := accountid.Hash(account)
	client.Register(hashed.String(), chosen.ID, tokens)

	cfg.Account = account
	cfg.Drive = canonical.String()
	cfg.DriveID = chosen.ID

	if err := config.Save(cc.ConfigPath, cfg); err != nil {
		return fmt.Errorf("login: saving config: %w", err)
	}

	cc.Statusf("Selected drive %s (%s). Config saved to %s.\n", canonical.String(), chosen.Name, cc.ConfigPath)
	cc.Statusf("Add folder pairs with `drivesync folder add` before running `drivesync sync`.\n")

	return nil
}

// displayDeviceAuth prints the device-code prompt the way the teacher's
// integration bootstrap did, expanded with a blank line for readability.
func displayDeviceAuth(da graph.DeviceAuth) {
	fmt.Fprintf(os.Stderr, "\nTo sign in, go to %s and enter code: %s\n\n", da.VerificationURI, da.UserCode)
}

func openBrowserURL(url string) error {
	fmt.Fprintf(os.Stderr, "Open this URL to continue: %s\n", url)
	return nil
}

// chooseDrive prompts interactively when more than one drive is available;
// a single drive is selected automatically.
func chooseDrive(cc *CLIContext, drives []graph.Drive) (graph.Drive, error) {
	if len(drives) == 1 {
		return drives[0], nil
	}

	fmt.Fprintln(os.Stderr, "Multiple drives are available:")

	for i, d := range drives {
		fmt.Fprintf(os.Stderr, "  [%d] %s  (%s, owner: %s)\n", i+1, d.Name, d.DriveType, d.OwnerEmail)
	}

	fmt.Fprint(os.Stderr, "Select a drive number: ")

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return graph.Drive{}, fmt.Errorf("login: reading selection: %w", err)
	}

	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || idx < 1 || idx > len(drives) {
		return graph.Drive{}, fmt.Errorf("login: invalid selection %q", strings.TrimSpace(line))
	}

	return drives[idx-1], nil
}

// canonicalizeDrive maps a graph.Drive's loose DriveType string onto the
// structured CanonicalID used for display and config validation. SharePoint
// drives have no distinct site/library in graph.Drive, so both fall back to
// the drive's display name.
func canonicalizeDrive(d graph.Drive) (driveid.CanonicalID, error) {
	switch strings.ToLower(d.DriveType) {
	case "personal":
		return driveid.Construct(driveid.DriveTypePersonal, d.OwnerEmail)
	case "business":
		return driveid.Construct(driveid.DriveTypeBusiness, d.OwnerEmail)
	default:
		return driveid.ConstructSharePoint(d.OwnerEmail, d.Name, d.Name)
	}
}
