package remote

import (
	"context"
	"log/slog"

	"github.com/arwynfr/drivesync/internal/driveid"
	"github.com/arwynfr/drivesync/internal/graph"
)

// LoginDeviceCode runs the OAuth2 device code flow, persists the resulting
// token at tokenPath, and registers the account immediately so callers can
// start issuing RemoteDriveClient calls without a separate Register step.
// display is invoked with the user code and verification URL to show.
func (c *Client) LoginDeviceCode(
	ctx context.Context, account, tokenPath string, drive driveid.ID, display func(graph.DeviceAuth),
) error {
	tokens, err := graph.Login(ctx, tokenPath, display, c.logger)
	if err != nil {
		return err
	}

	c.Register(account, drive, tokens)

	return nil
}

// LoginBrowser runs the authorization code + PKCE flow via a local browser,
// persists the token, and registers the account.
func (c *Client) LoginBrowser(
	ctx context.Context, account, tokenPath string, drive driveid.ID, openURL func(string) error,
) error {
	tokens, err := graph.LoginWithBrowser(ctx, tokenPath, openURL, c.logger)
	if err != nil {
		return err
	}

	c.Register(account, drive, tokens)

	return nil
}

// RestoreSession loads a previously saved token from disk and registers the
// account, without requiring interactive login. Returns graph.ErrNotLoggedIn
// if no token file exists at tokenPath.
func (c *Client) RestoreSession(ctx context.Context, account, tokenPath string, drive driveid.ID) error {
	tokens, err := graph.TokenSourceFromPath(ctx, tokenPath, c.logger)
	if err != nil {
		return err
	}

	c.Register(account, drive, tokens)

	return nil
}

// Logout removes the persisted token file and drops the in-memory session.
func (c *Client) Logout(account, tokenPath string) error {
	c.Unregister(account)

	return graph.Logout(tokenPath, c.logger)
}

// ListDrives returns every drive accessible to the currently registered
// account's credential, for drive-selection flows (internal/remote has no
// account registered yet at this point beyond its token, so this method
// takes the token source directly rather than an account id).
func ListDrives(ctx context.Context, tokens graph.TokenSource, logger *slog.Logger) ([]graph.Drive, error) {
	gc := graph.NewClient(graph.DefaultBaseURL, nil, tokens, logger, "")

	return gc.Drives(ctx)
}
