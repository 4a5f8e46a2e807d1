package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	stdpath "path"
	"strings"
	gosync "sync"
	"time"

	"github.com/arwynfr/drivesync/internal/driveid"
	"github.com/arwynfr/drivesync/internal/graph"
	syncpkg "github.com/arwynfr/drivesync/internal/sync"
)

// ErrAccountNotRegistered is returned when a RemoteDriveClient call is made
// for an account that has never been through Register (no drive selected,
// or no stored credential).
var ErrAccountNotRegistered = errors.New("remote: account is not registered")

// ErrUploadSourceNotSeekable is returned when Upload is given a reader that
// does not also support ReadAt — the Graph API's resumable upload protocol
// requires re-reading arbitrary byte ranges on retry.
var ErrUploadSourceNotSeekable = errors.New("remote: upload source does not support io.ReaderAt")

// session holds everything the adapter needs to act on behalf of one
// registered account: the drive it syncs against and a live credential.
type session struct {
	driveID driveid.ID
	tokens  graph.TokenSource
	client  *graph.Client
}

// Client adapts the Microsoft Graph API client (internal/graph) to the
// narrower RemoteDriveClient and AuthProvider capabilities the sync engine
// consumes. One Client instance serves every registered account; each
// account gets its own graph.Client so retry/backoff state and bearer
// tokens never cross account boundaries.
type Client struct {
	mu         gosync.RWMutex
	sessions   map[string]*session
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

// defaultUserAgent identifies this client to the Graph API when the caller
// does not supply one of its own.
const defaultUserAgent = "drivesync/0.1"

// NewClient creates a Client with no registered accounts. Call Register
// once per account (typically right after login or on startup, from the
// saved token file) before issuing any RemoteDriveClient call for it.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		sessions:   make(map[string]*session),
		httpClient: httpClient,
		baseURL:    graph.DefaultBaseURL,
		userAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// Register binds an account id (the same hashed string the sync engine
// passes to every RemoteDriveClient call) to a drive and a token source.
// Calling Register again for an already-registered account replaces its
// session — used when a token is refreshed out-of-band or a new drive is
// selected.
func (c *Client) Register(account string, drive driveid.ID, tokens graph.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[account] = &session{
		driveID: drive,
		tokens:  tokens,
		client:  graph.NewClient(c.baseURL, c.httpClient, tokens, c.logger, c.userAgent),
	}
}

// Unregister drops a registered account's session, e.g. after logout.
func (c *Client) Unregister(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, account)
}

func (c *Client) session(account string) (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[account]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotRegistered, account)
	}

	return s, nil
}

// Token implements syncpkg.AuthProvider by returning the current bearer
// token for the account's registered session. ctx is unused: the
// underlying oauth2 token source was already bound to a long-lived context
// at login time (see internal/graph.Login), matching graph.TokenSource's
// context-free signature.
func (c *Client) Token(_ context.Context, account string) (string, error) {
	s, err := c.session(account)
	if err != nil {
		return "", fmt.Errorf("%w: %w", syncpkg.ErrUnauthenticated, err)
	}

	tok, err := s.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", syncpkg.ErrUnauthenticated, err)
	}

	return tok, nil
}

// Root fetches the account's drive root item.
func (c *Client) Root(ctx context.Context, account string) (syncpkg.Item, error) {
	s, err := c.session(account)
	if err != nil {
		return syncpkg.Item{}, err
	}

	item, err := s.client.GetItem(ctx, s.driveID, "root")
	if err != nil {
		return syncpkg.Item{}, fmt.Errorf("remote: fetching root: %w", err)
	}

	return mapItem(*item), nil
}

// Children lists the immediate children of a folder by item ID.
func (c *Client) Children(ctx context.Context, account, parentID string) ([]syncpkg.Item, error) {
	s, err := c.session(account)
	if err != nil {
		return nil, err
	}

	items, err := s.client.ListChildren(ctx, s.driveID, parentID)
	if err != nil {
		return nil, fmt.Errorf("remote: listing children of %s: %w", parentID, err)
	}

	return mapItems(items), nil
}

// GetItem fetches a single item by ID.
func (c *Client) GetItem(ctx context.Context, account, id string) (syncpkg.Item, error) {
	s, err := c.session(account)
	if err != nil {
		return syncpkg.Item{}, err
	}

	item, err := s.client.GetItem(ctx, s.driveID, id)
	if err != nil {
		return syncpkg.Item{}, fmt.Errorf("remote: fetching item %s: %w", id, err)
	}

	return mapItem(*item), nil
}

// Delta fetches one page of changes. A cursor of "" starts a fresh delta
// walk from the drive root. ErrGone from the Graph API (expired token)
// surfaces as syncpkg.ErrDeltaExpired so the engine knows to fall back to a
// full tree walk.
func (c *Client) Delta(ctx context.Context, account, cursor string) (syncpkg.DeltaPage, error) {
	s, err := c.session(account)
	if err != nil {
		return syncpkg.DeltaPage{}, err
	}

	page, err := s.client.Delta(ctx, s.driveID.String(), cursor)
	if err != nil {
		if errors.Is(err, graph.ErrGone) {
			return syncpkg.DeltaPage{}, syncpkg.ErrDeltaExpired
		}

		return syncpkg.DeltaPage{}, fmt.Errorf("remote: fetching delta page: %w", err)
	}

	if page.DeltaLink != "" {
		return syncpkg.DeltaPage{Items: mapItems(page.Items), NextCursor: page.DeltaLink, Done: true}, nil
	}

	return syncpkg.DeltaPage{Items: mapItems(page.Items), NextCursor: page.NextLink, Done: false}, nil
}

// Download streams an item's content into dest.
func (c *Client) Download(ctx context.Context, account, itemID string, dest io.Writer) error {
	s, err := c.session(account)
	if err != nil {
		return err
	}

	if _, err := s.client.Download(ctx, s.driveID, itemID, dest); err != nil {
		return fmt.Errorf("remote: downloading %s: %w", itemID, err)
	}

	return nil
}

// Upload creates or replaces the item at remotePath with the content read
// from src, choosing simple vs. chunked upload by size. src must also
// implement io.ReaderAt (every caller in this module opens a local file,
// which satisfies this) since the resumable upload protocol re-reads
// arbitrary byte ranges on retry.
func (c *Client) Upload(
	ctx context.Context, account, remotePath string, src io.Reader, size int64, progress syncpkg.ProgressFunc,
) (syncpkg.Item, error) {
	s, err := c.session(account)
	if err != nil {
		return syncpkg.Item{}, err
	}

	content, ok := src.(io.ReaderAt)
	if !ok {
		return syncpkg.Item{}, ErrUploadSourceNotSeekable
	}

	parentID, name, err := c.resolveParent(ctx, s, remotePath)
	if err != nil {
		return syncpkg.Item{}, err
	}

	var graphProgress graph.ProgressFunc
	if progress != nil {
		graphProgress = func(bytesUploaded, _ int64) { progress(bytesUploaded) }
	}

	item, err := s.client.Upload(ctx, s.driveID, parentID, name, content, size, time.Time{}, graphProgress)
	if err != nil {
		return syncpkg.Item{}, fmt.Errorf("remote: uploading %s: %w", remotePath, err)
	}

	return mapItem(*item), nil
}

// resolveParent splits a display path into its parent folder's item ID and
// the file's base name. Root-level files resolve to the "root" item ID
// without an extra round trip.
func (c *Client) resolveParent(ctx context.Context, s *session, remotePath string) (parentID, name string, err error) {
	dir, name := stdpath.Split(remotePath)

	trimmed := strings.Trim(dir, "/")
	if trimmed == "" {
		return "root", name, nil
	}

	parent, err := s.client.GetItemByPath(ctx, s.driveID, trimmed)
	if err != nil {
		return "", "", fmt.Errorf("remote: resolving parent folder %q: %w", trimmed, err)
	}

	return parent.ID, name, nil
}

// Delete removes an item by ID.
func (c *Client) Delete(ctx context.Context, account, itemID string) error {
	s, err := c.session(account)
	if err != nil {
		return err
	}

	if err := s.client.DeleteItem(ctx, s.driveID, itemID); err != nil {
		return fmt.Errorf("remote: deleting %s: %w", itemID, err)
	}

	return nil
}

var (
	_ syncpkg.RemoteDriveClient = (*Client)(nil)
	_ syncpkg.AuthProvider      = (*Client)(nil)
)
