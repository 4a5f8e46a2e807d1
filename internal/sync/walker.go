package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arwynfr/drivesync/internal/pathkey"
)

// ErrNotFound is returned by RemoteWalker.Walk when the root path cannot
// be resolved against the remote drive.
var ErrNotFound = errors.New("sync: remote path not found")

// ErrWalkTruncated is returned alongside a partial result set when
// maxFiles is reached before the traversal completes; callers may still
// use the partial RemoteRecord list but must not persist a DeltaCursor
// derived from it.
var ErrWalkTruncated = errors.New("sync: remote walk truncated at file cap")

// RemoteWalker implements the RemoteWalker component: a depth-first,
// folder-recursive traversal of the remote drive used when the
// DeltaProcessor has no usable cursor for a selected folder (spec.md
// §4.4).
type RemoteWalker struct {
	client RemoteDriveClient
	logger *slog.Logger
}

// NewRemoteWalker creates a RemoteWalker over client.
func NewRemoteWalker(client RemoteDriveClient, logger *slog.Logger) *RemoteWalker {
	if logger == nil {
		logger = slog.Default()
	}

	return &RemoteWalker{client: client, logger: logger}
}

// Walk traverses folderPath depth-first and returns every file (non-folder)
// record beneath it. maxFiles of 0 means unbounded. When the cap is hit,
// the partial result is returned together with ErrWalkTruncated.
func (w *RemoteWalker) Walk(ctx context.Context, account, folderPath string, maxFiles int) ([]RemoteRecord, error) {
	root, err := w.resolveRoot(ctx, account, folderPath)
	if err != nil {
		return nil, err
	}

	var out []RemoteRecord

	truncated := w.walkFolder(ctx, account, root.ID, pathkey.Canonical(folderPath), maxFiles, &out)
	if truncated {
		return out, ErrWalkTruncated
	}

	return out, nil
}

func (w *RemoteWalker) resolveRoot(ctx context.Context, account, folderPath string) (Item, error) {
	if folderPath == "" || folderPath == "/" {
		item, err := w.client.Root(ctx, account)
		if err != nil {
			return Item{}, fmt.Errorf("walker: resolve root: %w", err)
		}

		return item, nil
	}

	root, err := w.client.Root(ctx, account)
	if err != nil {
		return Item{}, fmt.Errorf("walker: resolve root: %w", err)
	}

	item, err := w.findByPath(ctx, account, root.ID, pathkey.Canonical(folderPath))
	if err != nil {
		return Item{}, err
	}

	return item, nil
}

// findByPath walks one path segment at a time from parentID, since
// RemoteDriveClient exposes only Children, not a direct path lookup.
func (w *RemoteWalker) findByPath(ctx context.Context, account, parentID string, target pathkey.Key) (Item, error) {
	segments := pathkey.Segments(target)
	current := parentID

	var found Item

	for _, seg := range segments {
		children, err := w.client.Children(ctx, account, current)
		if err != nil {
			return Item{}, fmt.Errorf("walker: list children of %s: %w", current, err)
		}

		match, ok := findChildByName(children, seg)
		if !ok {
			return Item{}, fmt.Errorf("%w: %s", ErrNotFound, target.Display())
		}

		found = match
		current = match.ID
	}

	return found, nil
}

func findChildByName(children []Item, name string) (Item, bool) {
	for _, c := range children {
		if pathkey.EqualSegment(c.Name, name) {
			return c, true
		}
	}

	return Item{}, false
}

// walkFolder recurses depth-first from parentID, appending file records to
// out. Returns true if maxFiles was reached and the traversal stopped
// early.
func (w *RemoteWalker) walkFolder(ctx context.Context, account, parentID string, parentPath pathkey.Key, maxFiles int, out *[]RemoteRecord) bool {
	if ctx.Err() != nil {
		return false
	}

	children, err := w.client.Children(ctx, account, parentID)
	if err != nil {
		w.logger.Warn("walker: listing children failed, eliding subtree", "account", account, "parent", parentID, "error", err)
		return false
	}

	for _, c := range children {
		childPath := pathkey.Join(parentPath, c.Name)

		if c.IsFolder {
			if w.walkFolder(ctx, account, c.ID, childPath, maxFiles, out) {
				return true
			}

			continue
		}

		*out = append(*out, RemoteRecord{
			RemoteItemID: c.ID,
			Path:         childPath,
			SizeBytes:    c.Size,
			MtimeUTC:     c.LastModifiedUTC,
			CTag:         c.CTag,
			ETag:         c.ETag,
			IsFolder:     false,
			IsDeleted:    c.IsDeleted,
		})

		if maxFiles > 0 && len(*out) >= maxFiles {
			return true
		}
	}

	return false
}
