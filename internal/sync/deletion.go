package sync

import (
	"context"
	"log/slog"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

// DeletionService applies the Reconciler's local- and remote-delete plan
// entries. It is independent of TransferExecutor: a failed deletion is
// logged, its baseline record is still dropped, and no other path is
// blocked (spec.md §4.6 step 6, §7 propagation policy).
type DeletionService struct {
	fs       localfs.LocalFS
	client   RemoteDriveClient
	store    MetadataStore
	logger   *slog.Logger
	localRoot func(pathkey.Key) (root string, rel string, ok bool)
}

// NewDeletionService creates a DeletionService. localRoot resolves a
// canonical path to the (localRoot, relPath) pair needed by LocalFS; it
// returns ok=false for paths outside any selected local folder.
func NewDeletionService(fs localfs.LocalFS, client RemoteDriveClient, store MetadataStore, localRoot func(pathkey.Key) (string, string, bool), logger *slog.Logger) *DeletionService {
	if logger == nil {
		logger = slog.Default()
	}

	return &DeletionService{fs: fs, client: client, store: store, localRoot: localRoot, logger: logger}
}

// DeletionResult reports how many deletions of each kind succeeded.
type DeletionResult struct {
	LocalDeleted  int
	RemoteDeleted int
}

// Apply deletes every path in localDeletes from the local filesystem and
// every path in remoteDeletes from the remote drive, then drops the
// corresponding SyncRecord (or, for dropBaseline paths, just drops the
// record). A failure on one path is logged and skipped; it does not abort
// the others.
func (d *DeletionService) Apply(ctx context.Context, account accountid.Hashed, localDeletes, remoteDeletes, dropBaseline []pathkey.Key, remoteItemIDs map[string]string) DeletionResult {
	var result DeletionResult

	for _, path := range localDeletes {
		if d.deleteLocal(path) {
			result.LocalDeleted++
		}

		d.dropRecord(ctx, account, path)
	}

	for _, path := range remoteDeletes {
		if d.deleteRemote(ctx, account, path, remoteItemIDs[path.Comparable()]) {
			result.RemoteDeleted++
		}

		d.dropRecord(ctx, account, path)
	}

	for _, path := range dropBaseline {
		d.dropRecord(ctx, account, path)
	}

	return result
}

func (d *DeletionService) deleteLocal(path pathkey.Key) bool {
	root, rel, ok := d.localRoot(path)
	if !ok {
		d.logger.Warn("deletion: path not under any selected folder, skipping", "path", path.Display())
		return false
	}

	if err := d.fs.Delete(root, rel); err != nil {
		d.logger.Warn("deletion: local delete failed", "path", path.Display(), "error", err)
		return false
	}

	return true
}

func (d *DeletionService) deleteRemote(ctx context.Context, account accountid.Hashed, path pathkey.Key, itemID string) bool {
	if itemID == "" {
		d.logger.Warn("deletion: no remote item id for path, skipping", "path", path.Display())
		return false
	}

	if err := d.client.Delete(ctx, account.String(), itemID); err != nil {
		d.logger.Warn("deletion: remote delete failed", "path", path.Display(), "error", err)
		return false
	}

	return true
}

func (d *DeletionService) dropRecord(ctx context.Context, account accountid.Hashed, path pathkey.Key) {
	if err := d.store.DeleteSyncRecord(ctx, account, path); err != nil {
		d.logger.Warn("deletion: failed to drop baseline record", "path", path.Display(), "error", err)
	}
}
