package sync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

// Engine wires the LocalScanner, DeltaProcessor, RemoteWalker, Reconciler,
// TransferExecutor, and DeletionService into the single RunOnce operation
// that a SessionCoordinator.RunFunc invokes for one account (spec.md §4.6).
type Engine struct {
	fs     localfs.LocalFS
	client RemoteDriveClient

	scanner    *Scanner
	walker     *RemoteWalker
	delta      *DeltaProcessor
	reconciler *Reconciler
	executor   *TransferExecutor
	store      MetadataStore
	logger     *slog.Logger
}

// NewEngine assembles an Engine from its component collaborators.
func NewEngine(fs localfs.LocalFS, client RemoteDriveClient, store MetadataStore, guard BigDeleteGuard, transferPermits int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		fs:         fs,
		client:     client,
		scanner:    NewScanner(fs, logger),
		walker:     NewRemoteWalker(client, logger),
		delta:      NewDeltaProcessor(client, logger),
		reconciler: NewReconciler(guard, logger),
		executor:   NewTransferExecutor(fs, client, store, transferPermits, logger),
		store:      store,
		logger:     logger,
	}
}

// SetBandwidthLimiter installs a shared rate limiter on the engine's
// TransferExecutor, throttling download throughput across every worker.
func (e *Engine) SetBandwidthLimiter(bl *BandwidthLimiter) {
	e.executor.SetBandwidthLimiter(bl)
}

// FolderMapping pairs a selected remote folder with the local directory it
// mirrors. The MetadataStore only remembers which remote folders are
// selected; the local side of the mapping comes from configuration.
type FolderMapping struct {
	RemoteFolder pathkey.Key
	LocalRoot    string
}

// RunOnce performs one full synchronization round for account: scan, delta
// pull (falling back to a full walk on cursor expiry), reconcile, transfer,
// delete, and finally persist the new delta cursor. Callers hand it to
// SessionCoordinator.Start through a RunFunc closure that supplies
// account, driveID and folders.
func (e *Engine) RunOnce(ctx context.Context, account accountid.Hashed, driveID string, folders []FolderMapping, sink *ProgressSink) (SessionTotals, error) {
	var totals SessionTotals

	local, err := e.scanLocal(ctx, account, folders)
	if err != nil {
		return totals, err
	}

	remote, newCursor, err := e.pullRemote(ctx, account, driveID, folders)
	if err != nil {
		return totals, err
	}

	baseline, err := e.loadBaseline(ctx, account)
	if err != nil {
		return totals, err
	}

	plan, err := e.reconciler.Reconcile(ctx, account, local, remote, baseline)
	if err != nil {
		return totals, err
	}

	if err := e.recordConflicts(ctx, plan); err != nil {
		e.logger.Warn("engine: failed to persist a conflict row", "account", account, "error", err)
	}
	totals.ConflictsDetected = len(plan.Conflicts)

	resolver := newLocalPathResolver(folders)

	uploads, downloads := buildTransferJobs(plan, remote, baseline, resolver)

	aggregator := NewProgressAggregator()
	e.executor.OnProgress(func(n int64) {
		aggregator.Observe(time.Now(), n)
		publishTransferProgress(sink, account, aggregator, plan)
	})

	outcomes, err := e.executor.Run(ctx, account, uploads, downloads)
	if err != nil {
		return totals, err
	}

	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}

		totals.TotalBytes += o.Record.SizeBytes

		switch o.Record.LastDirection {
		case DirectionUpload:
			totals.FilesUploaded++
		case DirectionDownload:
			totals.FilesDownloaded++
		}
	}

	remoteItemIDs := buildRemoteItemIDIndex(baseline, remote)
	deletionSvc := NewDeletionService(e.fs, e.client, e.store, resolver, e.logger)

	result := deletionSvc.Apply(ctx, account, plan.LocalDeletes, plan.RemoteDeletes, plan.DropBaseline, remoteItemIDs)
	totals.FilesDeleted = result.LocalDeleted + result.RemoteDeleted

	if newCursor != "" {
		if err := e.store.SaveDeltaCursor(ctx, DeltaCursor{
			Account:        account,
			DriveID:        driveID,
			TokenBlob:      newCursor,
			LastAdvancedAt: time.Now().UTC(),
		}); err != nil {
			e.logger.Warn("engine: failed to persist delta cursor", "account", account, "error", err)
		}
	}

	return totals, nil
}

func (e *Engine) scanLocal(ctx context.Context, account accountid.Hashed, folders []FolderMapping) (map[string]*LocalRecord, error) {
	out := make(map[string]*LocalRecord)

	for _, f := range folders {
		records, err := e.scanner.Scan(ctx, account.String(), f.LocalRoot, f.RemoteFolder)
		if err != nil {
			if errors.Is(err, ErrNosyncGuard) {
				e.logger.Warn("engine: nosync guard present, skipping folder", "account", account, "folder", f.RemoteFolder.Display())
				continue
			}

			return nil, Fatal(err)
		}

		for i := range records {
			out[records[i].Path.Comparable()] = &records[i]
		}
	}

	return out, nil
}

func (e *Engine) pullRemote(ctx context.Context, account accountid.Hashed, driveID string, folders []FolderMapping) (map[string]*RemoteRecord, string, error) {
	cursorRow, _ := e.store.GetDeltaCursor(ctx, account, driveID)

	cursorBlob := ""
	if cursorRow != nil {
		cursorBlob = cursorRow.TokenBlob
	}

	result, err := e.delta.PullAll(ctx, account.String(), cursorBlob, nil)
	if err == nil {
		return result.Records, result.NewCursor, nil
	}

	if !errors.Is(err, ErrDeltaExpired) {
		return nil, "", Fatal(err)
	}

	e.logger.Info("engine: delta cursor expired, rebuilding via full walk", "account", account)

	merged := make(map[string]*RemoteRecord)
	for _, f := range folders {
		records, walkErr := e.walker.Walk(ctx, account.String(), f.RemoteFolder.Display(), 0)
		if walkErr != nil && !errors.Is(walkErr, ErrWalkTruncated) {
			return nil, "", Fatal(walkErr)
		}

		for i := range records {
			merged[records[i].Path.Comparable()] = &records[i]
		}
	}

	// A fresh zero-cursor pull establishes the cursor to resume from next
	// round; its records are redundant with the walk (both reflect current
	// state) and are layered on top rather than discarded, since they carry
	// authoritative cTag/eTag values straight from the delta feed.
	fresh, freshErr := e.delta.PullAll(ctx, account.String(), "", nil)
	if freshErr != nil {
		return merged, "", nil
	}

	for k, v := range fresh.Records {
		merged[k] = v
	}

	return merged, fresh.NewCursor, nil
}

func (e *Engine) loadBaseline(ctx context.Context, account accountid.Hashed) (map[string]*SyncRecord, error) {
	records, err := e.store.ListSyncRecords(ctx, account)
	if err != nil {
		return nil, Fatal(err)
	}

	out := make(map[string]*SyncRecord, len(records))
	for i := range records {
		out[records[i].Path.Comparable()] = &records[i]
	}

	return out, nil
}

func (e *Engine) recordConflicts(ctx context.Context, plan *Plan) error {
	var firstErr error

	for i := range plan.Conflicts {
		plan.Conflicts[i].ID = uuid.NewString()

		if err := e.store.RecordConflict(ctx, plan.Conflicts[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// newLocalPathResolver returns a function mapping a canonical remote path to
// its (localRoot, relPath) pair by finding the longest selected folder that
// is a prefix of it.
func newLocalPathResolver(folders []FolderMapping) func(pathkey.Key) (string, string, bool) {
	return func(path pathkey.Key) (string, string, bool) {
		var best *FolderMapping

		for i := range folders {
			f := &folders[i]
			if isUnderFolder(f.RemoteFolder, path) {
				if best == nil || len(f.RemoteFolder.Display()) > len(best.RemoteFolder.Display()) {
					best = f
				}
			}
		}

		if best == nil {
			return "", "", false
		}

		rel := strings.TrimPrefix(path.Display(), best.RemoteFolder.Display())
		rel = strings.TrimPrefix(rel, "/")

		return best.LocalRoot, rel, true
	}
}

func isUnderFolder(folder, path pathkey.Key) bool {
	if folder.IsRoot() {
		return true
	}

	folderDisplay := strings.ToLower(folder.Display())
	pathDisplay := strings.ToLower(path.Display())

	return pathDisplay == folderDisplay || strings.HasPrefix(pathDisplay, folderDisplay+"/")
}

func buildTransferJobs(plan *Plan, remote map[string]*RemoteRecord, baseline map[string]*SyncRecord, resolver func(pathkey.Key) (string, string, bool)) ([]TransferJob, []TransferJob) {
	var uploads, downloads []TransferJob

	for _, path := range plan.Uploads {
		root, rel, ok := resolver(path)
		if !ok {
			continue
		}

		job := TransferJob{Path: path, LocalRoot: root, LocalRel: rel}
		if b, ok := baseline[path.Comparable()]; ok {
			job.RemoteItemID = b.RemoteItemID
		}

		uploads = append(uploads, job)
	}

	for _, path := range plan.Downloads {
		root, rel, ok := resolver(path)
		if !ok {
			continue
		}

		job := TransferJob{Path: path, LocalRoot: root, LocalRel: rel}
		if r, ok := remote[path.Comparable()]; ok {
			job.RemoteItemID = r.RemoteItemID
		}

		downloads = append(downloads, job)
	}

	return uploads, downloads
}

func buildRemoteItemIDIndex(baseline map[string]*SyncRecord, remote map[string]*RemoteRecord) map[string]string {
	out := make(map[string]string, len(baseline))

	for k, b := range baseline {
		if b.RemoteItemID != "" {
			out[k] = b.RemoteItemID
		}
	}

	for k, r := range remote {
		if r.RemoteItemID != "" {
			out[k] = r.RemoteItemID
		}
	}

	return out
}

func publishTransferProgress(sink *ProgressSink, account accountid.Hashed, aggregator *ProgressAggregator, plan *Plan) {
	if sink == nil {
		return
	}

	sink.Publish(Snapshot{
		Account:       account.String(),
		Status:        SessionRunning,
		TotalFiles:    plan.TotalTransfers(),
		MBPerSec:      aggregator.MBPerSec(),
		LastUpdateUTC: time.Now().UTC(),
	})
}
