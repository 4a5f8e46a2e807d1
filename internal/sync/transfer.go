package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
	"github.com/arwynfr/drivesync/pkg/quickxorhash"
)

// defaultTransferPermits is the per-direction worker count used unless the
// caller overrides it; a user-supplied value below 1 is clamped to 1
// (spec.md §4.7).
const defaultTransferPermits = 3

// batchFlushSize is how many completed SyncRecords accumulate before being
// flushed to the MetadataStore in one atomic call.
const batchFlushSize = 50

// partialSuffix marks an in-progress download so a crash never leaves a
// truncated file under its real name.
const partialSuffix = ".partial"

// computeQuickXorHash streams a local file through the QuickXorHash
// algorithm and returns its base64 digest, matching the encoding the Graph
// API uses in Item.QuickXorHash.
func computeQuickXorHash(fs localfs.LocalFS, root, relPath string) (string, error) {
	r, err := fs.Open(root, relPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := quickxorhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("sync: quickxorhash %s: %w", relPath, err)
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// TransferJob is one planned upload or download, resolved to both its
// canonical remote path and its on-disk location.
type TransferJob struct {
	Path      pathkey.Key
	LocalRoot string
	LocalRel  string
	// RemoteItemID is empty for an upload of a brand-new file.
	RemoteItemID string
}

// TransferOutcome reports what happened to one TransferJob.
type TransferOutcome struct {
	Job     TransferJob
	Record  SyncRecord
	Err     error
	Skipped bool
}

// TransferExecutor runs the upload and download queues from a Reconciler
// Plan through bounded-parallel worker pools, one pool per direction
// (spec.md §4.7). Completed records are batched and flushed to the
// MetadataStore rather than written one at a time.
type TransferExecutor struct {
	fs      localfs.LocalFS
	client  RemoteDriveClient
	store   MetadataStore
	logger  *slog.Logger
	permits int

	mu         sync.Mutex
	aggregator *ProgressAggregator
	onProgress func(bytesCompleted int64)
	bandwidth  *BandwidthLimiter
}

// SetBandwidthLimiter installs a rate limiter shared across every download
// worker; uploads are not throttled (see upload). Passing nil removes
// throttling.
func (e *TransferExecutor) SetBandwidthLimiter(bl *BandwidthLimiter) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bandwidth = bl
}

// NewTransferExecutor creates a TransferExecutor. permits <= 0 is clamped to
// defaultTransferPermits.
func NewTransferExecutor(fs localfs.LocalFS, client RemoteDriveClient, store MetadataStore, permits int, logger *slog.Logger) *TransferExecutor {
	if permits <= 0 {
		permits = defaultTransferPermits
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &TransferExecutor{
		fs:         fs,
		client:     client,
		store:      store,
		logger:     logger,
		permits:    permits,
		aggregator: NewProgressAggregator(),
	}
}

// OnProgress registers a callback invoked (under the executor's lock) every
// time a byte-progress sample is observed, letting a caller feed live
// throughput into a Snapshot without polling.
func (e *TransferExecutor) OnProgress(fn func(bytesCompleted int64)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.onProgress = fn
}

// Run executes uploads and downloads concurrently (each direction has its
// own bounded pool) and returns every outcome. A job failure is recorded as
// a Failed SyncRecord rather than aborting the batch: retries happen on the
// next session only (spec.md §4.7, no in-session retry).
func (e *TransferExecutor) Run(ctx context.Context, account accountid.Hashed, uploads, downloads []TransferJob) ([]TransferOutcome, error) {
	var (
		allOutcomes []TransferOutcome
		mu          sync.Mutex
	)

	collect := func(outcomes []TransferOutcome) {
		mu.Lock()
		defer mu.Unlock()
		allOutcomes = append(allOutcomes, outcomes...)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		outcomes := e.runPool(groupCtx, account, uploads, e.upload)
		collect(outcomes)
		return nil
	})

	group.Go(func() error {
		outcomes := e.runPool(groupCtx, account, downloads, e.download)
		collect(outcomes)
		return nil
	})

	if err := group.Wait(); err != nil {
		return allOutcomes, err
	}

	return allOutcomes, nil
}

type transferFunc func(ctx context.Context, account accountid.Hashed, job TransferJob) (SyncRecord, error)

// runPool fans jobs out across e.permits workers, flushing completed
// records in batches of batchFlushSize as they land so memory use doesn't
// grow with a large plan.
func (e *TransferExecutor) runPool(ctx context.Context, account accountid.Hashed, jobs []TransferJob, fn transferFunc) []TransferOutcome {
	if len(jobs) == 0 {
		return nil
	}

	jobCh := make(chan TransferJob)
	outCh := make(chan TransferOutcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < e.permits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				record, err := fn(ctx, account, job)
				outCh <- TransferOutcome{Job: job, Record: record, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outCh)
	}()

	var (
		outcomes []TransferOutcome
		pending  []SyncRecord
	)

	for outcome := range outCh {
		outcomes = append(outcomes, outcome)

		if outcome.Err == nil {
			pending = append(pending, outcome.Record)
		}

		if len(pending) >= batchFlushSize {
			if err := e.store.SaveBatch(ctx, pending); err != nil {
				e.logger.Warn("transfer: batch flush failed", "error", err)
			}

			pending = nil
		}
	}

	if len(pending) > 0 {
		if err := e.store.SaveBatch(ctx, pending); err != nil {
			e.logger.Warn("transfer: final batch flush failed", "error", err)
		}
	}

	return outcomes
}

func (e *TransferExecutor) upload(ctx context.Context, account accountid.Hashed, job TransferJob) (SyncRecord, error) {
	info, err := e.fs.Stat(job.LocalRoot, job.LocalRel)
	if err != nil {
		return SyncRecord{}, fmt.Errorf("transfer: stat %s: %w", job.Path.Display(), err)
	}

	hash, err := localfs.HashFile(e.fs, job.LocalRoot, job.LocalRel)
	if err != nil {
		return e.failedRecord(account, job, err)
	}

	reader, err := e.fs.Open(job.LocalRoot, job.LocalRel)
	if err != nil {
		return e.failedRecord(account, job, err)
	}
	defer reader.Close()

	progress := func(n int64) {
		e.observe(n)
	}

	// Not wrapped with wrapReader: RemoteDriveClient.Upload requires the
	// source to implement io.ReaderAt for the resumable-upload protocol, a
	// capability rateLimitedReader doesn't preserve. Download is throttled
	// instead; upload throughput is bounded only by e.permits.
	item, err := e.client.Upload(ctx, account.String(), job.Path.Display(), reader, info.Size, progress)
	if err != nil {
		return e.failedRecord(account, job, err)
	}

	if err := e.fs.SetMtime(job.LocalRoot, job.LocalRel, item.LastModifiedUTC); err != nil {
		e.logger.Warn("transfer: failed to set local mtime after upload", "path", job.Path.Display(), "error", err)
	}

	return SyncRecord{
		Account:       account,
		RemoteItemID:  item.ID,
		Path:          job.Path,
		SizeBytes:     item.Size,
		MtimeUTC:      item.LastModifiedUTC,
		CTag:          item.CTag,
		ETag:          item.ETag,
		LocalHash:     hash,
		Status:        StatusSynced,
		LastDirection: DirectionUpload,
		IsSelected:    true,
	}, nil
}

func (e *TransferExecutor) download(ctx context.Context, account accountid.Hashed, job TransferJob) (SyncRecord, error) {
	partialRel := job.LocalRel + partialSuffix

	writer, err := newTrackingWriter(e.fs, job.LocalRoot, partialRel, e.observe)
	if err != nil {
		return e.failedRecord(account, job, err)
	}

	limited := wrapWriter(e.bandwidth, ctx, writer)

	downloadErr := e.client.Download(ctx, account.String(), job.RemoteItemID, limited)
	closeErr := writer.Close()

	if downloadErr != nil {
		return e.failedRecord(account, job, downloadErr)
	}
	if closeErr != nil {
		return e.failedRecord(account, job, closeErr)
	}

	if err := e.fs.Rename(job.LocalRoot, partialRel, job.LocalRel); err != nil {
		return e.failedRecord(account, job, err)
	}

	hash, err := localfs.HashFile(e.fs, job.LocalRoot, job.LocalRel)
	if err != nil {
		return e.failedRecord(account, job, err)
	}

	item, err := e.client.GetItem(ctx, account.String(), job.RemoteItemID)
	if err != nil {
		return e.failedRecord(account, job, err)
	}

	if err := e.fs.SetMtime(job.LocalRoot, job.LocalRel, item.LastModifiedUTC); err != nil {
		e.logger.Warn("transfer: failed to set local mtime after download", "path", job.Path.Display(), "error", err)
	}

	e.verifyDownloadHash(item, job)

	return SyncRecord{
		Account:       account,
		RemoteItemID:  item.ID,
		Path:          job.Path,
		SizeBytes:     item.Size,
		MtimeUTC:      item.LastModifiedUTC,
		CTag:          item.CTag,
		ETag:          item.ETag,
		LocalHash:     hash,
		Status:        StatusSynced,
		LastDirection: DirectionDownload,
		IsSelected:    true,
	}, nil
}

// verifyDownloadHash corroborates a freshly downloaded file against the
// content hash the service reported, when the service reported a
// QuickXorHash (the common case for personal OneDrive accounts; the SHA-256
// recorded as LocalHash has no comparable remote counterpart there). A
// mismatch never fails the transfer — it is logged so a corrupt download
// shows up in logs rather than silently landing as StatusSynced.
func (e *TransferExecutor) verifyDownloadHash(item Item, job TransferJob) {
	if item.RemoteHashAlgo != HashAlgoQuickXor || item.RemoteHash == "" {
		return
	}

	got, err := computeQuickXorHash(e.fs, job.LocalRoot, job.LocalRel)
	if err != nil {
		e.logger.Warn("transfer: could not verify quickxorhash", "path", job.Path.Display(), "error", err)
		return
	}

	if got != item.RemoteHash {
		e.logger.Warn("transfer: downloaded content hash mismatch", "path", job.Path.Display(),
			"remote_hash", item.RemoteHash, "local_hash", got)
	}
}

func (e *TransferExecutor) failedRecord(account accountid.Hashed, job TransferJob, cause error) (SyncRecord, error) {
	e.logger.Warn("transfer: job failed", "path", job.Path.Display(), "error", cause)

	return SyncRecord{
		Account:      account,
		RemoteItemID: job.RemoteItemID,
		Path:         job.Path,
		Status:       StatusFailed,
	}, cause
}

func (e *TransferExecutor) observe(n int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.aggregator.Observe(time.Now(), n)

	if e.onProgress != nil {
		e.onProgress(n)
	}
}

// trackingWriter streams downloaded bytes into LocalFS.Write through an
// io.Pipe so byte progress feeds the executor's aggregator as data arrives,
// rather than only once the whole file has landed.
type trackingWriter struct {
	pw      *io.PipeWriter
	done    chan struct{}
	writeFn func(cumulative int64)
	total   int64
	closed  bool
}

func newTrackingWriter(fs localfs.LocalFS, root, relPath string, onWrite func(n int64)) (*trackingWriter, error) {
	pr, pw := io.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = fs.Write(root, relPath, pr)
	}()

	return &trackingWriter{pw: pw, done: done, writeFn: onWrite}, nil
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if n > 0 {
		w.total += int64(n)
		if w.writeFn != nil {
			w.writeFn(w.total)
		}
	}

	return n, err
}

func (w *trackingWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.pw.Close()
	<-w.done

	return err
}
