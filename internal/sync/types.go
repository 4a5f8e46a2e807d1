// Package sync implements the reconciliation engine, delta pagination
// processor, and transfer executor that make up the synchronization core:
// state management, delta processing, local scanning, conflict detection,
// reconciliation, bounded-parallel transfer, and session coordination.
package sync

import (
	"context"
	"io"
	"time"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

// Status is the lifecycle state of a persisted SyncRecord.
type Status string

// SyncRecord status values.
const (
	StatusSynced          Status = "synced"
	StatusPendingUpload   Status = "pending_upload"
	StatusPendingDownload Status = "pending_download"
	StatusFailed          Status = "failed"
	StatusSyncOnly        Status = "sync_only" // forces next reconciliation to treat remote as changed
)

// Direction records which side of a transfer last wrote a SyncRecord.
type Direction string

// Transfer directions.
const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// DeltaCursor is the remote service's opaque resumption token for one
// account/drive pair. Written atomically after a full delta round; never
// mutated mid-round.
type DeltaCursor struct {
	Account        accountid.Hashed
	DriveID        string
	TokenBlob      string
	LastAdvancedAt time.Time
}

// LocalRecord is produced on demand by the LocalScanner; never persisted
// directly.
type LocalRecord struct {
	Path      pathkey.Key
	SizeBytes int64
	MtimeUTC  time.Time
	Hash      string // SHA-256, hex, uppercase
}

// RemoteRecord is produced by the DeltaProcessor or RemoteWalker.
type RemoteRecord struct {
	RemoteItemID string
	Path         pathkey.Key
	SizeBytes    int64
	MtimeUTC     time.Time
	CTag         string
	ETag         string
	IsFolder     bool
	IsDeleted    bool
}

// SyncRecord is the persisted baseline of last-known-synced state for one
// path. Invariant: if Status == StatusSynced then RemoteItemID, CTag, and
// LocalHash are all populated.
type SyncRecord struct {
	Account       accountid.Hashed
	RemoteItemID  string // empty until the path has a remote counterpart
	Path          pathkey.Key
	SizeBytes     int64
	MtimeUTC      time.Time
	CTag          string
	ETag          string
	LocalHash     string
	Status        Status
	LastDirection Direction
	IsSelected    bool
}

// ConflictRow is a persisted, unresolved-by-default conflict record. At
// most one unresolved row exists per (account, path).
type ConflictRow struct {
	ID           string
	Account      accountid.Hashed
	Path         pathkey.Key
	LocalMtime   time.Time
	RemoteMtime  time.Time
	LocalSize    int64
	RemoteSize   int64
	DetectedUTC  time.Time
	Resolution   string
	ResolvedFlag bool
}

// SessionStatus is the terminal (or in-flight) state of a SessionLog row.
type SessionStatus string

// Session statuses, mirroring SessionCoordinator states.
const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
	SessionFailed    SessionStatus = "failed"
)

// SessionLog is a persisted summary of one sync session.
type SessionLog struct {
	ID                string
	Account           accountid.Hashed
	StartUTC          time.Time
	CompletedUTC      *time.Time
	Status            SessionStatus
	FilesUploaded     int
	FilesDownloaded   int
	FilesDeleted      int
	ConflictsDetected int
	TotalBytes        int64
}

// Outcome is what the ConflictDetector/Reconciler decided for one path.
type Outcome int

// Outcomes produced by ConflictDetector.Classify.
const (
	OutcomeNone Outcome = iota
	OutcomeUpload
	OutcomeDownload
	OutcomeConflict
	OutcomeDeleteRemote
	OutcomeDeleteLocal
	OutcomeDropBaseline
	OutcomeRecordSynced // first-sync match: record as synced without transfer
)

// String renders the outcome for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeUpload:
		return "upload"
	case OutcomeDownload:
		return "download"
	case OutcomeConflict:
		return "conflict"
	case OutcomeDeleteRemote:
		return "delete-remote"
	case OutcomeDeleteLocal:
		return "delete-local"
	case OutcomeDropBaseline:
		return "drop-baseline"
	case OutcomeRecordSynced:
		return "record-synced"
	default:
		return "none"
	}
}

// Plan is the Reconciler's output: action lists ready for the
// TransferExecutor and DeletionService.
type Plan struct {
	Uploads       []pathkey.Key
	Downloads     []pathkey.Key
	Conflicts     []ConflictRow
	LocalDeletes  []pathkey.Key
	RemoteDeletes []pathkey.Key
	DropBaseline  []pathkey.Key
}

// TotalTransfers returns the number of upload+download actions in the plan.
func (p *Plan) TotalTransfers() int {
	return len(p.Uploads) + len(p.Downloads)
}

// IsEmpty reports whether the plan has no work at all.
func (p *Plan) IsEmpty() bool {
	return len(p.Uploads) == 0 && len(p.Downloads) == 0 && len(p.Conflicts) == 0 &&
		len(p.LocalDeletes) == 0 && len(p.RemoteDeletes) == 0 && len(p.DropBaseline) == 0
}

// --- External collaborator interfaces ---

// Item is the remote service's view of a file or folder, as returned by
// RemoteDriveClient calls.
type Item struct {
	ID              string
	Name            string
	Path            string
	Size            int64
	LastModifiedUTC time.Time
	CTag            string
	ETag            string
	IsFolder        bool
	IsDeleted       bool
	// RemoteHash is the strongest content hash the service reported for
	// this item, with RemoteHashAlgo naming which one (see HashAlgo
	// constants). Empty when the service returned none.
	RemoteHash     string
	RemoteHashAlgo string
}

// Content hash algorithms a RemoteDriveClient may report via Item.RemoteHashAlgo.
const (
	HashAlgoQuickXor = "quickxor"
	HashAlgoSHA256   = "sha256"
	HashAlgoSHA1     = "sha1"
)

// DeltaPage is one page of a delta pull: a batch of changed items plus
// pagination/resumption state.
type DeltaPage struct {
	Items      []Item
	NextCursor string // pass to the next Delta call when Done is false
	Done       bool   // true once the server has no more pages for this round
}

// ProgressFunc reports incremental byte progress during a transfer.
type ProgressFunc func(bytesTransferred int64)

// RemoteDriveClient is the thin capability the core consumes from the
// remote service. Account scoping is carried by the caller, not threaded
// as a typed parameter, to keep call sites uniform across components.
type RemoteDriveClient interface {
	Root(ctx context.Context, account string) (Item, error)
	Children(ctx context.Context, account, parentID string) ([]Item, error)
	GetItem(ctx context.Context, account, id string) (Item, error)
	Delta(ctx context.Context, account, cursor string) (DeltaPage, error)
	Download(ctx context.Context, account, itemID string, dest io.Writer) error
	Upload(ctx context.Context, account, remotePath string, src io.Reader, size int64, progress ProgressFunc) (Item, error)
	Delete(ctx context.Context, account, itemID string) error
}

// AuthProvider yields bearer credentials for an account id. It may refuse
// (ErrUnauthenticated) when no valid credential is available.
type AuthProvider interface {
	Token(ctx context.Context, account string) (string, error)
}

// UploadSessionRecord persists enough state to resume a large upload across
// a crash.
type UploadSessionRecord struct {
	Account       accountid.Hashed
	Path          pathkey.Key
	SessionURL    string
	BytesUploaded int64
	TotalSize     int64
	CreatedAt     time.Time
}

// MetadataStore is the durable relational store consumed by every
// component that needs to persist state.
type MetadataStore interface {
	// Sync records
	GetSyncRecord(ctx context.Context, account accountid.Hashed, path pathkey.Key) (*SyncRecord, error)
	ListSyncRecords(ctx context.Context, account accountid.Hashed) ([]SyncRecord, error)
	SaveBatch(ctx context.Context, records []SyncRecord) error
	DeleteSyncRecord(ctx context.Context, account accountid.Hashed, path pathkey.Key) error

	// Delta cursors
	GetDeltaCursor(ctx context.Context, account accountid.Hashed, driveID string) (*DeltaCursor, error)
	SaveDeltaCursor(ctx context.Context, cursor DeltaCursor) error

	// Conflicts
	RecordConflict(ctx context.Context, row ConflictRow) error
	GetUnresolvedConflicts(ctx context.Context, account accountid.Hashed) ([]ConflictRow, error)
	ResolveConflict(ctx context.Context, id string, resolution string) error

	// Sessions
	OpenSession(ctx context.Context, log SessionLog) error
	CloseSession(ctx context.Context, log SessionLog) error

	// Selection (which remote folders the account has chosen to sync)
	ListSelectedFolders(ctx context.Context, account accountid.Hashed) ([]pathkey.Key, error)

	// Upload session resume
	SaveUploadSession(ctx context.Context, rec UploadSessionRecord) error
	GetUploadSession(ctx context.Context, account accountid.Hashed, path pathkey.Key) (*UploadSessionRecord, error)
	DeleteUploadSession(ctx context.Context, account accountid.Hashed, path pathkey.Key) error

	// Maintenance
	CleanupTombstones(ctx context.Context, retention time.Duration) (int, error)

	Close() error
}

// Snapshot is the broadcast record published to ProgressSink subscribers.
type Snapshot struct {
	Account           string
	Status            SessionStatus
	TotalFiles        int
	CompletedFiles    int
	TotalBytes        int64
	CompletedBytes    int64
	FilesDownloading  int
	FilesUploading    int
	FilesDeleted      int
	ConflictsDetected int
	MBPerSec          float64
	ETASecs           *int64
	ScanningFolder    string
	LastUpdateUTC     time.Time
}
