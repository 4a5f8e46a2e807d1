package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arwynfr/drivesync/internal/accountid"
)

// SessionTotals summarizes one completed sync round, used both to close
// out the SessionLog and to publish the terminal Snapshot.
type SessionTotals struct {
	FilesUploaded     int
	FilesDownloaded   int
	FilesDeleted      int
	ConflictsDetected int
	TotalBytes        int64
}

// RunFunc performs one full sync round for an account and reports its
// totals. SessionCoordinator treats any returned error as session
// failure, and context cancellation (ctx.Err() != nil) as a pause rather
// than a failure.
type RunFunc func(ctx context.Context, sink *ProgressSink) (SessionTotals, error)

// SessionCoordinator enforces single-flight sync sessions per account
// (spec.md §4.8): a compare-and-swap flag per account, state transitions
// Idle → Running → {Completed | Paused | Failed} → Idle, and a
// SessionLog row opened only when detailed logging is enabled for the
// account. There is no queued state: a Start that finds a session in
// flight for the account returns ErrSessionAlreadyRunning at once.
type SessionCoordinator struct {
	store           MetadataStore
	detailedLogging func(account accountid.Hashed) bool
	logger          *slog.Logger

	mu     sync.Mutex
	inUse  map[accountid.Hashed]*atomic.Bool
	sinks  map[accountid.Hashed]*ProgressSink
	cancel map[accountid.Hashed]context.CancelFunc
}

// NewSessionCoordinator creates a SessionCoordinator backed by store.
// detailedLogging may be nil, in which case no account ever gets a
// SessionLog row.
func NewSessionCoordinator(store MetadataStore, detailedLogging func(accountid.Hashed) bool, logger *slog.Logger) *SessionCoordinator {
	if logger == nil {
		logger = slog.Default()
	}

	if detailedLogging == nil {
		detailedLogging = func(accountid.Hashed) bool { return false }
	}

	return &SessionCoordinator{
		store:           store,
		detailedLogging: detailedLogging,
		logger:          logger,
		inUse:           make(map[accountid.Hashed]*atomic.Bool),
		sinks:           make(map[accountid.Hashed]*ProgressSink),
		cancel:          make(map[accountid.Hashed]context.CancelFunc),
	}
}

// Sink returns the ProgressSink for account, creating one on first use.
func (c *SessionCoordinator) Sink(account accountid.Hashed) *ProgressSink {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sinkLocked(account)
}

func (c *SessionCoordinator) sinkLocked(account accountid.Hashed) *ProgressSink {
	if sink, ok := c.sinks[account]; ok {
		return sink
	}

	sink := NewProgressSink()
	c.sinks[account] = sink

	return sink
}

// Start begins a session for account if none is already running for it.
// A second Start call while one is in flight is a silent no-op
// (ErrSessionAlreadyRunning), matching spec.md §4.8's single-flight
// semantics. Start blocks for the duration of the session; callers that
// want fire-and-forget semantics should invoke it from their own
// goroutine.
func (c *SessionCoordinator) Start(ctx context.Context, account accountid.Hashed, run RunFunc) error {
	if !c.tryAcquire(account) {
		return ErrSessionAlreadyRunning
	}
	defer c.release(account)

	sessionCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel[account] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.cancel, account)
		c.mu.Unlock()
		cancel()
	}()

	sink := c.Sink(account)
	startedAt := time.Now().UTC()

	sink.Publish(Snapshot{Account: account.String(), Status: SessionRunning, LastUpdateUTC: startedAt})

	logID := ""
	if c.detailedLogging(account) {
		logID = uuid.NewString()

		if err := c.store.OpenSession(sessionCtx, SessionLog{
			ID: logID, Account: account, StartUTC: startedAt, Status: SessionRunning,
		}); err != nil {
			c.logger.Warn("coordinator: failed to open session log", "account", account, "error", err)
		}
	}

	totals, err := run(sessionCtx, sink)

	status := c.terminalStatus(sessionCtx, err)
	c.publishTerminal(sink, account, status, totals)

	if logID != "" {
		completed := time.Now().UTC()
		c.closeSessionLog(ctx, logID, account, startedAt, completed, status, totals)
	}

	if status == SessionFailed {
		return err
	}

	return nil
}

func (c *SessionCoordinator) terminalStatus(ctx context.Context, err error) SessionStatus {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return SessionPaused
	}

	if err != nil {
		return SessionFailed
	}

	return SessionCompleted
}

func (c *SessionCoordinator) publishTerminal(sink *ProgressSink, account accountid.Hashed, status SessionStatus, totals SessionTotals) {
	sink.Publish(Snapshot{
		Account:           account.String(),
		Status:            status,
		FilesDeleted:      totals.FilesDeleted,
		ConflictsDetected: totals.ConflictsDetected,
		CompletedBytes:    totals.TotalBytes,
		TotalBytes:        totals.TotalBytes,
		CompletedFiles:    totals.FilesUploaded + totals.FilesDownloaded,
		TotalFiles:        totals.FilesUploaded + totals.FilesDownloaded,
		LastUpdateUTC:     time.Now().UTC(),
	})
}

func (c *SessionCoordinator) closeSessionLog(ctx context.Context, id string, account accountid.Hashed, started, completed time.Time, status SessionStatus, totals SessionTotals) {
	if err := c.store.CloseSession(ctx, SessionLog{
		ID: id, Account: account, StartUTC: started, CompletedUTC: &completed, Status: status,
		FilesUploaded: totals.FilesUploaded, FilesDownloaded: totals.FilesDownloaded,
		FilesDeleted: totals.FilesDeleted, ConflictsDetected: totals.ConflictsDetected,
		TotalBytes: totals.TotalBytes,
	}); err != nil {
		c.logger.Warn("coordinator: failed to close session log", "account", account, "error", err)
	}
}

// Stop signals cancellation to the running session's token, if any. It is
// a no-op if no session is in flight for the account.
func (c *SessionCoordinator) Stop(account accountid.Hashed) {
	c.mu.Lock()
	cancel := c.cancel[account]
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// tryAcquire performs the single-flight check via atomic.Bool.CompareAndSwap:
// the actual arbitration is lock-free; the mutex here only protects the
// map lookup that finds (or creates) the per-account flag.
func (c *SessionCoordinator) tryAcquire(account accountid.Hashed) bool {
	c.mu.Lock()
	flag, ok := c.inUse[account]
	if !ok {
		flag = &atomic.Bool{}
		c.inUse[account] = flag
	}
	c.mu.Unlock()

	return flag.CompareAndSwap(false, true)
}

func (c *SessionCoordinator) release(account accountid.Hashed) {
	c.mu.Lock()
	flag := c.inUse[account]
	c.mu.Unlock()

	if flag != nil {
		flag.Store(false)
	}
}
