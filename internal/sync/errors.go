package sync

import (
	"context"
	"errors"
	"fmt"
)

// Tier classifies an error for the propagation policy used by the
// TransferExecutor and DeletionService: a Fatal error aborts the whole
// session, a Skip error is recorded against the single item and the
// session continues, and Cancel means the operation was abandoned because
// the session itself was cancelled.
type Tier int

// Error tiers.
const (
	TierSkip Tier = iota
	TierFatal
	TierCancel
)

// ErrDeltaExpired is returned by RemoteDriveClient.Delta when the server
// has invalidated the cursor (HTTP 410 Gone equivalent); the caller must
// fall back to a full RemoteWalker pass and drop the stored DeltaCursor.
var ErrDeltaExpired = errors.New("sync: delta cursor expired")

// ErrUnauthenticated is returned by AuthProvider.Token when no valid
// credential is available for the account.
var ErrUnauthenticated = errors.New("sync: account is not authenticated")

// ErrSessionAlreadyRunning is returned by SessionCoordinator.Start when a
// session is already in flight for the account.
var ErrSessionAlreadyRunning = errors.New("sync: a session is already running for this account")

// ErrBigDeleteGuard is returned by the Reconciler when a planned deletion
// batch exceeds the configured safety threshold; the plan is rejected
// wholesale rather than partially applied.
var ErrBigDeleteGuard = errors.New("sync: planned deletions exceed the safety threshold")

// TieredError wraps an error with its propagation tier.
type TieredError struct {
	Tier Tier
	Err  error
}

func (e *TieredError) Error() string {
	return e.Err.Error()
}

func (e *TieredError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a Fatal-tier error.
func Fatal(err error) error {
	if err == nil {
		return nil
	}

	return &TieredError{Tier: TierFatal, Err: err}
}

// Skip wraps err as a Skip-tier error.
func Skip(err error) error {
	if err == nil {
		return nil
	}

	return &TieredError{Tier: TierSkip, Err: err}
}

// Skipf formats a Skip-tier error.
func Skipf(format string, args ...any) error {
	return Skip(fmt.Errorf(format, args...))
}

// ClassifyTier returns the Tier carried by err. An unclassified error that
// wraps context.Canceled is TierCancel; any other unclassified error is
// TierFatal: an unclassified error is one the author didn't anticipate,
// and treating the unknown as fatal is safer than silently continuing
// past it.
func ClassifyTier(err error) Tier {
	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}

	if errors.Is(err, context.Canceled) {
		return TierCancel
	}

	return TierFatal
}
