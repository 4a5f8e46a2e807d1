package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

// percentMultiplier converts a count to a percentage; multiplying before
// dividing avoids integer truncation.
const percentMultiplier = 100

// BigDeleteGuard configures the safety threshold applied to a round's
// combined local+remote deletion count before the Reconciler will let it
// through. Drives with fewer than MinItems known paths skip the check
// entirely: a near-empty selection can legitimately delete "everything".
type BigDeleteGuard struct {
	MinItems      int
	MaxCount      int
	MaxPercentage int
	Force         bool
}

// DefaultBigDeleteGuard matches the teacher's S5 defaults.
func DefaultBigDeleteGuard() BigDeleteGuard {
	return BigDeleteGuard{MinItems: 20, MaxCount: 50, MaxPercentage: 25}
}

func (g BigDeleteGuard) exceeded(deleteCount, totalKnown int) bool {
	if g.Force || totalKnown < g.MinItems {
		return false
	}

	countExceeded := g.MaxCount > 0 && deleteCount > g.MaxCount
	percentExceeded := g.MaxPercentage > 0 && totalKnown > 0 &&
		(deleteCount*percentMultiplier/totalKnown) > g.MaxPercentage

	return countExceeded || percentExceeded
}

// Reconciler drives one sync round for one account: load the baseline,
// join it against the local and remote views, classify every path with
// ConflictDetector, and emit a Plan (spec.md §4.6).
type Reconciler struct {
	detector *ConflictDetector
	guard    BigDeleteGuard
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler with the given big-delete guard. A
// zero-value guard (all fields zero) disables the check entirely.
func NewReconciler(guard BigDeleteGuard, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		detector: NewConflictDetector(),
		guard:    guard,
		logger:   logger,
	}
}

// Reconcile computes the three-way join over the union of paths seen in
// local, remote, and baseline, classifies each with ConflictDetector, and
// returns the resulting Plan. Paths landing in OutcomeConflict are never
// also present in Uploads/Downloads (classification is mutually
// exclusive), satisfying spec.md §4.6 step 5 without a separate filter
// pass.
func (r *Reconciler) Reconcile(
	_ context.Context,
	account accountid.Hashed,
	local map[string]*LocalRecord,
	remote map[string]*RemoteRecord,
	baseline map[string]*SyncRecord,
) (*Plan, error) {
	plan := &Plan{}

	for key := range unionKeys(local, remote, baseline) {
		l := local[key]
		rr := remote[key]
		b := baseline[key]

		path := resolvePath(l, rr, b)
		outcome := r.detector.Classify(l, rr, b)

		switch outcome {
		case OutcomeUpload:
			plan.Uploads = append(plan.Uploads, path)
		case OutcomeDownload:
			plan.Downloads = append(plan.Downloads, path)
		case OutcomeConflict:
			plan.Conflicts = append(plan.Conflicts, buildConflictRow(account, path, l, rr))
		case OutcomeDeleteRemote:
			plan.RemoteDeletes = append(plan.RemoteDeletes, path)
		case OutcomeDeleteLocal:
			plan.LocalDeletes = append(plan.LocalDeletes, path)
		case OutcomeDropBaseline:
			plan.DropBaseline = append(plan.DropBaseline, path)
		case OutcomeRecordSynced, OutcomeNone:
			// No plan entry: either nothing changed, or both copies already
			// match; no baseline record is written for a first-sync match.
		}
	}

	if err := r.checkBigDelete(plan, len(baseline)); err != nil {
		return nil, err
	}

	r.logger.Info("reconciliation complete",
		"account", account,
		"uploads", len(plan.Uploads),
		"downloads", len(plan.Downloads),
		"conflicts", len(plan.Conflicts),
		"local_deletes", len(plan.LocalDeletes),
		"remote_deletes", len(plan.RemoteDeletes),
		"drop_baseline", len(plan.DropBaseline),
	)

	return plan, nil
}

func (r *Reconciler) checkBigDelete(plan *Plan, totalKnown int) error {
	deleteCount := len(plan.LocalDeletes) + len(plan.RemoteDeletes)
	if !r.guard.exceeded(deleteCount, totalKnown) {
		return nil
	}

	r.logger.Warn("big-delete guard triggered",
		"delete_count", deleteCount,
		"total_known", totalKnown,
		"max_count", r.guard.MaxCount,
		"max_percentage", r.guard.MaxPercentage,
	)

	return fmt.Errorf("%w: %d deletions against %d known paths", ErrBigDeleteGuard, deleteCount, totalKnown)
}

// unionKeys returns the set of comparable path keys appearing in any of
// the three maps.
func unionKeys(local map[string]*LocalRecord, remote map[string]*RemoteRecord, baseline map[string]*SyncRecord) map[string]struct{} {
	out := make(map[string]struct{}, len(local)+len(remote)+len(baseline))

	for k := range local {
		out[k] = struct{}{}
	}

	for k := range remote {
		out[k] = struct{}{}
	}

	for k := range baseline {
		out[k] = struct{}{}
	}

	return out
}

// resolvePath recovers the display-form pathkey.Key for a join row from
// whichever source is present.
func resolvePath(l *LocalRecord, r *RemoteRecord, b *SyncRecord) pathkey.Key {
	switch {
	case l != nil:
		return l.Path
	case r != nil:
		return r.Path
	case b != nil:
		return b.Path
	default:
		return pathkey.Key{}
	}
}

func buildConflictRow(account accountid.Hashed, path pathkey.Key, l *LocalRecord, r *RemoteRecord) ConflictRow {
	row := ConflictRow{
		Account:     account,
		Path:        path,
		DetectedUTC: time.Now().UTC(),
	}

	if l != nil {
		row.LocalMtime = l.MtimeUTC
		row.LocalSize = l.SizeBytes
	}

	if r != nil {
		row.RemoteMtime = r.MtimeUTC
		row.RemoteSize = r.SizeBytes
	}

	return row
}
