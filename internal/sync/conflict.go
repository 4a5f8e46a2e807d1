package sync

import "time"

// firstSyncMtimeTolerance is the window within which two independently
// discovered copies of a path are treated as already in sync rather than
// a first-sync conflict.
const firstSyncMtimeTolerance = 60 * time.Second

// localMtimeTolerance bounds the local-vs-baseline mtime comparison; local
// filesystem mtimes are usually precise to the second so a tight window is
// safe.
const localMtimeTolerance = 1 * time.Second

// remoteMtimeTolerance is the wide fallback window used only when the
// baseline has no cTag to compare against; the remote service's mtime is
// authoritative, but this corroborating check still allows for clock drift.
const remoteMtimeTolerance = time.Hour

// ConflictDetector classifies one path's (local, remote, baseline) triple
// into an Outcome. Unlike a keep-both auto-resolution policy, a classified
// conflict here is only ever recorded and left for external resolution —
// the detector never renames or re-transfers anything itself.
type ConflictDetector struct{}

// NewConflictDetector constructs a ConflictDetector. It carries no state:
// every classification is a pure function of its three inputs.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// Classify returns the outcome for one path given optional local, remote,
// and baseline records. A nil pointer means "absent" for that source.
func (ConflictDetector) Classify(local *LocalRecord, remote *RemoteRecord, baseline *SyncRecord) Outcome {
	switch {
	case local != nil && remote == nil && baseline == nil:
		return OutcomeUpload

	case local == nil && remote != nil && baseline == nil:
		return OutcomeDownload

	case local != nil && remote != nil && baseline == nil:
		if firstSyncMatches(local, remote) {
			return OutcomeRecordSynced
		}

		return OutcomeConflict

	case local != nil && remote != nil && baseline != nil:
		localChanged := localDiverges(local, baseline)
		remoteChanged := remoteDiverges(remote, baseline)

		switch {
		case localChanged && !remoteChanged:
			return OutcomeUpload
		case remoteChanged && !localChanged:
			return OutcomeDownload
		case localChanged && remoteChanged:
			return OutcomeConflict
		default:
			return OutcomeNone
		}

	case local == nil && remote != nil && baseline != nil && baseline.Status == StatusSynced:
		return OutcomeDeleteRemote

	case local != nil && remote == nil && baseline != nil && baseline.Status == StatusSynced:
		return OutcomeDeleteLocal

	case local == nil && remote == nil && baseline != nil:
		return OutcomeDropBaseline

	default:
		return OutcomeNone
	}
}

// firstSyncMatches reports whether two independently discovered copies of
// a path (no baseline yet) should be treated as already in sync rather
// than a conflict.
func firstSyncMatches(local *LocalRecord, remote *RemoteRecord) bool {
	if local.SizeBytes != remote.SizeBytes {
		return false
	}

	return absDuration(local.MtimeUTC.Sub(remote.MtimeUTC)) <= firstSyncMtimeTolerance
}

// localDiverges reports whether the local copy has changed relative to
// the baseline. Hash comparison wins when both sides know a hash;
// otherwise size or a tight mtime window decides.
func localDiverges(local *LocalRecord, baseline *SyncRecord) bool {
	if local.Hash != "" && baseline.LocalHash != "" {
		return local.Hash != baseline.LocalHash
	}

	if local.SizeBytes != baseline.SizeBytes {
		return true
	}

	return absDuration(local.MtimeUTC.Sub(baseline.MtimeUTC)) > localMtimeTolerance
}

// remoteDiverges reports whether the remote copy has changed relative to
// the baseline. A baseline marked StatusSyncOnly always counts as changed,
// whatever the cTags say. Otherwise a changed cTag is necessary; it is
// sufficient by itself when the baseline has a cTag, and when the baseline
// has none, size or mtime must corroborate it.
func remoteDiverges(remote *RemoteRecord, baseline *SyncRecord) bool {
	if baseline.Status == StatusSyncOnly {
		return true
	}

	if remote.CTag == baseline.CTag {
		return false
	}

	if baseline.CTag != "" {
		return true
	}

	if remote.SizeBytes != baseline.SizeBytes {
		return true
	}

	return absDuration(remote.MtimeUTC.Sub(baseline.MtimeUTC)) > remoteMtimeTolerance
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
