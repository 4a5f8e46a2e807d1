package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

// nosyncGuardFile, when present at the root of a selected folder's local
// directory, aborts the scan for that folder rather than risk reporting
// every file as deleted because the volume holding it is not mounted.
const nosyncGuardFile = ".nosync"

// ErrNosyncGuard is returned by Scanner.Scan when the guard file is
// present at localRoot.
var ErrNosyncGuard = fmt.Errorf("localfs: %s guard file present, skipping scan", nosyncGuardFile)

// Scanner implements the LocalScanner component: it walks a local
// directory and yields the LocalRecord set rooted at a selected remote
// folder (spec.md §4.2).
type Scanner struct {
	fs     localfs.LocalFS
	logger *slog.Logger
}

// NewScanner creates a Scanner over fs.
func NewScanner(fs localfs.LocalFS, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{fs: fs, logger: logger}
}

// Scan walks localRoot recursively and returns one LocalRecord per regular
// file, keyed by the canonical path of remoteFolder joined with the file's
// path relative to localRoot. Entries whose stat fails with a permission
// or sharing error are logged and elided rather than aborting the scan.
// Cancellation is honored between files.
func (s *Scanner) Scan(ctx context.Context, account, localRoot string, remoteFolder pathkey.Key) ([]LocalRecord, error) {
	if _, err := s.fs.Stat(localRoot, nosyncGuardFile); err == nil {
		return nil, ErrNosyncGuard
	}

	var skipped int

	entries, err := s.fs.Enumerate(ctx, localRoot, func(relPath string, skipErr error) {
		skipped++
		s.logger.Warn("scanner: eliding entry", "account", account, "path", relPath, "error", skipErr)
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: enumerate %s: %w", localRoot, err)
	}

	records := make([]LocalRecord, 0, len(entries))

	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// A leftover download in progress is not a local file.
		if strings.HasSuffix(e.RelPath, partialSuffix) {
			continue
		}

		hash, hashErr := localfs.HashFile(s.fs, localRoot, e.RelPath)
		if hashErr != nil {
			s.logger.Warn("scanner: hashing failed, eliding", "account", account, "path", e.RelPath, "error", hashErr)
			skipped++

			continue
		}

		normalizedRel := norm.NFC.String(e.RelPath)

		records = append(records, LocalRecord{
			Path:      pathkey.Join(remoteFolder, normalizedRel),
			SizeBytes: e.Size,
			MtimeUTC:  e.Mtime,
			Hash:      hash,
		})
	}

	s.logger.Info("scanner: scan complete", "account", account, "root", localRoot, "files", len(records), "skipped", skipped)

	return records, nil
}
