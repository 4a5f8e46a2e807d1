// Package store implements sync.MetadataStore on an embedded SQLite
// database: sync records, delta cursors, conflicts, session logs, selected
// folders, and resumable upload sessions.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure Go driver, registers as "sqlite"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/pathkey"
	"github.com/arwynfr/drivesync/internal/sync"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const walJournalSizeLimit = 67108864 // 64 MiB

// SQLiteStore implements sync.MetadataStore on a single SQLite file opened
// in WAL mode. SaveBatch prepares one statement per batch and writes all of
// its rows inside a single transaction; every other method runs a single
// unprepared statement.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a SQLiteStore at dbPath, applying pending migrations. Use
// ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening sync state database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("store: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// --- sync records ---

func (s *SQLiteStore) GetSyncRecord(ctx context.Context, account accountid.Hashed, path pathkey.Key) (*sync.SyncRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT remote_item_id, path_display, size_bytes, mtime_utc, ctag, etag,
		       local_hash, status, last_direction, is_selected
		FROM sync_records WHERE account = ? AND path_norm = ?`,
		account.String(), path.Comparable())

	rec, err := scanSyncRecord(row, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error; callers branch on nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get sync record %s: %w", path.Display(), err)
	}

	return rec, nil
}

func (s *SQLiteStore) ListSyncRecords(ctx context.Context, account accountid.Hashed) ([]sync.SyncRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT remote_item_id, path_display, size_bytes, mtime_utc, ctag, etag,
		       local_hash, status, last_direction, is_selected
		FROM sync_records WHERE account = ?`, account.String())
	if err != nil {
		return nil, fmt.Errorf("store: list sync records: %w", err)
	}
	defer rows.Close()

	var out []sync.SyncRecord
	for rows.Next() {
		rec, err := scanSyncRecord(rows, account)
		if err != nil {
			return nil, fmt.Errorf("store: scan sync record: %w", err)
		}
		out = append(out, *rec)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, records []sync.SyncRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_records
			(account, path_norm, path_display, remote_item_id, size_bytes,
			 mtime_utc, ctag, etag, local_hash, status, last_direction, is_selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, path_norm) DO UPDATE SET
			path_display   = excluded.path_display,
			remote_item_id = excluded.remote_item_id,
			size_bytes     = excluded.size_bytes,
			mtime_utc      = excluded.mtime_utc,
			ctag           = excluded.ctag,
			etag           = excluded.etag,
			local_hash     = excluded.local_hash,
			status         = excluded.status,
			last_direction = excluded.last_direction,
			is_selected    = excluded.is_selected`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: prepare save batch: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		selected := 0
		if r.IsSelected {
			selected = 1
		}

		if _, err := stmt.ExecContext(ctx,
			r.Account.String(), r.Path.Comparable(), r.Path.Display(), r.RemoteItemID,
			r.SizeBytes, r.MtimeUTC.UTC().Format(time.RFC3339Nano), r.CTag, r.ETag,
			r.LocalHash, string(r.Status), string(r.LastDirection), selected,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: save sync record %s: %w", r.Path.Display(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit save batch: %w", err)
	}

	return nil
}

func (s *SQLiteStore) DeleteSyncRecord(ctx context.Context, account accountid.Hashed, path pathkey.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_records WHERE account = ? AND path_norm = ?`,
		account.String(), path.Comparable())
	if err != nil {
		return fmt.Errorf("store: delete sync record %s: %w", path.Display(), err)
	}

	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSyncRecord(row scannable, account accountid.Hashed) (*sync.SyncRecord, error) {
	var (
		rec            sync.SyncRecord
		pathDisplay    string
		mtimeStr       string
		status         string
		lastDirection  string
		isSelected     int
	)

	if err := row.Scan(
		&rec.RemoteItemID, &pathDisplay, &rec.SizeBytes, &mtimeStr, &rec.CTag, &rec.ETag,
		&rec.LocalHash, &status, &lastDirection, &isSelected,
	); err != nil {
		return nil, err
	}

	rec.Account = account
	rec.Path = pathkey.Canonical(pathDisplay)
	rec.Status = sync.Status(status)
	rec.LastDirection = sync.Direction(lastDirection)
	rec.IsSelected = isSelected != 0

	if mtimeStr != "" {
		t, err := time.Parse(time.RFC3339Nano, mtimeStr)
		if err == nil {
			rec.MtimeUTC = t
		}
	}

	return &rec, nil
}

// --- delta cursors ---

func (s *SQLiteStore) GetDeltaCursor(ctx context.Context, account accountid.Hashed, driveID string) (*sync.DeltaCursor, error) {
	var (
		cursor   sync.DeltaCursor
		advanced string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT token_blob, last_advanced_at FROM delta_cursors
		WHERE account = ? AND drive_id = ?`, account.String(), driveID,
	).Scan(&cursor.TokenBlob, &advanced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence means "start a fresh delta round"
	}
	if err != nil {
		return nil, fmt.Errorf("store: get delta cursor: %w", err)
	}

	cursor.Account = account
	cursor.DriveID = driveID
	if t, perr := time.Parse(time.RFC3339Nano, advanced); perr == nil {
		cursor.LastAdvancedAt = t
	}

	return &cursor, nil
}

func (s *SQLiteStore) SaveDeltaCursor(ctx context.Context, cursor sync.DeltaCursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delta_cursors (account, drive_id, token_blob, last_advanced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account, drive_id) DO UPDATE SET
			token_blob = excluded.token_blob,
			last_advanced_at = excluded.last_advanced_at`,
		cursor.Account.String(), cursor.DriveID, cursor.TokenBlob,
		cursor.LastAdvancedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save delta cursor: %w", err)
	}

	return nil
}

// --- conflicts ---

func (s *SQLiteStore) RecordConflict(ctx context.Context, row sync.ConflictRow) error {
	resolved := 0
	if row.ResolvedFlag {
		resolved = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conflicts
			(id, account, path_norm, path_display, local_mtime, remote_mtime,
			 local_size, remote_size, detected_utc, resolution, resolved_flag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Account.String(), row.Path.Comparable(), row.Path.Display(),
		row.LocalMtime.UTC().Format(time.RFC3339Nano), row.RemoteMtime.UTC().Format(time.RFC3339Nano),
		row.LocalSize, row.RemoteSize, row.DetectedUTC.UTC().Format(time.RFC3339Nano),
		row.Resolution, resolved,
	)
	if err != nil {
		return fmt.Errorf("store: record conflict %s: %w", row.Path.Display(), err)
	}

	return nil
}

func (s *SQLiteStore) GetUnresolvedConflicts(ctx context.Context, account accountid.Hashed) ([]sync.ConflictRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path_display, local_mtime, remote_mtime, local_size, remote_size,
		       detected_utc, resolution, resolved_flag
		FROM conflicts WHERE account = ? AND resolved_flag = 0`, account.String())
	if err != nil {
		return nil, fmt.Errorf("store: list unresolved conflicts: %w", err)
	}
	defer rows.Close()

	var out []sync.ConflictRow
	for rows.Next() {
		var (
			row                        sync.ConflictRow
			pathDisplay                string
			localMtime, remoteMtime    string
			detected                   string
			resolved                   int
		)

		if err := rows.Scan(&row.ID, &pathDisplay, &localMtime, &remoteMtime,
			&row.LocalSize, &row.RemoteSize, &detected, &row.Resolution, &resolved); err != nil {
			return nil, fmt.Errorf("store: scan conflict row: %w", err)
		}

		row.Account = account
		row.Path = pathkey.Canonical(pathDisplay)
		row.ResolvedFlag = resolved != 0
		row.LocalMtime, _ = time.Parse(time.RFC3339Nano, localMtime)
		row.RemoteMtime, _ = time.Parse(time.RFC3339Nano, remoteMtime)
		row.DetectedUTC, _ = time.Parse(time.RFC3339Nano, detected)

		out = append(out, row)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) ResolveConflict(ctx context.Context, id string, resolution string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conflicts SET resolution = ?, resolved_flag = 1 WHERE id = ?`,
		resolution, id)
	if err != nil {
		return fmt.Errorf("store: resolve conflict %s: %w", id, err)
	}

	return nil
}

// --- sessions ---

func (s *SQLiteStore) OpenSession(ctx context.Context, log sync.SessionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_logs
			(id, account, start_utc, status, files_uploaded, files_downloaded,
			 files_deleted, conflicts_detected, total_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Account.String(), log.StartUTC.UTC().Format(time.RFC3339Nano), string(log.Status),
		log.FilesUploaded, log.FilesDownloaded, log.FilesDeleted, log.ConflictsDetected, log.TotalBytes,
	)
	if err != nil {
		return fmt.Errorf("store: open session %s: %w", log.ID, err)
	}

	return nil
}

func (s *SQLiteStore) CloseSession(ctx context.Context, log sync.SessionLog) error {
	var completed sql.NullString
	if log.CompletedUTC != nil {
		completed = sql.NullString{String: log.CompletedUTC.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE session_logs SET
			completed_utc = ?, status = ?, files_uploaded = ?, files_downloaded = ?,
			files_deleted = ?, conflicts_detected = ?, total_bytes = ?
		WHERE id = ?`,
		completed, string(log.Status), log.FilesUploaded, log.FilesDownloaded,
		log.FilesDeleted, log.ConflictsDetected, log.TotalBytes, log.ID,
	)
	if err != nil {
		return fmt.Errorf("store: close session %s: %w", log.ID, err)
	}

	return nil
}

// --- selected folders ---

func (s *SQLiteStore) ListSelectedFolders(ctx context.Context, account accountid.Hashed) ([]pathkey.Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path_display FROM selected_folders WHERE account = ?`, account.String())
	if err != nil {
		return nil, fmt.Errorf("store: list selected folders: %w", err)
	}
	defer rows.Close()

	var out []pathkey.Key
	for rows.Next() {
		var display string
		if err := rows.Scan(&display); err != nil {
			return nil, fmt.Errorf("store: scan selected folder: %w", err)
		}
		out = append(out, pathkey.Canonical(display))
	}

	return out, rows.Err()
}

// --- upload session resume ---

func (s *SQLiteStore) SaveUploadSession(ctx context.Context, rec sync.UploadSessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_sessions
			(account, path_norm, path_display, session_url, bytes_uploaded, total_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account, path_norm) DO UPDATE SET
			session_url    = excluded.session_url,
			bytes_uploaded = excluded.bytes_uploaded,
			total_size     = excluded.total_size`,
		rec.Account.String(), rec.Path.Comparable(), rec.Path.Display(), rec.SessionURL,
		rec.BytesUploaded, rec.TotalSize, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save upload session %s: %w", rec.Path.Display(), err)
	}

	return nil
}

func (s *SQLiteStore) GetUploadSession(ctx context.Context, account accountid.Hashed, path pathkey.Key) (*sync.UploadSessionRecord, error) {
	var (
		rec         sync.UploadSessionRecord
		pathDisplay string
		created     string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT path_display, session_url, bytes_uploaded, total_size, created_at
		FROM upload_sessions WHERE account = ? AND path_norm = ?`,
		account.String(), path.Comparable(),
	).Scan(&pathDisplay, &rec.SessionURL, &rec.BytesUploaded, &rec.TotalSize, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no resumable session is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("store: get upload session %s: %w", path.Display(), err)
	}

	rec.Account = account
	rec.Path = pathkey.Canonical(pathDisplay)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)

	return &rec, nil
}

func (s *SQLiteStore) DeleteUploadSession(ctx context.Context, account accountid.Hashed, path pathkey.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM upload_sessions WHERE account = ? AND path_norm = ?`,
		account.String(), path.Comparable())
	if err != nil {
		return fmt.Errorf("store: delete upload session %s: %w", path.Display(), err)
	}

	return nil
}

// --- maintenance ---

func (s *SQLiteStore) CleanupTombstones(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_records WHERE status = ? AND mtime_utc < ?`,
		string(sync.StatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup tombstones: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: read rows affected: %w", err)
	}

	return int(affected), nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sync state database")

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close database: %w", err)
	}

	return nil
}

var _ sync.MetadataStore = (*SQLiteStore)(nil)
