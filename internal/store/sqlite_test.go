package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/pathkey"
	"github.com/arwynfr/drivesync/internal/sync"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func TestOpen_AppliesMigration(t *testing.T) {
	s := newTestStore(t)

	var name string
	err := s.db.QueryRowContext(context.Background(),
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sync_records'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "sync_records", name)
}

func TestSyncRecord_SaveGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("user@example.com")
	path := pathkey.Canonical("/Documents/report.docx")

	rec := sync.SyncRecord{
		Account:      account,
		RemoteItemID: "item-1",
		Path:         path,
		SizeBytes:    1024,
		MtimeUTC:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		CTag:         "ctag1",
		ETag:         "etag1",
		LocalHash:    "deadbeef",
		Status:       sync.StatusSynced,
		IsSelected:   true,
	}

	require.NoError(t, s.SaveBatch(ctx, []sync.SyncRecord{rec}))

	got, err := s.GetSyncRecord(ctx, account, path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "item-1", got.RemoteItemID)
	assert.Equal(t, int64(1024), got.SizeBytes)
	assert.True(t, got.MtimeUTC.Equal(rec.MtimeUTC))
	assert.Equal(t, sync.StatusSynced, got.Status)
	assert.True(t, got.IsSelected)

	list, err := s.ListSyncRecords(ctx, account)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteSyncRecord(ctx, account, path))

	got, err = s.GetSyncRecord(ctx, account, path)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyncRecord_SaveBatchUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("user@example.com")
	path := pathkey.Canonical("/a.txt")

	first := sync.SyncRecord{Account: account, Path: path, Status: sync.StatusPendingUpload, SizeBytes: 1}
	second := sync.SyncRecord{Account: account, Path: path, Status: sync.StatusSynced, SizeBytes: 2}

	require.NoError(t, s.SaveBatch(ctx, []sync.SyncRecord{first}))
	require.NoError(t, s.SaveBatch(ctx, []sync.SyncRecord{second}))

	got, err := s.GetSyncRecord(ctx, account, path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sync.StatusSynced, got.Status)
	assert.Equal(t, int64(2), got.SizeBytes)

	list, err := s.ListSyncRecords(ctx, account)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeltaCursor_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("acct")

	got, err := s.GetDeltaCursor(ctx, account, "drive-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	cursor := sync.DeltaCursor{
		Account:        account,
		DriveID:        "drive-1",
		TokenBlob:      "token-abc",
		LastAdvancedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	require.NoError(t, s.SaveDeltaCursor(ctx, cursor))

	got, err = s.GetDeltaCursor(ctx, account, "drive-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "token-abc", got.TokenBlob)
	assert.True(t, got.LastAdvancedAt.Equal(cursor.LastAdvancedAt))

	cursor.TokenBlob = "token-xyz"
	require.NoError(t, s.SaveDeltaCursor(ctx, cursor))

	got, err = s.GetDeltaCursor(ctx, account, "drive-1")
	require.NoError(t, err)
	assert.Equal(t, "token-xyz", got.TokenBlob)
}

func TestConflicts_RecordListResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("acct")
	path := pathkey.Canonical("/conflict.txt")

	row := sync.ConflictRow{
		ID:          "c1",
		Account:     account,
		Path:        path,
		LocalMtime:  time.Now().UTC(),
		RemoteMtime: time.Now().UTC(),
		LocalSize:   10,
		RemoteSize:  20,
		DetectedUTC: time.Now().UTC(),
		Resolution:  "",
	}
	require.NoError(t, s.RecordConflict(ctx, row))

	unresolved, err := s.GetUnresolvedConflicts(ctx, account)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "c1", unresolved[0].ID)

	require.NoError(t, s.ResolveConflict(ctx, "c1", "keep-local"))

	unresolved, err = s.GetUnresolvedConflicts(ctx, account)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
}

func TestSessionLog_OpenClose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("acct")

	log := sync.SessionLog{
		ID:       "s1",
		Account:  account,
		StartUTC: time.Now().UTC(),
		Status:   sync.SessionRunning,
	}
	require.NoError(t, s.OpenSession(ctx, log))

	completed := time.Now().UTC()
	log.CompletedUTC = &completed
	log.Status = sync.SessionCompleted
	log.FilesUploaded = 3
	require.NoError(t, s.CloseSession(ctx, log))
}

func TestUploadSession_SaveGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("acct")
	path := pathkey.Canonical("/big-file.bin")

	rec := sync.UploadSessionRecord{
		Account:       account,
		Path:          path,
		SessionURL:    "https://upload.example.com/session/1",
		BytesUploaded: 1024,
		TotalSize:     4096,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.SaveUploadSession(ctx, rec))

	got, err := s.GetUploadSession(ctx, account, path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1024), got.BytesUploaded)

	require.NoError(t, s.DeleteUploadSession(ctx, account, path))

	got, err = s.GetUploadSession(ctx, account, path)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSelectedFolders_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("acct")

	list, err := s.ListSelectedFolders(ctx, account)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCleanupTombstones_DeletesFailedOlderThanRetention(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	account := accountid.Hash("acct")

	old := sync.SyncRecord{
		Account: account, Path: pathkey.Canonical("/old.txt"),
		Status: sync.StatusFailed, MtimeUTC: time.Now().UTC().Add(-72 * time.Hour),
	}
	require.NoError(t, s.SaveBatch(ctx, []sync.SyncRecord{old}))

	n, err := s.CleanupTombstones(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetSyncRecord(ctx, account, pathkey.Canonical("/old.txt"))
	require.NoError(t, err)
	assert.Nil(t, got)
}
