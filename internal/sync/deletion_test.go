package sync

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

type fakeRemoteClient struct {
	RemoteDriveClient
	deleted []string
	failID  string
}

func (f *fakeRemoteClient) Delete(_ context.Context, _, itemID string) error {
	if itemID == f.failID {
		return assert.AnError
	}

	f.deleted = append(f.deleted, itemID)

	return nil
}

type fakeMetadataStore struct {
	MetadataStore
	dropped []string
}

func (f *fakeMetadataStore) DeleteSyncRecord(_ context.Context, _ accountid.Hashed, path pathkey.Key) error {
	f.dropped = append(f.dropped, path.Comparable())
	return nil
}

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeletionServiceAppliesLocalAndRemoteDeletes(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()
	_, err := fs.Write(root, "a.txt", bytes.NewBufferString("x"))
	require.NoError(t, err)

	client := &fakeRemoteClient{}
	store := &fakeMetadataStore{}
	account := accountid.Hash("acct-1")

	localPath := pathkey.Canonical("/a.txt")
	remotePath := pathkey.Canonical("/b.txt")

	svc := NewDeletionService(fs, client, store, func(pathkey.Key) (string, string, bool) {
		return root, "a.txt", true
	}, discardTestLogger())

	result := svc.Apply(context.Background(), account,
		[]pathkey.Key{localPath},
		[]pathkey.Key{remotePath},
		nil,
		map[string]string{remotePath.Comparable(): "item-123"},
	)

	assert.Equal(t, 1, result.LocalDeleted)
	assert.Equal(t, 1, result.RemoteDeleted)
	assert.Equal(t, []string{"item-123"}, client.deleted)
	assert.ElementsMatch(t, []string{localPath.Comparable(), remotePath.Comparable()}, store.dropped)

	_, statErr := fs.Stat(root, "a.txt")
	assert.Error(t, statErr)
}

func TestDeletionServiceSkipsUnmappedLocalPath(t *testing.T) {
	fs := localfs.NewOSFileSystem()
	client := &fakeRemoteClient{}
	store := &fakeMetadataStore{}
	account := accountid.Hash("acct-1")

	path := pathkey.Canonical("/outside.txt")

	svc := NewDeletionService(fs, client, store, func(pathkey.Key) (string, string, bool) {
		return "", "", false
	}, discardTestLogger())

	result := svc.Apply(context.Background(), account, []pathkey.Key{path}, nil, nil, nil)

	assert.Equal(t, 0, result.LocalDeleted)
	assert.Equal(t, []string{path.Comparable()}, store.dropped)
}

func TestDeletionServiceContinuesAfterRemoteDeleteFailure(t *testing.T) {
	fs := localfs.NewOSFileSystem()
	client := &fakeRemoteClient{failID: "bad-item"}
	store := &fakeMetadataStore{}
	account := accountid.Hash("acct-1")

	okPath := pathkey.Canonical("/ok.txt")
	badPath := pathkey.Canonical("/bad.txt")

	svc := NewDeletionService(fs, client, store, nil, discardTestLogger())

	result := svc.Apply(context.Background(), account,
		nil,
		[]pathkey.Key{badPath, okPath},
		nil,
		map[string]string{badPath.Comparable(): "bad-item", okPath.Comparable(): "ok-item"},
	)

	assert.Equal(t, 1, result.RemoteDeleted)
	assert.ElementsMatch(t, []string{"ok-item"}, client.deleted)
	assert.ElementsMatch(t, []string{badPath.Comparable(), okPath.Comparable()}, store.dropped)
}

func TestDeletionServiceDropsBaselineWithoutDeleting(t *testing.T) {
	fs := localfs.NewOSFileSystem()
	client := &fakeRemoteClient{}
	store := &fakeMetadataStore{}
	account := accountid.Hash("acct-1")

	path := pathkey.Canonical("/c.txt")

	svc := NewDeletionService(fs, client, store, nil, discardTestLogger())

	result := svc.Apply(context.Background(), account, nil, nil, []pathkey.Key{path}, nil)

	assert.Equal(t, 0, result.LocalDeleted)
	assert.Equal(t, 0, result.RemoteDeleted)
	assert.Equal(t, []string{path.Comparable()}, store.dropped)
}
