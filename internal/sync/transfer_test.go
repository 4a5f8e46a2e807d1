package sync

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwynfr/drivesync/internal/accountid"
	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

type fakeTransferClient struct {
	RemoteDriveClient

	mu       sync.Mutex
	uploaded map[string][]byte
	failPath string

	downloadContent []byte
	failDownloadID  string

	nextID int
}

func newFakeTransferClient() *fakeTransferClient {
	return &fakeTransferClient{uploaded: map[string][]byte{}}
}

func (f *fakeTransferClient) Upload(_ context.Context, _, remotePath string, src io.Reader, size int64, progress ProgressFunc) (Item, error) {
	if remotePath == f.failPath {
		return Item{}, assert.AnError
	}

	buf := make([]byte, 0, size)
	chunk := make([]byte, 4)
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if progress != nil {
				progress(int64(n))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Item{}, err
		}
	}

	f.mu.Lock()
	f.nextID++
	id := "item-" + remotePath
	f.uploaded[remotePath] = buf
	f.mu.Unlock()

	return Item{
		ID:              id,
		Size:            int64(len(buf)),
		LastModifiedUTC: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CTag:            "ctag-1",
		ETag:            "etag-1",
	}, nil
}

func (f *fakeTransferClient) Download(_ context.Context, _, itemID string, dest io.Writer) error {
	if itemID == f.failDownloadID {
		return assert.AnError
	}

	_, err := dest.Write(f.downloadContent)
	return err
}

func (f *fakeTransferClient) GetItem(_ context.Context, _, itemID string) (Item, error) {
	return Item{
		ID:              itemID,
		Size:            int64(len(f.downloadContent)),
		LastModifiedUTC: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		CTag:            "ctag-2",
		ETag:            "etag-2",
	}, nil
}

type recordingStore struct {
	MetadataStore

	mu      sync.Mutex
	batches [][]SyncRecord
}

func (s *recordingStore) SaveBatch(_ context.Context, records []SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]SyncRecord, len(records))
	copy(cp, records)
	s.batches = append(s.batches, cp)

	return nil
}

func (s *recordingStore) all() []SyncRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SyncRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}

	return out
}

func TestTransferExecutorUploadSucceeds(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()
	_, err := fs.Write(root, "a.txt", bytes.NewBufferString("hello world"))
	require.NoError(t, err)

	client := newFakeTransferClient()
	store := &recordingStore{}
	account := accountid.Hash("acct-1")

	exec := NewTransferExecutor(fs, client, store, 2, discardTestLogger())

	job := TransferJob{Path: pathkey.Canonical("/a.txt"), LocalRoot: root, LocalRel: "a.txt"}
	outcomes, err := exec.Run(context.Background(), account, []TransferJob{job}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, StatusSynced, outcomes[0].Record.Status)
	assert.Equal(t, "hello world", string(client.uploaded["/a.txt"]))

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, DirectionUpload, records[0].LastDirection)
}

func TestTransferExecutorUploadFailureRecordsFailedStatus(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()
	_, err := fs.Write(root, "bad.txt", bytes.NewBufferString("x"))
	require.NoError(t, err)

	client := newFakeTransferClient()
	client.failPath = "/bad.txt"
	store := &recordingStore{}
	account := accountid.Hash("acct-1")

	exec := NewTransferExecutor(fs, client, store, 1, discardTestLogger())

	job := TransferJob{Path: pathkey.Canonical("/bad.txt"), LocalRoot: root, LocalRel: "bad.txt"}
	outcomes, err := exec.Run(context.Background(), account, []TransferJob{job}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Error(t, outcomes[0].Err)
	assert.Equal(t, StatusFailed, outcomes[0].Record.Status)
}

func TestTransferExecutorDownloadSucceeds(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()

	client := newFakeTransferClient()
	client.downloadContent = []byte("remote content")
	store := &recordingStore{}
	account := accountid.Hash("acct-1")

	exec := NewTransferExecutor(fs, client, store, 2, discardTestLogger())

	job := TransferJob{Path: pathkey.Canonical("/b.txt"), LocalRoot: root, LocalRel: "b.txt", RemoteItemID: "item-b"}
	outcomes, err := exec.Run(context.Background(), account, nil, []TransferJob{job})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, StatusSynced, outcomes[0].Record.Status)

	r, err := fs.Open(root, "b.txt")
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "remote content", string(content))

	_, err = fs.Stat(root, "b.txt.partial")
	assert.Error(t, err)
}

func TestTransferExecutorDownloadFailureLeavesNoPartialPromotion(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()

	client := newFakeTransferClient()
	client.failDownloadID = "item-c"
	store := &recordingStore{}
	account := accountid.Hash("acct-1")

	exec := NewTransferExecutor(fs, client, store, 1, discardTestLogger())

	job := TransferJob{Path: pathkey.Canonical("/c.txt"), LocalRoot: root, LocalRel: "c.txt", RemoteItemID: "item-c"}
	outcomes, err := exec.Run(context.Background(), account, nil, []TransferJob{job})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Error(t, outcomes[0].Err)
	assert.Equal(t, StatusFailed, outcomes[0].Record.Status)

	_, statErr := fs.Stat(root, "c.txt")
	assert.Error(t, statErr)
}

func TestTransferExecutorBatchesAcrossThreshold(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()

	client := newFakeTransferClient()
	store := &recordingStore{}
	account := accountid.Hash("acct-1")

	exec := NewTransferExecutor(fs, client, store, 4, discardTestLogger())

	var jobs []TransferJob
	for i := 0; i < batchFlushSize+5; i++ {
		name := pathkey.Canonical("/many/" + string(rune('a'+i%26)) + ".txt").Display()
		rel := name[1:]
		_, err := fs.Write(root, rel, bytes.NewBufferString("x"))
		require.NoError(t, err)
		jobs = append(jobs, TransferJob{Path: pathkey.Canonical(name), LocalRoot: root, LocalRel: rel})
	}

	outcomes, err := exec.Run(context.Background(), account, jobs, nil)
	require.NoError(t, err)
	assert.Len(t, outcomes, batchFlushSize+5)

	assert.GreaterOrEqual(t, len(store.all()), batchFlushSize+5)
	assert.GreaterOrEqual(t, len(store.batches), 2)
}
