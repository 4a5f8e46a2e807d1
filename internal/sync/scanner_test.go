package sync

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwynfr/drivesync/internal/localfs"
	"github.com/arwynfr/drivesync/internal/pathkey"
)

func TestScannerScanJoinsRemoteFolder(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()

	_, err := fs.Write(root, "doc.txt", bytes.NewBufferString("hello"))
	require.NoError(t, err)
	_, err = fs.Write(root, "sub/nested.txt", bytes.NewBufferString("world"))
	require.NoError(t, err)

	scanner := NewScanner(fs, discardTestLogger())

	records, err := scanner.Scan(context.Background(), "acct-1", root, pathkey.Canonical("/Documents"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	paths := map[string]LocalRecord{}
	for _, r := range records {
		paths[r.Path.Display()] = r
	}

	doc, ok := paths["/Documents/doc.txt"]
	require.True(t, ok)
	assert.Equal(t, int64(5), doc.SizeBytes)
	assert.NotEmpty(t, doc.Hash)

	_, ok = paths["/Documents/sub/nested.txt"]
	assert.True(t, ok)
}

func TestScannerScanHonorsNosyncGuard(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()

	_, err := fs.Write(root, ".nosync", bytes.NewBufferString(""))
	require.NoError(t, err)

	scanner := NewScanner(fs, discardTestLogger())

	_, err = scanner.Scan(context.Background(), "acct-1", root, pathkey.Canonical("/"))
	assert.ErrorIs(t, err, ErrNosyncGuard)
}

func TestScannerScanAtSelectionRoot(t *testing.T) {
	root := t.TempDir()
	fs := localfs.NewOSFileSystem()

	_, err := fs.Write(root, "ok.txt", bytes.NewBufferString("fine"))
	require.NoError(t, err)

	scanner := NewScanner(fs, discardTestLogger())

	records, err := scanner.Scan(context.Background(), "acct-1", root, pathkey.Canonical("/"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/ok.txt", records[0].Path.Display())
}
