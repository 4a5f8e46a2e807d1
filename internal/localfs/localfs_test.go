package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOSFileSystemWriteStatOpen(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem()

	n, err := fs.Write(root, "sub/dir/a.txt", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d bytes, want 5", n)
	}

	info, err := fs.Stat(root, "sub/dir/a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 5 || info.IsDir {
		t.Fatalf("Stat info = %+v", info)
	}

	r, err := fs.Open(root, "sub/dir/a.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(content) != "hello" {
		t.Fatalf("content = %q", content)
	}
}

func TestOSFileSystemEnumerateSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem()

	if _, err := fs.Write(root, "a.txt", bytes.NewBufferString("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := fs.Write(root, "dir/b.txt", bytes.NewBufferString("bb")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported on this platform: %v", err)
	}

	var skipped []string
	entries, err := fs.Enumerate(context.Background(), root, func(relPath string, err error) {
		skipped = append(skipped, relPath)
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	paths := map[string]bool{}
	for _, e := range entries {
		paths[e.RelPath] = true
	}

	if !paths["a.txt"] || !paths["dir/b.txt"] {
		t.Fatalf("entries = %+v", entries)
	}
	if paths["link.txt"] {
		t.Fatalf("expected link.txt to be elided, got %+v", entries)
	}
	if len(skipped) != 1 || skipped[0] != "link.txt" {
		t.Fatalf("skipped = %+v", skipped)
	}
}

func TestOSFileSystemEnumerateHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem()

	for i := 0; i < 5; i++ {
		if _, err := fs.Write(root, string(rune('a'+i))+".txt", bytes.NewBufferString("x")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fs.Enumerate(ctx, root, nil)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestOSFileSystemRename(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem()

	if _, err := fs.Write(root, "a.txt.partial", bytes.NewBufferString("content")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := fs.Rename(root, "a.txt.partial", "sub/a.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := fs.Stat(root, "a.txt.partial"); err == nil {
		t.Fatalf("expected partial file to be gone")
	}

	info, err := fs.Stat(root, "sub/a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 7 {
		t.Fatalf("Size = %d, want 7", info.Size)
	}
}

func TestOSFileSystemDeleteAndSetMtime(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem()

	if _, err := fs.Write(root, "a.txt", bytes.NewBufferString("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := fs.SetMtime(root, "a.txt", want); err != nil {
		t.Fatalf("SetMtime: %v", err)
	}

	info, err := fs.Stat(root, "a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.Mtime.Equal(want) {
		t.Fatalf("Mtime = %v, want %v", info.Mtime, want)
	}

	if err := fs.Delete(root, "a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := fs.Stat(root, "a.txt"); err == nil {
		t.Fatalf("expected stat error after delete")
	}

	// Deleting an already-absent path is not an error.
	if err := fs.Delete(root, "a.txt"); err != nil {
		t.Fatalf("Delete of absent path: %v", err)
	}
}

func TestHashFileIsStableAndUppercaseHex(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem()

	if _, err := fs.Write(root, "a.txt", bytes.NewBufferString("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h1, err := HashFile(fs, root, "a.txt")
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	const want = "B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9"
	if h1 != want {
		t.Fatalf("HashFile = %q, want %q", h1, want)
	}

	h2, err := HashFile(fs, root, "a.txt")
	if err != nil {
		t.Fatalf("HashFile second call: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable: %q != %q", h1, h2)
	}
}
