// Package remote adapts the Microsoft Graph API client into the thin
// RemoteDriveClient and AuthProvider capabilities the sync engine consumes.
package remote

import (
	"strings"

	"github.com/arwynfr/drivesync/internal/graph"
	syncpkg "github.com/arwynfr/drivesync/internal/sync"
)

// joinItemPath builds a display path from a graph item's decoded parent
// path and its own name. Graph items carry no path field directly — only
// parentReference.path — so the engine-facing Item.Path is assembled here,
// at the adapter boundary, once the name has already gone through delta's
// URL-decoding pass.
func joinItemPath(parentPath, name string) string {
	if parentPath == "" {
		parentPath = "/"
	}

	if name == "" {
		return parentPath
	}

	if parentPath == "/" {
		return "/" + name
	}

	return strings.TrimSuffix(parentPath, "/") + "/" + name
}

// selectHash returns the strongest content hash the Graph API reported for
// an item, preferring QuickXorHash (present on nearly all accounts),
// falling back to SHA256Hash, then SHA1Hash. Returns empty strings when the
// item carries none — folders and some business-tenant items never do.
func selectHash(it graph.Item) (hash, algo string) {
	switch {
	case it.QuickXorHash != "":
		return it.QuickXorHash, syncpkg.HashAlgoQuickXor
	case it.SHA256Hash != "":
		return it.SHA256Hash, syncpkg.HashAlgoSHA256
	case it.SHA1Hash != "":
		return it.SHA1Hash, syncpkg.HashAlgoSHA1
	default:
		return "", ""
	}
}

// mapItem translates a graph.Item into the sync package's narrower Item view.
func mapItem(it graph.Item) syncpkg.Item {
	hash, algo := selectHash(it)

	return syncpkg.Item{
		ID:              it.ID,
		Name:            it.Name,
		Path:            joinItemPath(it.ParentPath, it.Name),
		Size:            it.Size,
		LastModifiedUTC: it.ModifiedAt,
		CTag:            it.CTag,
		ETag:            it.ETag,
		IsFolder:        it.IsFolder,
		IsDeleted:       it.IsDeleted,
		RemoteHash:      hash,
		RemoteHashAlgo:  algo,
	}
}

func mapItems(items []graph.Item) []syncpkg.Item {
	out := make([]syncpkg.Item, 0, len(items))
	for i := range items {
		out = append(out, mapItem(items[i]))
	}

	return out
}
