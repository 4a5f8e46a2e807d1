package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arwynfr/drivesync/internal/pathkey"
)

// DeltaProgressFunc reports an in-progress snapshot after each page of a
// delta pull.
type DeltaProgressFunc func(pagesProcessed, itemsProcessed int)

// DeltaResult is the outcome of one DeltaProcessor.PullAll call.
type DeltaResult struct {
	NewCursor      string
	PagesProcessed int
	ItemsProcessed int
	Records        map[string]*RemoteRecord // keyed by pathkey.Key.Comparable()
}

// DeltaProcessor implements the DeltaProcessor component: it drains the
// remote service's delta feed page by page, folding deletions and updates
// into a RemoteRecord set (spec.md §4.3). The returned cursor must only be
// persisted by the caller after downstream reconciliation has committed.
type DeltaProcessor struct {
	client RemoteDriveClient
	logger *slog.Logger
}

// NewDeltaProcessor creates a DeltaProcessor over client.
func NewDeltaProcessor(client RemoteDriveClient, logger *slog.Logger) *DeltaProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	return &DeltaProcessor{client: client, logger: logger}
}

// PullAll repeatedly calls RemoteDriveClient.Delta until the server
// signals completion, folding each page's items into a RemoteRecord set.
// An empty cursor requests an initial full delta. If the server reports
// the cursor has expired, PullAll returns ErrDeltaExpired immediately so
// the caller can fall back to RemoteWalker over the selection roots.
func (p *DeltaProcessor) PullAll(ctx context.Context, account, cursor string, progress DeltaProgressFunc) (DeltaResult, error) {
	result := DeltaResult{Records: make(map[string]*RemoteRecord)}
	next := cursor

	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		page, err := p.client.Delta(ctx, account, next)
		if err != nil {
			if errors.Is(err, ErrDeltaExpired) {
				p.logger.Warn("delta: cursor expired, caller must resync via walker", "account", account)
				return result, ErrDeltaExpired
			}

			return result, fmt.Errorf("delta: pull page: %w", err)
		}

		p.applyPage(page, result.Records)

		result.PagesProcessed++
		result.ItemsProcessed += len(page.Items)

		if progress != nil {
			progress(result.PagesProcessed, result.ItemsProcessed)
		}

		if page.Done {
			result.NewCursor = page.NextCursor
			break
		}

		next = page.NextCursor
	}

	p.logger.Info("delta: pull complete", "account", account,
		"pages", result.PagesProcessed, "items", result.ItemsProcessed)

	return result, nil
}

// applyPage folds one page's items into the accumulating record set.
// Later pages win over earlier ones for the same path, and a deletion
// overwrites any earlier create/update for that path within the same
// round, matching how the server replays tombstones after a rename.
func (p *DeltaProcessor) applyPage(page DeltaPage, into map[string]*RemoteRecord) {
	for _, item := range page.Items {
		if item.IsFolder {
			continue
		}

		key := pathkey.Canonical(item.Path)

		into[key.Comparable()] = &RemoteRecord{
			RemoteItemID: item.ID,
			Path:         key,
			SizeBytes:    item.Size,
			MtimeUTC:     item.LastModifiedUTC,
			CTag:         item.CTag,
			ETag:         item.ETag,
			IsFolder:     false,
			IsDeleted:    item.IsDeleted,
		}
	}
}
