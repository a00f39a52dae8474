package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/httpclient"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Fetcher retrieves a page once.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts models.FetchOptions) (*httpclient.FetchResult, error)
}

// Differ compares two versions of a page.
type Differ interface {
	Diff(previous, current []byte, contentType string) models.DiffResult
}

// Crawler runs single fetch-and-classify cycles. It holds no per-site state;
// callers serialize cycles for the same site.
type Crawler struct {
	fetcher   Fetcher
	backup    models.BackupStore
	snapshots models.SnapshotStore
	differ    Differ
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// RunCrawl fetches the site, diffs against the previous snapshot, stores the
// bytes and records the new snapshot. It returns an error without recording
// anything when the fetch or the backup write fails.
func (c *Crawler) RunCrawl(ctx context.Context, site models.MonitoredSite) (*models.CrawlOutcome, error) {
	log := c.logger.With().Str("site_id", site.ID).Str("url", site.URL).Logger()

	fetched, err := c.fetcher.Fetch(ctx, site.URL, site.FetchOptions)
	if err != nil {
		log.Debug().Err(err).Msg("Fetch failed")
		return nil, err
	}

	previous, err := c.snapshots.LatestSnapshot(ctx, site.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, common.WrapErrorf(err, "failed to load previous snapshot for site %s", site.ID)
	}

	hash := common.ContentHash(fetched.Body)
	capturedAt := c.now().UTC()
	snapshot := models.Snapshot{
		ID:          uuid.NewString(),
		SiteID:      site.ID,
		CapturedAt:  capturedAt,
		ContentHash: hash,
		Size:        int64(len(fetched.Body)),
		ContentType: fetched.ContentType,
		StatusCode:  fetched.StatusCode,
		FinalURL:    fetched.FinalURL,
		Truncated:   fetched.Truncated,
	}

	outcome := &models.CrawlOutcome{}
	if previous == nil {
		outcome.Baseline = true
	} else {
		diff, err := c.compare(*previous, snapshot, fetched.Body)
		if err != nil {
			return nil, err
		}
		diff.CreatedAt = capturedAt
		outcome.Diff = &diff
		outcome.Changed = diff.Changed
	}

	// The snapshot row is written while the hash is locked so retention
	// never sees the bytes as unreferenced in between.
	record, err := c.backup.Commit(hash, fetched.Body, func(stored *models.BackupRecord) error {
		snapshot.BackupRef = stored.Path
		if err := c.snapshots.RecordSnapshot(ctx, snapshot); err != nil {
			return common.WrapErrorf(err, "failed to record snapshot for site %s", site.ID)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to store snapshot")
		return nil, err
	}
	if !record.Reused {
		c.metrics.AddBackupBytes(record.Size)
	}
	outcome.Snapshot = snapshot

	event := log.Info()
	if snapshot.Truncated {
		event = log.Warn()
	}
	event.
		Str("snapshot_id", snapshot.ID).
		Str("hash", hash).
		Int64("size", snapshot.Size).
		Bool("baseline", outcome.Baseline).
		Bool("changed", outcome.Changed).
		Bool("dedup", record.Reused).
		Bool("truncated", snapshot.Truncated).
		Msg("Crawl completed")
	return outcome, nil
}

// compare diffs the new bytes against the previous snapshot. Equal hashes
// skip loading the old bytes. When the previous bytes are gone or corrupt the
// result falls back to a hash comparison so the site can record a new
// baseline instead of failing every run.
func (c *Crawler) compare(previous, current models.Snapshot, body []byte) (models.DiffResult, error) {
	var diff models.DiffResult
	if previous.ContentHash != current.ContentHash {
		previousBody, err := c.backup.Get(previous.ContentHash)
		var storageErr *models.StorageError
		switch {
		case errors.As(err, &storageErr):
			c.logger.Error().Err(err).Str("site_id", current.SiteID).Str("hash", previous.ContentHash).Msg("Previous snapshot bytes unavailable, comparing hashes only")
			diff = models.DiffResult{
				Changed:     true,
				ChangeRatio: 1.0,
				HashOnly:    true,
				Note:        "previous snapshot bytes unavailable: " + string(storageErr.Kind),
			}
		case err != nil:
			c.logger.Error().Err(err).Str("site_id", current.SiteID).Str("hash", previous.ContentHash).Msg("Failed to load previous snapshot bytes")
			return models.DiffResult{}, err
		default:
			diff = c.differ.Diff(previousBody, body, current.ContentType)
		}
	}
	diff.ID = uuid.NewString()
	diff.SiteID = current.SiteID
	diff.PreviousSnapshotID = previous.ID
	diff.NewSnapshotID = current.ID
	return diff, nil
}
