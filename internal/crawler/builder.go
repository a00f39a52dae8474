package crawler

import (
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
)

// CrawlerBuilder provides a fluent interface for creating Crawler instances
type CrawlerBuilder struct {
	fetcher   Fetcher
	backup    models.BackupStore
	snapshots models.SnapshotStore
	differ    Differ
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewCrawlerBuilder creates a new CrawlerBuilder instance
func NewCrawlerBuilder(logger zerolog.Logger) *CrawlerBuilder {
	return &CrawlerBuilder{
		now:    time.Now,
		logger: logger.With().Str("component", "Crawler").Logger(),
	}
}

// WithFetcher sets the page fetcher
func (cb *CrawlerBuilder) WithFetcher(fetcher Fetcher) *CrawlerBuilder {
	cb.fetcher = fetcher
	return cb
}

// WithBackupStore sets the content store
func (cb *CrawlerBuilder) WithBackupStore(store models.BackupStore) *CrawlerBuilder {
	cb.backup = store
	return cb
}

// WithSnapshotStore sets the snapshot metadata store
func (cb *CrawlerBuilder) WithSnapshotStore(store models.SnapshotStore) *CrawlerBuilder {
	cb.snapshots = store
	return cb
}

// WithDiffer sets the diff engine
func (cb *CrawlerBuilder) WithDiffer(differ Differ) *CrawlerBuilder {
	cb.differ = differ
	return cb
}

// WithMetrics sets the metrics sink
func (cb *CrawlerBuilder) WithMetrics(m *metrics.Metrics) *CrawlerBuilder {
	cb.metrics = m
	return cb
}

// WithClock overrides the capture timestamp source
func (cb *CrawlerBuilder) WithClock(now func() time.Time) *CrawlerBuilder {
	if now != nil {
		cb.now = now
	}
	return cb
}

// Build creates a new Crawler instance with the configured collaborators
func (cb *CrawlerBuilder) Build() (*Crawler, error) {
	switch {
	case cb.fetcher == nil:
		return nil, common.NewValidationError("fetcher", nil, "fetcher cannot be nil")
	case cb.backup == nil:
		return nil, common.NewValidationError("backup_store", nil, "backup store cannot be nil")
	case cb.snapshots == nil:
		return nil, common.NewValidationError("snapshot_store", nil, "snapshot store cannot be nil")
	case cb.differ == nil:
		return nil, common.NewValidationError("differ", nil, "differ cannot be nil")
	}

	return &Crawler{
		fetcher:   cb.fetcher,
		backup:    cb.backup,
		snapshots: cb.snapshots,
		differ:    cb.differ,
		metrics:   cb.metrics,
		now:       cb.now,
		logger:    cb.logger,
	}, nil
}
