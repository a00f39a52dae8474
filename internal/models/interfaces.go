package models

import "context"

// SiteStore is CRUD over monitored sites.
type SiteStore interface {
	CreateSite(ctx context.Context, site *MonitoredSite) error
	GetSite(ctx context.Context, id string) (*MonitoredSite, error)
	ListSites(ctx context.Context) ([]MonitoredSite, error)
	ListEnabledSites(ctx context.Context) ([]MonitoredSite, error)
	UpdateSite(ctx context.Context, site *MonitoredSite) error
	UpdateSiteRun(ctx context.Context, id string, update SiteRunUpdate) error
	DeleteSite(ctx context.Context, id string) error
}

// SnapshotStore records snapshots. Snapshots are append-only for the crawl
// pipeline; only retention deletes them.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, snapshot Snapshot) error
	// LatestSnapshot returns ErrNotFound when the site has no snapshot yet.
	LatestSnapshot(ctx context.Context, siteID string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, siteID string, limit int) ([]Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	CountSnapshotsByHash(ctx context.Context, hash string) (int, error)
}

// HistoryStore records diff results and run summaries.
type HistoryStore interface {
	RecordDiff(ctx context.Context, diff DiffResult) error
	GetDiff(ctx context.Context, id string) (*DiffResult, error)
	ListDiffs(ctx context.Context, siteID string, limit int) ([]DiffResult, error)
	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, siteID string, limit int) ([]RunRecord, error)
}

// MetadataStore is the full persistence surface the service depends on.
type MetadataStore interface {
	SiteStore
	SnapshotStore
	HistoryStore
	Close() error
}

// BackupStore is content-addressed storage of raw snapshot bytes.
type BackupStore interface {
	Put(hash string, data []byte) (*BackupRecord, error)
	// Commit stores data and runs record before another writer or retention
	// can touch the same hash.
	Commit(hash string, data []byte, record func(*BackupRecord) error) (*BackupRecord, error)
	Get(hash string) ([]byte, error)
	Exists(hash string) bool
}

// Notifier delivers change and failure events.
type Notifier interface {
	Notify(ctx context.Context, site MonitoredSite, diff DiffResult) error
	NotifyFailure(ctx context.Context, site MonitoredSite, runErr error) error
}
