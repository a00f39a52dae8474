package models

import "time"

// Snapshot is the immutable record of one successful fetch.
type Snapshot struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"site_id"`
	CapturedAt  time.Time `json:"captured_at"`
	ContentHash string    `json:"content_hash"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StatusCode  int       `json:"status_code"`
	FinalURL    string    `json:"final_url,omitempty"`
	// BackupRef locates the bytes inside the backup store.
	BackupRef string `json:"backup_ref"`
	// Truncated is set when the body hit the fetch size limit and only its
	// head was stored.
	Truncated bool `json:"truncated,omitempty"`
}

// BackupRecord is the physical storage unit for one distinct content hash.
type BackupRecord struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	Path       string    `json:"path"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
	// Reused is set when Put found the bytes already stored.
	Reused bool `json:"reused"`
}

// SnapshotExportRecord is the flattened snapshot row written to parquet
// history exports. Column compression follows the writer codec.
type SnapshotExportRecord struct {
	SnapshotID   string  `parquet:"snapshot_id"`
	SiteID       string  `parquet:"site_id"`
	SiteURL      string  `parquet:"site_url"`
	CapturedAtMs int64   `parquet:"captured_at_ms"`
	ContentHash  string  `parquet:"content_hash"`
	Size         int64   `parquet:"size"`
	ContentType  *string `parquet:"content_type,optional"`
	StatusCode   int32   `parquet:"status_code"`
	Changed      bool    `parquet:"changed"`
	ChangeRatio  float64 `parquet:"change_ratio"`
}
