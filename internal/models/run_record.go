package models

import "time"

// Run status values.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunRecord summarizes a CrawlJob once it reached a terminal state.
type RunRecord struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"site_id"`
	JobID       string    `json:"job_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Attempts    int       `json:"attempts"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SnapshotID  string    `json:"snapshot_id,omitempty"`
	Changed     bool      `json:"changed"`
	ChangeRatio float64   `json:"change_ratio"`
	Manual      bool      `json:"manual"`
}

// History is the read-only view of a site's past crawls, newest first.
type History struct {
	Site      MonitoredSite `json:"site"`
	Snapshots []Snapshot    `json:"snapshots"`
	Diffs     []DiffResult  `json:"diffs"`
	Runs      []RunRecord   `json:"runs"`
}
