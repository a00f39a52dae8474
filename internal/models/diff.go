package models

import "time"

// SegmentKind classifies a changed region between two versions.
type SegmentKind string

const (
	SegmentAdded    SegmentKind = "added"
	SegmentRemoved  SegmentKind = "removed"
	SegmentModified SegmentKind = "modified"
)

// ChangeSegment is a run of changed lines. Line numbers are 1-based.
// For an Added segment OldLine is the old line the insertion precedes and
// OldCount is zero; a Removed segment mirrors that on the new side.
type ChangeSegment struct {
	Kind     SegmentKind `json:"kind"`
	OldLine  int         `json:"old_line"`
	OldCount int         `json:"old_count"`
	NewLine  int         `json:"new_line"`
	NewCount int         `json:"new_count"`
}

// DiffResult is the comparison of two snapshots of the same site.
type DiffResult struct {
	ID                 string          `json:"id"`
	SiteID             string          `json:"site_id"`
	PreviousSnapshotID string          `json:"previous_snapshot_id"`
	NewSnapshotID      string          `json:"new_snapshot_id"`
	Changed            bool            `json:"changed"`
	ChangeRatio        float64         `json:"change_ratio"`
	Segments           []ChangeSegment `json:"segments,omitempty"`
	// HashOnly is set when bytes were compared by digest only.
	HashOnly      bool      `json:"hash_only"`
	LinesAdded    int       `json:"lines_added"`
	LinesRemoved  int       `json:"lines_removed"`
	LinesModified int       `json:"lines_modified"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Significant applies a caller-chosen noise threshold on top of the raw
// result. A ratio below epsilon is treated as noise.
func (d DiffResult) Significant(epsilon float64) bool {
	if !d.Changed {
		return false
	}
	return d.ChangeRatio >= epsilon
}

// CrawlOutcome is what a single crawl cycle reports back to the scheduler.
type CrawlOutcome struct {
	Snapshot Snapshot    `json:"snapshot"`
	Diff     *DiffResult `json:"diff,omitempty"`
	Changed  bool        `json:"changed"`
	// Baseline is true for the first capture of a site.
	Baseline bool `json:"baseline"`
}
