package models

import "time"

// JobState is the lifecycle state of a CrawlJob.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobRetrying  JobState = "retrying"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// CrawlJob is one scheduled attempt, with retries, to crawl a site.
// Retry state lives on the job itself.
type CrawlJob struct {
	ID          string     `json:"id"`
	SiteID      string     `json:"site_id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Attempt     int        `json:"attempt"`
	State       JobState   `json:"state"`
	Manual      bool       `json:"manual"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	RetryAt     *time.Time `json:"retry_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	// Backoffs holds every delay applied before a retry, in order.
	Backoffs []time.Duration `json:"backoffs,omitempty"`
}

// Clone returns a copy that shares no mutable state with j.
func (j *CrawlJob) Clone() CrawlJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.RetryAt != nil {
		t := *j.RetryAt
		c.RetryAt = &t
	}
	c.Backoffs = append([]time.Duration(nil), j.Backoffs...)
	return c
}
