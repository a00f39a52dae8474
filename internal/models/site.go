package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Site run status values stored in MonitoredSite.LastStatus.
const (
	SiteStatusNever     = ""
	SiteStatusOK        = "ok"
	SiteStatusUnchanged = "unchanged"
	SiteStatusChanged   = "changed"
	SiteStatusBaseline  = "baseline"
	SiteStatusFailed    = "failed"
)

const DefaultRetentionLimit = 10

// FetchOptions tunes the HTTP request for a single site.
type FetchOptions struct {
	Headers   map[string]string `json:"headers,omitempty"`
	Timeout   Duration          `json:"timeout,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// MonitoredSite is a single fixed URL that is crawled on a schedule.
type MonitoredSite struct {
	ID             string       `json:"id"`
	Name           string       `json:"name,omitempty"`
	URL            string       `json:"url"`
	Schedule       Schedule     `json:"schedule"`
	Enabled        bool         `json:"enabled"`
	FetchOptions   FetchOptions `json:"fetch_options,omitempty"`
	RetentionLimit int          `json:"retention_limit"`
	CompressOld    bool         `json:"compress_old"`
	Notify         bool         `json:"notify"`

	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewMonitoredSite returns an enabled site with the product defaults.
func NewMonitoredSite(rawURL string, schedule Schedule) MonitoredSite {
	return MonitoredSite{
		URL:            strings.TrimSpace(rawURL),
		Schedule:       schedule.WithDefaults(),
		Enabled:        true,
		RetentionLimit: DefaultRetentionLimit,
		CompressOld:    true,
		Notify:         true,
	}
}

// Validate checks the invariants that must hold before a site is stored.
func (s MonitoredSite) Validate() error {
	if err := ValidateSiteURL(s.URL); err != nil {
		return err
	}
	if s.RetentionLimit < 0 {
		return fmt.Errorf("retention_limit must not be negative")
	}
	if s.FetchOptions.Timeout < 0 {
		return fmt.Errorf("fetch timeout must not be negative")
	}
	if s.Enabled {
		if err := s.Schedule.Validate(); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
	}
	return nil
}

// IsDue reports whether the site should be crawled at now.
func (s MonitoredSite) IsDue(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	return s.NextRunAt == nil || !s.NextRunAt.After(now)
}

// Domain returns the host part of the site URL.
func (s MonitoredSite) Domain() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// DisplayName prefers the operator supplied name and falls back to the host.
func (s MonitoredSite) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if d := s.Domain(); d != "" {
		return d
	}
	return s.URL
}

// ValidateSiteURL accepts absolute http and https URLs only.
func ValidateSiteURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return nil
}

// SiteRunUpdate carries the cadence fields the scheduler writes after a job
// reaches a terminal state.
type SiteRunUpdate struct {
	LastRunAt time.Time
	NextRunAt time.Time
	Status    string
	Error     string
}
