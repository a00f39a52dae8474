package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory MetadataStore for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	sites     map[string]models.MonitoredSite
	snapshots []models.Snapshot
	diffs     []models.DiffResult
	runs      []models.RunRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sites: make(map[string]models.MonitoredSite)}
}

func (s *MemoryStore) CreateSite(_ context.Context, site *models.MonitoredSite) error {
	if err := site.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	if _, exists := s.sites[site.ID]; exists {
		return fmt.Errorf("site %s already exists", site.ID)
	}
	now := time.Now().UTC()
	site.CreatedAt, site.UpdatedAt = now, now
	s.sites[site.ID] = cloneSite(*site)
	return nil
}

func (s *MemoryStore) GetSite(_ context.Context, id string) (*models.MonitoredSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	site = cloneSite(site)
	return &site, nil
}

func (s *MemoryStore) ListSites(_ context.Context) ([]models.MonitoredSite, error) {
	return s.list(false), nil
}

func (s *MemoryStore) ListEnabledSites(_ context.Context) ([]models.MonitoredSite, error) {
	return s.list(true), nil
}

func (s *MemoryStore) list(enabledOnly bool) []models.MonitoredSite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MonitoredSite, 0, len(s.sites))
	for _, site := range s.sites {
		if enabledOnly && !site.Enabled {
			continue
		}
		out = append(out, cloneSite(site))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateSite replaces the editable fields. Run bookkeeping is preserved.
func (s *MemoryStore) UpdateSite(_ context.Context, site *models.MonitoredSite) error {
	if err := site.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sites[site.ID]
	if !ok {
		return models.ErrNotFound
	}
	updated := cloneSite(*site)
	updated.LastRunAt = existing.LastRunAt
	updated.NextRunAt = existing.NextRunAt
	updated.LastStatus = existing.LastStatus
	updated.LastError = existing.LastError
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.sites[site.ID] = updated
	*site = cloneSite(updated)
	return nil
}

func (s *MemoryStore) UpdateSiteRun(_ context.Context, id string, update models.SiteRunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return models.ErrNotFound
	}
	lastRun, nextRun := update.LastRunAt, update.NextRunAt
	site.LastRunAt = &lastRun
	site.NextRunAt = &nextRun
	site.LastStatus = update.Status
	site.LastError = update.Error
	s.sites[id] = site
	return nil
}

func (s *MemoryStore) DeleteSite(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.sites, id)
	return nil
}

func (s *MemoryStore) RecordSnapshot(_ context.Context, snapshot models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context, siteID string) (*models.Snapshot, error) {
	snaps, _ := s.ListSnapshots(ctx, siteID, 1)
	if len(snaps) == 0 {
		return nil, models.ErrNotFound
	}
	return &snaps[0], nil
}

// ListSnapshots returns a site's snapshots newest first. limit <= 0 means all.
func (s *MemoryStore) ListSnapshots(_ context.Context, siteID string, limit int) ([]models.Snapshot, error) {
	s.mu.RLock()
	var out []models.Snapshot
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].SiteID == siteID {
			out = append(out, s.snapshots[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) DeleteSnapshot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, snap := range s.snapshots {
		if snap.ID == id {
			s.snapshots = append(s.snapshots[:i], s.snapshots[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *MemoryStore) CountSnapshotsByHash(_ context.Context, hash string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, snap := range s.snapshots {
		if snap.ContentHash == hash {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) RecordDiff(_ context.Context, diff models.DiffResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diffs = append(s.diffs, diff)
	return nil
}

func (s *MemoryStore) GetDiff(_ context.Context, id string) (*models.DiffResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, diff := range s.diffs {
		if diff.ID == id {
			d := diff
			return &d, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) ListDiffs(_ context.Context, siteID string, limit int) ([]models.DiffResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DiffResult
	for i := len(s.diffs) - 1; i >= 0; i-- {
		if s.diffs[i].SiteID == siteID {
			out = append(out, s.diffs[i])
		}
	}
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) RecordRun(_ context.Context, run models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) ListRuns(_ context.Context, siteID string, limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RunRecord
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].SiteID == siteID {
			out = append(out, s.runs[i])
		}
	}
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneSite(site models.MonitoredSite) models.MonitoredSite {
	site.LastRunAt = timePtr(site.LastRunAt)
	site.NextRunAt = timePtr(site.NextRunAt)
	if site.FetchOptions.Headers != nil {
		headers := make(map[string]string, len(site.FetchOptions.Headers))
		for k, v := range site.FetchOptions.Headers {
			headers[k] = v
		}
		site.FetchOptions.Headers = headers
	}
	return site
}

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
