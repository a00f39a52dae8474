package datastore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meta.db")

	store, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)

	site := models.NewMonitoredSite("https://example.com/pricing", models.Schedule{Kind: models.ScheduleCron, Cron: "*/5 * * * *"})
	site.Name = "pricing"
	site.FetchOptions = models.FetchOptions{
		Headers:   map[string]string{"Accept-Language": "en"},
		Timeout:   models.Duration(7 * time.Second),
		UserAgent: "probe/1",
	}
	require.NoError(t, store.CreateSite(ctx, &site))

	captured := time.Date(2024, 3, 1, 8, 30, 0, 123, time.UTC)
	require.NoError(t, store.RecordSnapshot(ctx, models.Snapshot{
		ID:          "snap-1",
		SiteID:      site.ID,
		CapturedAt:  captured,
		ContentHash: "abc",
		Size:        42,
		ContentType: "text/html",
		StatusCode:  200,
		BackupRef:   "objects/ab/abc",
		Truncated:   true,
	}))
	require.NoError(t, store.RecordDiff(ctx, models.DiffResult{
		ID:                 "diff-1",
		SiteID:             site.ID,
		PreviousSnapshotID: "snap-0",
		NewSnapshotID:      "snap-1",
		Changed:            true,
		ChangeRatio:        0.25,
		Segments: []models.ChangeSegment{
			{Kind: models.SegmentModified, OldLine: 3, OldCount: 1, NewLine: 3, NewCount: 1},
		},
		LinesModified: 1,
		CreatedAt:     captured,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, "pricing", got.Name)
	assert.Equal(t, models.ScheduleCron, got.Schedule.Kind)
	assert.Equal(t, "*/5 * * * *", got.Schedule.Cron)
	assert.Equal(t, "en", got.FetchOptions.Headers["Accept-Language"])
	assert.Equal(t, 7*time.Second, got.FetchOptions.Timeout.Std())
	assert.Equal(t, "probe/1", got.FetchOptions.UserAgent)
	assert.True(t, got.Enabled)
	assert.True(t, got.CompressOld)
	assert.Nil(t, got.LastRunAt)

	snap, err := reopened.LatestSnapshot(ctx, site.ID)
	require.NoError(t, err)
	assert.True(t, captured.Equal(snap.CapturedAt))
	assert.Equal(t, "objects/ab/abc", snap.BackupRef)
	assert.True(t, snap.Truncated)

	diff, err := reopened.GetDiff(ctx, "diff-1")
	require.NoError(t, err)
	require.Len(t, diff.Segments, 1)
	assert.Equal(t, models.SegmentModified, diff.Segments[0].Kind)
	assert.Equal(t, 3, diff.Segments[0].NewLine)
	assert.InDelta(t, 0.25, diff.ChangeRatio, 1e-9)
}

func TestSQLiteStore_UpdateMissingSite(t *testing.T) {
	store := newTestSQLiteStore(t)
	site := models.NewMonitoredSite("https://example.com", models.IntervalSchedule(time.Hour))
	site.ID = "missing"

	assert.ErrorIs(t, store.UpdateSite(context.Background(), &site), models.ErrNotFound)
	assert.ErrorIs(t, store.UpdateSiteRun(context.Background(), "missing", models.SiteRunUpdate{}), models.ErrNotFound)
}

func TestSQLiteStore_UpgradesSnapshotsTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	old, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE snapshots (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		captured_at INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL,
		final_url TEXT NOT NULL DEFAULT '',
		backup_ref TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = old.Exec(`INSERT INTO snapshots VALUES ('snap-old', 'site-1', 1, 'abc', 3, '', 200, '', 'objects/ab/abc')`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	store, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.RecordSnapshot(ctx, models.Snapshot{
		ID:          "snap-new",
		SiteID:      "site-1",
		CapturedAt:  time.Unix(0, 2).UTC(),
		ContentHash: "def",
		Size:        3,
		StatusCode:  200,
		BackupRef:   "objects/de/def",
		Truncated:   true,
	}))

	snaps, err := store.ListSnapshots(ctx, "site-1", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-new", snaps[0].ID)
	assert.True(t, snaps[0].Truncated)
	assert.False(t, snaps[1].Truncated)
}
