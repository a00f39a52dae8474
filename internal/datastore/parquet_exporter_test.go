package datastore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, store models.MetadataStore) models.MonitoredSite {
	t.Helper()
	ctx := context.Background()
	site := newSite(t, store, "https://example.com/terms")
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, hash := range []string{"h1", "h1", "h2"} {
		require.NoError(t, store.RecordSnapshot(ctx, models.Snapshot{
			ID:          "snap-" + string(rune('1'+i)),
			SiteID:      site.ID,
			CapturedAt:  base.Add(time.Duration(i) * time.Hour),
			ContentHash: hash,
			Size:        int64(10 + i),
			ContentType: "text/html",
			StatusCode:  200,
		}))
	}
	require.NoError(t, store.RecordDiff(ctx, models.DiffResult{
		ID: "d1", SiteID: site.ID, PreviousSnapshotID: "snap-1", NewSnapshotID: "snap-2",
	}))
	require.NoError(t, store.RecordDiff(ctx, models.DiffResult{
		ID: "d2", SiteID: site.ID, PreviousSnapshotID: "snap-2", NewSnapshotID: "snap-3",
		Changed: true, ChangeRatio: 0.5,
	}))
	return site
}

func TestParquetExporter_ExportAndRead(t *testing.T) {
	codecs := []string{"zstd", "snappy", "gzip", "none"}
	for _, codec := range codecs {
		t.Run(codec, func(t *testing.T) {
			store := NewMemoryStore()
			site := seedHistory(t, store)

			cfg := config.NewDefaultStorageConfig()
			cfg.CompressionCodec = codec
			exporter, err := NewParquetExporterBuilder(zerolog.Nop()).
				WithStore(store).
				WithStorageConfig(cfg).
				Build()
			require.NoError(t, err)

			dir := t.TempDir()
			result, err := exporter.Export(context.Background(), site.ID, dir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, site.ID, "snapshots.parquet"), result.FilePath)
			assert.Equal(t, 3, result.RecordsWritten)
			assert.Positive(t, result.FileSize)

			records, err := ReadExport(result.FilePath)
			require.NoError(t, err)
			require.Len(t, records, 3)

			assert.Equal(t, "snap-1", records[0].SnapshotID)
			assert.Equal(t, site.URL, records[0].SiteURL)
			assert.False(t, records[0].Changed)
			assert.False(t, records[1].Changed)
			assert.True(t, records[2].Changed)
			assert.InDelta(t, 0.5, records[2].ChangeRatio, 1e-9)
			assert.Equal(t, int32(200), records[2].StatusCode)
			require.NotNil(t, records[2].ContentType)
			assert.Equal(t, "text/html", *records[2].ContentType)
			assert.Equal(t, time.Date(2024, 2, 1, 2, 0, 0, 0, time.UTC).UnixMilli(), records[2].CapturedAtMs)

			entries, err := os.ReadDir(filepath.Join(dir, site.ID))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files must not be left behind")
		})
	}
}

func TestParquetExporter_Errors(t *testing.T) {
	store := NewMemoryStore()

	_, err := NewParquetExporterBuilder(zerolog.Nop()).Build()
	assert.Error(t, err)

	_, err = NewParquetExporterBuilder(zerolog.Nop()).
		WithStore(store).
		WithStorageConfig(config.StorageConfig{CompressionCodec: "lz4"}).
		Build()
	assert.Error(t, err)

	exporter, err := NewParquetExporterBuilder(zerolog.Nop()).WithStore(store).Build()
	require.NoError(t, err)

	_, err = exporter.Export(context.Background(), "missing", t.TempDir())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = exporter.Export(context.Background(), "missing", "")
	assert.Error(t, err)
}
