package datastore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

const exportFileName = "snapshots.parquet"

// ExportResult describes a finished history export
type ExportResult struct {
	FilePath       string
	RecordsWritten int
	FileSize       int64
	WriteTime      time.Duration
}

// ParquetExporter writes a site's snapshot history to a parquet file
type ParquetExporter struct {
	store  models.MetadataStore
	codec  string
	logger zerolog.Logger
}

// ParquetExporterBuilder provides a fluent interface for creating ParquetExporter
type ParquetExporterBuilder struct {
	store  models.MetadataStore
	codec  string
	logger zerolog.Logger
}

// NewParquetExporterBuilder creates a new ParquetExporterBuilder
func NewParquetExporterBuilder(logger zerolog.Logger) *ParquetExporterBuilder {
	return &ParquetExporterBuilder{
		codec:  config.DefaultStorageCompressionCodec,
		logger: logger.With().Str("component", "ParquetExporter").Logger(),
	}
}

// WithStore sets the metadata store the history is read from
func (b *ParquetExporterBuilder) WithStore(store models.MetadataStore) *ParquetExporterBuilder {
	b.store = store
	return b
}

// WithStorageConfig takes the compression codec from the storage configuration
func (b *ParquetExporterBuilder) WithStorageConfig(cfg config.StorageConfig) *ParquetExporterBuilder {
	if cfg.CompressionCodec != "" {
		b.codec = cfg.CompressionCodec
	}
	return b
}

// Build creates a new ParquetExporter instance
func (b *ParquetExporterBuilder) Build() (*ParquetExporter, error) {
	if b.store == nil {
		return nil, common.NewValidationError("store", nil, "metadata store cannot be nil")
	}
	if _, err := compressionOption(b.codec); err != nil {
		return nil, err
	}
	return &ParquetExporter{store: b.store, codec: b.codec, logger: b.logger}, nil
}

// Export writes every snapshot of siteID to <dir>/<site_id>/snapshots.parquet,
// oldest first. The file is replaced atomically.
func (e *ParquetExporter) Export(ctx context.Context, siteID, dir string) (*ExportResult, error) {
	start := time.Now()
	if dir == "" {
		return nil, common.NewValidationError("dir", dir, "export directory is not configured")
	}

	site, err := e.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to load site %s", siteID)
	}
	records, err := e.collect(ctx, *site)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(dir, site.ID)
	if err := common.EnsureDir(outDir); err != nil {
		return nil, common.WrapError(err, "failed to create export directory: "+outDir)
	}
	path := filepath.Join(outDir, exportFileName)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.writeFile(path, records); err != nil {
		return nil, err
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	result := &ExportResult{
		FilePath:       path,
		RecordsWritten: len(records),
		FileSize:       size,
		WriteTime:      time.Since(start),
	}
	e.logger.Info().
		Str("site_id", site.ID).
		Str("file_path", path).
		Int("records_written", result.RecordsWritten).
		Str("codec", e.codec).
		Dur("write_time", result.WriteTime).
		Msg("Exported snapshot history")
	return result, nil
}

// collect flattens snapshots and marks each one with the diff that produced it.
func (e *ParquetExporter) collect(ctx context.Context, site models.MonitoredSite) ([]models.SnapshotExportRecord, error) {
	snaps, err := e.store.ListSnapshots(ctx, site.ID, 0)
	if err != nil {
		return nil, err
	}
	diffs, err := e.store.ListDiffs(ctx, site.ID, 0)
	if err != nil {
		return nil, err
	}
	byNewSnapshot := make(map[string]models.DiffResult, len(diffs))
	for _, d := range diffs {
		byNewSnapshot[d.NewSnapshotID] = d
	}

	records := make([]models.SnapshotExportRecord, 0, len(snaps))
	for i := len(snaps) - 1; i >= 0; i-- {
		snap := snaps[i]
		record := models.SnapshotExportRecord{
			SnapshotID:   snap.ID,
			SiteID:       site.ID,
			SiteURL:      site.URL,
			CapturedAtMs: snap.CapturedAt.UnixMilli(),
			ContentHash:  snap.ContentHash,
			Size:         snap.Size,
			ContentType:  stringPtrOrNil(snap.ContentType),
			StatusCode:   int32(snap.StatusCode),
		}
		if d, ok := byNewSnapshot[snap.ID]; ok {
			record.Changed = d.Changed
			record.ChangeRatio = d.ChangeRatio
		}
		records = append(records, record)
	}
	return records, nil
}

func (e *ParquetExporter) writeFile(path string, records []models.SnapshotExportRecord) error {
	option, err := compressionOption(e.codec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return common.WrapError(err, "failed to create temporary export file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := parquet.NewGenericWriter[models.SnapshotExportRecord](tmp, option)
	if _, err := writer.Write(records); err != nil {
		tmp.Close()
		return common.WrapError(err, "failed to write snapshot records to parquet file")
	}
	if err := writer.Close(); err != nil {
		tmp.Close()
		return common.WrapError(err, "failed to finalize parquet file")
	}
	if err := tmp.Close(); err != nil {
		return common.WrapError(err, "failed to close parquet file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return common.WrapError(err, "failed to move export into place: "+path)
	}
	return nil
}

// ReadExport reads back a file produced by Export.
func ReadExport(path string) ([]models.SnapshotExportRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to open parquet file %s", path)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[models.SnapshotExportRecord](file)
	defer reader.Close()

	records := make([]models.SnapshotExportRecord, 0, reader.NumRows())
	buf := make([]models.SnapshotExportRecord, 128)
	for {
		n, err := reader.Read(buf)
		records = append(records, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.WrapErrorf(err, "failed to read rows from %s", path)
		}
	}
	return records, nil
}

// compressionOption maps a codec name to the parquet writer option.
func compressionOption(codec string) (parquet.WriterOption, error) {
	switch strings.ToLower(codec) {
	case "", "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "none":
		return parquet.Compression(&parquet.Uncompressed), nil
	}
	return nil, common.NewValidationError("compression_codec", codec, "unsupported compression codec")
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
