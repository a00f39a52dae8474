package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	schedule_kind TEXT NOT NULL,
	schedule_interval INTEGER NOT NULL DEFAULT 0,
	schedule_daily_time TEXT NOT NULL DEFAULT '',
	schedule_cron TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL,
	fetch_headers TEXT,
	fetch_timeout INTEGER NOT NULL DEFAULT 0,
	fetch_user_agent TEXT NOT NULL DEFAULT '',
	retention_limit INTEGER NOT NULL,
	compress_old INTEGER NOT NULL,
	notify INTEGER NOT NULL,
	last_run_at INTEGER,
	next_run_at INTEGER,
	last_status TEXT NOT NULL DEFAULT '',
	last_error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	captured_at INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	size INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL,
	final_url TEXT NOT NULL DEFAULT '',
	backup_ref TEXT NOT NULL,
	truncated INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_snapshots_site ON snapshots(site_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON snapshots(content_hash);

CREATE TABLE IF NOT EXISTS diffs (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	previous_snapshot_id TEXT NOT NULL,
	new_snapshot_id TEXT NOT NULL,
	changed INTEGER NOT NULL,
	change_ratio REAL NOT NULL,
	hash_only INTEGER NOT NULL,
	lines_added INTEGER NOT NULL,
	lines_removed INTEGER NOT NULL,
	lines_modified INTEGER NOT NULL,
	segments TEXT,
	note TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diffs_site ON diffs(site_id);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	job_id TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	attempts INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	snapshot_id TEXT NOT NULL DEFAULT '',
	changed INTEGER NOT NULL,
	change_ratio REAL NOT NULL,
	manual INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site_id);
`

const siteColumns = `id, name, url, schedule_kind, schedule_interval, schedule_daily_time, schedule_cron,
	enabled, fetch_headers, fetch_timeout, fetch_user_agent, retention_limit, compress_old, notify,
	last_run_at, next_run_at, last_status, last_error, created_at, updated_at`

const snapshotColumns = `id, site_id, captured_at, content_hash, size, content_type, status_code, final_url, backup_ref, truncated`

const diffColumns = `id, site_id, previous_snapshot_id, new_snapshot_id, changed, change_ratio, hash_only,
	lines_added, lines_removed, lines_modified, segments, note, created_at`

const runColumns = `id, site_id, job_id, started_at, finished_at, attempts, status, error, snapshot_id,
	changed, change_ratio, manual`

// SQLiteStore persists sites, snapshots, diffs and run records in a single
// SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dataSourceName
// and ensures the schema exists.
func NewSQLiteStore(dataSourceName string, logger zerolog.Logger) (*SQLiteStore, error) {
	logger = logger.With().Str("component", "SQLiteStore").Logger()
	logger.Info().Str("db_path", dataSourceName).Msg("Initializing metadata database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, common.WrapErrorf(err, "failed to create database directory %s", dbDir)
	}

	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, common.WrapErrorf(err, "sql.Open failed for %s", dataSourceName)
	}
	// One connection serializes writers and avoids SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.InitSchema(); err != nil {
		db.Close()
		return nil, common.WrapError(err, "failed to initialize schema")
	}
	logger.Info().Str("path", dataSourceName).Msg("Database initialized and schema verified")
	return store, nil
}

// InitSchema creates the tables if they don't already exist.
func (s *SQLiteStore) InitSchema() error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := s.db.Exec(pragma); err != nil {
			s.logger.Warn().Err(err).Str("pragma", pragma).Msg("Failed to apply pragma")
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		s.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return s.addColumnIfMissing("snapshots", "truncated", "INTEGER NOT NULL DEFAULT 0")
}

// addColumnIfMissing upgrades tables created before column existed.
func (s *SQLiteStore) addColumnIfMissing(table, column, definition string) error {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil {
		return common.WrapErrorf(err, "failed to inspect table %s", table)
	}
	if count > 0 {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return common.WrapErrorf(err, "failed to add column %s.%s", table, column)
	}
	s.logger.Info().Str("table", table).Str("column", column).Msg("Upgraded database schema")
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) CreateSite(ctx context.Context, site *models.MonitoredSite) error {
	if err := site.Validate(); err != nil {
		return err
	}
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	site.CreatedAt, site.UpdatedAt = now, now

	headers, err := nullJSON(site.FetchOptions.Headers, len(site.FetchOptions.Headers))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sites (`+siteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, site.Name, site.URL, string(site.Schedule.Kind), int64(site.Schedule.Interval),
		site.Schedule.DailyTime, site.Schedule.Cron, site.Enabled, headers,
		int64(site.FetchOptions.Timeout), site.FetchOptions.UserAgent, site.RetentionLimit,
		site.CompressOld, site.Notify, nullableTime(site.LastRunAt), nullableTime(site.NextRunAt),
		site.LastStatus, site.LastError, site.CreatedAt.UnixNano(), site.UpdatedAt.UnixNano())
	if err != nil {
		return common.WrapErrorf(err, "failed to insert site %s", site.ID)
	}
	return nil
}

func (s *SQLiteStore) GetSite(ctx context.Context, id string) (*models.MonitoredSite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to load site %s", id)
	}
	return site, nil
}

func (s *SQLiteStore) ListSites(ctx context.Context) ([]models.MonitoredSite, error) {
	return s.listSites(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY created_at, id`)
}

func (s *SQLiteStore) ListEnabledSites(ctx context.Context) ([]models.MonitoredSite, error) {
	return s.listSites(ctx, `SELECT `+siteColumns+` FROM sites WHERE enabled = 1 ORDER BY created_at, id`)
}

func (s *SQLiteStore) listSites(ctx context.Context, query string) ([]models.MonitoredSite, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, common.WrapError(err, "failed to query sites")
	}
	defer rows.Close()

	var sites []models.MonitoredSite
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, common.WrapError(err, "failed to scan site")
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// UpdateSite replaces the editable fields. Run bookkeeping is preserved.
func (s *SQLiteStore) UpdateSite(ctx context.Context, site *models.MonitoredSite) error {
	if err := site.Validate(); err != nil {
		return err
	}
	headers, err := nullJSON(site.FetchOptions.Headers, len(site.FetchOptions.Headers))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sites SET name = ?, url = ?, schedule_kind = ?,
		schedule_interval = ?, schedule_daily_time = ?, schedule_cron = ?, enabled = ?,
		fetch_headers = ?, fetch_timeout = ?, fetch_user_agent = ?, retention_limit = ?,
		compress_old = ?, notify = ?, updated_at = ? WHERE id = ?`,
		site.Name, site.URL, string(site.Schedule.Kind), int64(site.Schedule.Interval),
		site.Schedule.DailyTime, site.Schedule.Cron, site.Enabled, headers,
		int64(site.FetchOptions.Timeout), site.FetchOptions.UserAgent, site.RetentionLimit,
		site.CompressOld, site.Notify, time.Now().UTC().UnixNano(), site.ID)
	if err != nil {
		return common.WrapErrorf(err, "failed to update site %s", site.ID)
	}
	if err := expectRow(res); err != nil {
		return err
	}

	updated, err := s.GetSite(ctx, site.ID)
	if err != nil {
		return err
	}
	*site = *updated
	return nil
}

func (s *SQLiteStore) UpdateSiteRun(ctx context.Context, id string, update models.SiteRunUpdate) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sites SET last_run_at = ?, next_run_at = ?,
		last_status = ?, last_error = ? WHERE id = ?`,
		update.LastRunAt.UnixNano(), update.NextRunAt.UnixNano(), update.Status, update.Error, id)
	if err != nil {
		return common.WrapErrorf(err, "failed to update run state for site %s", id)
	}
	return expectRow(res)
}

func (s *SQLiteStore) DeleteSite(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return common.WrapErrorf(err, "failed to delete site %s", id)
	}
	return expectRow(res)
}

func (s *SQLiteStore) RecordSnapshot(ctx context.Context, snap models.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.SiteID, snap.CapturedAt.UnixNano(), snap.ContentHash, snap.Size,
		snap.ContentType, snap.StatusCode, snap.FinalURL, snap.BackupRef, snap.Truncated)
	if err != nil {
		return common.WrapErrorf(err, "failed to insert snapshot %s", snap.ID)
	}
	return nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, siteID string) (*models.Snapshot, error) {
	snaps, err := s.ListSnapshots(ctx, siteID, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, models.ErrNotFound
	}
	return &snaps[0], nil
}

// ListSnapshots returns a site's snapshots newest first. limit <= 0 means all.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, siteID string, limit int) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE site_id = ? ORDER BY captured_at DESC, rowid DESC LIMIT ?`, siteID, sqlLimit(limit))
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to query snapshots for site %s", siteID)
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		var capturedAt int64
		if err := rows.Scan(&snap.ID, &snap.SiteID, &capturedAt, &snap.ContentHash, &snap.Size,
			&snap.ContentType, &snap.StatusCode, &snap.FinalURL, &snap.BackupRef, &snap.Truncated); err != nil {
			return nil, common.WrapError(err, "failed to scan snapshot")
		}
		snap.CapturedAt = fromUnixNano(capturedAt)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return common.WrapErrorf(err, "failed to delete snapshot %s", id)
	}
	return expectRow(res)
}

func (s *SQLiteStore) CountSnapshotsByHash(ctx context.Context, hash string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE content_hash = ?`, hash).Scan(&count)
	if err != nil {
		return 0, common.WrapErrorf(err, "failed to count snapshots for hash %s", hash)
	}
	return count, nil
}

func (s *SQLiteStore) RecordDiff(ctx context.Context, diff models.DiffResult) error {
	segments, err := nullJSON(diff.Segments, len(diff.Segments))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO diffs (`+diffColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		diff.ID, diff.SiteID, diff.PreviousSnapshotID, diff.NewSnapshotID, diff.Changed,
		diff.ChangeRatio, diff.HashOnly, diff.LinesAdded, diff.LinesRemoved, diff.LinesModified,
		segments, diff.Note, diff.CreatedAt.UnixNano())
	if err != nil {
		return common.WrapErrorf(err, "failed to insert diff %s", diff.ID)
	}
	return nil
}

func (s *SQLiteStore) GetDiff(ctx context.Context, id string) (*models.DiffResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+diffColumns+` FROM diffs WHERE id = ?`, id)
	diff, err := scanDiff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to load diff %s", id)
	}
	return diff, nil
}

func (s *SQLiteStore) ListDiffs(ctx context.Context, siteID string, limit int) ([]models.DiffResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+diffColumns+` FROM diffs
		WHERE site_id = ? ORDER BY rowid DESC LIMIT ?`, siteID, sqlLimit(limit))
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to query diffs for site %s", siteID)
	}
	defer rows.Close()

	var diffs []models.DiffResult
	for rows.Next() {
		diff, err := scanDiff(rows)
		if err != nil {
			return nil, common.WrapError(err, "failed to scan diff")
		}
		diffs = append(diffs, *diff)
	}
	return diffs, rows.Err()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run models.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SiteID, run.JobID, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.Attempts, run.Status, run.Error, run.SnapshotID, run.Changed, run.ChangeRatio, run.Manual)
	if err != nil {
		return common.WrapErrorf(err, "failed to insert run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, siteID string, limit int) ([]models.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE site_id = ? ORDER BY rowid DESC LIMIT ?`, siteID, sqlLimit(limit))
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to query runs for site %s", siteID)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var run models.RunRecord
		var startedAt, finishedAt int64
		if err := rows.Scan(&run.ID, &run.SiteID, &run.JobID, &startedAt, &finishedAt, &run.Attempts,
			&run.Status, &run.Error, &run.SnapshotID, &run.Changed, &run.ChangeRatio, &run.Manual); err != nil {
			return nil, common.WrapError(err, "failed to scan run")
		}
		run.StartedAt = fromUnixNano(startedAt)
		run.FinishedAt = fromUnixNano(finishedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*models.MonitoredSite, error) {
	var site models.MonitoredSite
	var kind string
	var interval, timeout, createdAt, updatedAt int64
	var headers sql.NullString
	var lastRun, nextRun sql.NullInt64
	err := row.Scan(&site.ID, &site.Name, &site.URL, &kind, &interval, &site.Schedule.DailyTime,
		&site.Schedule.Cron, &site.Enabled, &headers, &timeout, &site.FetchOptions.UserAgent,
		&site.RetentionLimit, &site.CompressOld, &site.Notify, &lastRun, &nextRun,
		&site.LastStatus, &site.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	site.Schedule.Kind = models.ScheduleKind(kind)
	site.Schedule.Interval = models.Duration(interval)
	site.FetchOptions.Timeout = models.Duration(timeout)
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &site.FetchOptions.Headers); err != nil {
			return nil, common.WrapError(err, "failed to decode fetch headers")
		}
	}
	site.LastRunAt = timeFromNull(lastRun)
	site.NextRunAt = timeFromNull(nextRun)
	site.CreatedAt = fromUnixNano(createdAt)
	site.UpdatedAt = fromUnixNano(updatedAt)
	return &site, nil
}

func scanDiff(row rowScanner) (*models.DiffResult, error) {
	var diff models.DiffResult
	var segments sql.NullString
	var createdAt int64
	err := row.Scan(&diff.ID, &diff.SiteID, &diff.PreviousSnapshotID, &diff.NewSnapshotID,
		&diff.Changed, &diff.ChangeRatio, &diff.HashOnly, &diff.LinesAdded, &diff.LinesRemoved,
		&diff.LinesModified, &segments, &diff.Note, &createdAt)
	if err != nil {
		return nil, err
	}
	if segments.Valid && segments.String != "" {
		if err := json.Unmarshal([]byte(segments.String), &diff.Segments); err != nil {
			return nil, common.WrapError(err, "failed to decode diff segments")
		}
	}
	diff.CreatedAt = fromUnixNano(createdAt)
	return &diff, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// nullJSON stores empty collections as NULL.
func nullJSON(v any, length int) (sql.NullString, error) {
	if length == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnixNano(v.Int64)
	return &t
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
