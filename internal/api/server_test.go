package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aleister1102/siteguardian/internal/backup"
	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/datastore"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"
	"github.com/aleister1102/siteguardian/internal/scheduler"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrawls struct {
	store       models.MetadataStore
	err         error
	trigger     []string
	rescheduled []string
}

func (f *fakeCrawls) Reschedule(_ context.Context, siteID string) error {
	f.rescheduled = append(f.rescheduled, siteID)
	return nil
}

func (f *fakeCrawls) TriggerManualCrawl(_ context.Context, siteID string) (models.CrawlJob, error) {
	if f.err != nil {
		return models.CrawlJob{}, f.err
	}
	f.trigger = append(f.trigger, siteID)
	return models.CrawlJob{ID: "job-1", SiteID: siteID, Attempt: 1, State: models.JobRunning, Manual: true}, nil
}

func (f *fakeCrawls) GetHistory(ctx context.Context, siteID string, limit int) (*models.History, error) {
	site, err := f.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	runs, err := f.store.ListRuns(ctx, siteID, limit)
	if err != nil {
		return nil, err
	}
	return &models.History{Site: *site, Runs: runs}, nil
}

type testAPI struct {
	server  *httptest.Server
	store   *datastore.MemoryStore
	backups *backup.Store
	crawls  *fakeCrawls
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := datastore.NewMemoryStore()
	cfg := config.NewDefaultBackupConfig()
	cfg.Root = t.TempDir()
	backups, err := backup.NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backups.Close() })

	crawls := &fakeCrawls{store: store}
	srv, err := NewServerBuilder(zerolog.Nop()).
		WithStore(store).
		WithCrawlService(crawls).
		WithBackupStore(backups).
		WithMetrics(metrics.New()).
		Build()
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{server: ts, store: store, backups: backups, crawls: crawls}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testAPI) createSite(t *testing.T, body string) models.MonitoredSite {
	t.Helper()
	resp, data := a.do(t, http.MethodPost, "/sites", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var site models.MonitoredSite
	require.NoError(t, json.Unmarshal(data, &site))
	return site
}

func TestServer_SiteCRUD(t *testing.T) {
	api := newTestAPI(t)

	site := api.createSite(t, `{"url":"https://example.com/terms","name":"Terms","schedule":{"kind":"interval","interval":"15m"}}`)
	assert.NotEmpty(t, site.ID)
	assert.True(t, site.Enabled)
	assert.Equal(t, 15*time.Minute, site.Schedule.Interval.Std())
	assert.Equal(t, models.DefaultRetentionLimit, site.RetentionLimit)

	normalized := api.createSite(t, `{"url":"Example.ORG/pricing?utm_source=mail#plans"}`)
	assert.Equal(t, "https://example.org/pricing", normalized.URL)

	resp, data := api.do(t, http.MethodGet, "/sites/"+site.ID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"name":"Terms"`)

	resp, data = api.do(t, http.MethodPatch, "/sites/"+site.ID, `{"enabled":false,"retention_limit":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	got, err := api.store.GetSite(context.Background(), site.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, 3, got.RetentionLimit)
	assert.Equal(t, "https://example.com/terms", got.URL)
	assert.Empty(t, api.crawls.rescheduled, "schedule untouched")

	resp, data = api.do(t, http.MethodPatch, "/sites/"+site.ID, `{"schedule":{"kind":"interval","interval":"1m"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, []string{site.ID}, api.crawls.rescheduled)

	resp, data = api.do(t, http.MethodGet, "/sites", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sites []models.MonitoredSite `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list.Sites, 2)

	resp, _ = api.do(t, http.MethodDelete, "/sites/"+site.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = api.do(t, http.MethodGet, "/sites/"+site.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CreateSiteValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing url", body: `{"name":"x"}`},
		{name: "not json", body: `{`},
		{name: "unknown field", body: `{"url":"https://example.com","colour":"red"}`},
		{name: "unsupported scheme", body: `{"url":"ftp://example.com/file"}`},
		{name: "interval too short", body: `{"url":"https://example.com","schedule":{"kind":"interval","interval":"10s"}}`},
		{name: "bad cron", body: `{"url":"https://example.com","schedule":{"kind":"cron","cron":"not cron"}}`},
		{name: "negative retention", body: `{"url":"https://example.com","retention_limit":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := api.do(t, http.MethodPost, "/sites", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
		})
	}
}

func TestServer_TriggerCrawl(t *testing.T) {
	api := newTestAPI(t)
	site := api.createSite(t, `{"url":"https://example.com"}`)

	resp, data := api.do(t, http.MethodPost, "/sites/"+site.ID+"/crawl", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, string(data), `"manual":true`)
	assert.Equal(t, []string{site.ID}, api.crawls.trigger)

	tests := []struct {
		err    error
		status int
	}{
		{err: models.ErrCrawlInProgress, status: http.StatusConflict},
		{err: models.ErrSiteDisabled, status: http.StatusConflict},
		{err: models.ErrNotFound, status: http.StatusNotFound},
		{err: scheduler.ErrStopped, status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		api.crawls.err = tt.err
		resp, _ := api.do(t, http.MethodPost, "/sites/"+site.ID+"/crawl", "")
		assert.Equal(t, tt.status, resp.StatusCode, tt.err.Error())
	}
}

func TestServer_History(t *testing.T) {
	api := newTestAPI(t)
	site := api.createSite(t, `{"url":"https://example.com"}`)
	require.NoError(t, api.store.RecordRun(context.Background(), models.RunRecord{ID: "r1", SiteID: site.ID, Status: models.RunSucceeded}))

	resp, data := api.do(t, http.MethodGet, "/sites/"+site.ID+"/history?limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history models.History
	require.NoError(t, json.Unmarshal(data, &history))
	assert.Equal(t, site.ID, history.Site.ID)
	assert.Len(t, history.Runs, 1)

	resp, _ = api.do(t, http.MethodGet, "/sites/"+site.ID+"/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = api.do(t, http.MethodGet, "/sites/missing/history", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_SnapshotAndDiffReport(t *testing.T) {
	ctx := context.Background()
	api := newTestAPI(t)
	site := api.createSite(t, `{"url":"https://example.com"}`)

	oldBody, newBody := []byte("alpha\nbeta\n"), []byte("alpha\ngamma\n")
	oldHash, newHash := common.ContentHash(oldBody), common.ContentHash(newBody)
	_, err := api.backups.Put(oldHash, oldBody)
	require.NoError(t, err)
	_, err = api.backups.Put(newHash, newBody)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, api.store.RecordSnapshot(ctx, models.Snapshot{ID: "s1", SiteID: site.ID, ContentHash: oldHash, CapturedAt: now}))
	require.NoError(t, api.store.RecordSnapshot(ctx, models.Snapshot{ID: "s2", SiteID: site.ID, ContentHash: newHash, CapturedAt: now.Add(time.Minute)}))
	require.NoError(t, api.store.RecordDiff(ctx, models.DiffResult{ID: "d1", SiteID: site.ID, PreviousSnapshotID: "s1", NewSnapshotID: "s2", Changed: true}))

	resp, data := api.do(t, http.MethodGet, "/snapshots/"+oldHash, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Equal(oldBody, data))
	assert.Equal(t, oldHash, resp.Header.Get("X-Content-Hash"))

	resp, _ = api.do(t, http.MethodGet, "/snapshots/"+strings.Repeat("0", 64), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = api.do(t, http.MethodGet, "/snapshots/not-a-hash", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = api.do(t, http.MethodGet, "/sites/"+site.ID+"/diffs/d1/html", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(data), "gamma")

	resp, _ = api.do(t, http.MethodGet, "/sites/other/diffs/d1/html", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	resp, data := api.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	resp, data = api.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "siteguardian_http_requests_total")
}

func TestServerBuilder_Validation(t *testing.T) {
	_, err := NewServerBuilder(zerolog.Nop()).Build()
	assert.Error(t, err)

	_, err = NewServerBuilder(zerolog.Nop()).WithStore(datastore.NewMemoryStore()).Build()
	assert.Error(t, err)
}
