package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aleister1102/siteguardian/internal/backup"
	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRunning = errors.New("scheduler is already running")
	// ErrStopped is returned for work submitted after Stop.
	ErrStopped = errors.New("scheduler is stopped")
)

// CrawlRunner executes one crawl cycle for a site.
type CrawlRunner interface {
	RunCrawl(ctx context.Context, site models.MonitoredSite) (*models.CrawlOutcome, error)
}

// Retention trims a site's stored history after a successful crawl.
type Retention interface {
	Apply(ctx context.Context, site models.MonitoredSite) (backup.RetentionReport, error)
}

// Guard decides whether a dispatch round may start new jobs.
type Guard interface {
	Allow() bool
}

// Scheduler owns the crawl job table. Every site has at most one outstanding
// job; jobs run on a bounded pool and jobs of the same site never overlap.
type Scheduler struct {
	store          models.MetadataStore
	crawler        CrawlRunner
	notifier       models.Notifier
	retention      Retention
	guard          Guard
	metrics        *metrics.Metrics
	clock          Clock
	backoff        BackoffPolicy
	tickInterval   time.Duration
	minChangeRatio float64
	logger         zerolog.Logger

	mu        sync.Mutex
	jobs      map[string]*models.CrawlJob
	finished  map[string]models.CrawlJob
	siteLocks *common.KeyedMutex
	pool      *errgroup.Group

	jobCtx     context.Context
	cancelJobs context.CancelFunc
	running    bool
	stopped    bool
	stopCh     chan struct{}
	loopDone   chan struct{}
}

// Tick examines all sites at now. It drops queued jobs of sites that were
// disabled or deleted, moves retries whose backoff elapsed back to Pending and
// enqueues one job per due site without an outstanding job. It returns the
// number of newly enqueued jobs.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sites for tick")
		return 0, common.WrapError(err, "failed to list sites")
	}
	byID := make(map[string]models.MonitoredSite, len(sites))
	for _, site := range sites {
		byID[site.ID] = site
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for siteID, job := range s.jobs {
		if job.State != models.JobPending && job.State != models.JobRetrying {
			continue
		}
		if site, ok := byID[siteID]; !ok || !site.Enabled {
			s.logger.Info().Str("site_id", siteID).Str("job_id", job.ID).Str("state", string(job.State)).Msg("Dropping queued job of disabled or deleted site")
			delete(s.jobs, siteID)
		}
	}

	s.promoteRetriesLocked(now)

	enqueued := 0
	for _, site := range sites {
		if !site.IsDue(now) {
			continue
		}
		if _, busy := s.jobs[site.ID]; busy {
			continue
		}
		s.jobs[site.ID] = newJob(site.ID, now, false)
		enqueued++
	}

	active := make([]string, 0, len(s.jobs))
	for siteID := range s.jobs {
		active = append(active, siteID)
	}
	s.siteLocks.Retain(active)

	if enqueued > 0 {
		s.logger.Debug().Int("enqueued", enqueued).Int("outstanding", len(s.jobs)).Msg("Tick enqueued jobs")
	}
	return enqueued, nil
}

func (s *Scheduler) promoteRetriesLocked(now time.Time) {
	for _, job := range s.jobs {
		if job.State != models.JobRetrying || job.RetryAt == nil || job.RetryAt.After(now) {
			continue
		}
		job.State = models.JobPending
		job.Attempt++
		job.RetryAt = nil
	}
}

// Dispatch starts Pending jobs on the worker pool until it is full. Jobs left
// over stay Pending for the next round. It returns how many jobs started.
func (s *Scheduler) Dispatch(ctx context.Context) int {
	if s.guard != nil && !s.guard.Allow() {
		s.logger.Warn().Msg("Resource guard rejected dispatch round, jobs stay pending")
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*models.CrawlJob
	for _, job := range s.jobs {
		if job.State == models.JobPending {
			pending = append(pending, job)
		}
	}
	pendingOrder(pending)

	started := 0
	for _, job := range pending {
		siteID, jobID := job.SiteID, job.ID
		if !s.pool.TryGo(func() error {
			s.runJob(ctx, siteID, jobID)
			return nil
		}) {
			break
		}
		now := s.clock.Now()
		job.State = models.JobRunning
		job.StartedAt = &now
		started++
	}
	return started
}

// Wait blocks until every started job has finished.
func (s *Scheduler) Wait() {
	s.pool.Wait()
}

// Start runs the tick loop until ctx is cancelled or Stop is called. It
// ticks once immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Dur("tick_interval", s.tickInterval).
		Int("max_attempts", s.backoff.MaxAttempts).
		Msg("Starting crawl scheduler")

	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.tickAndDispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Context cancelled, exiting scheduler loop")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("Stop signal received, exiting scheduler loop")
			return
		case <-ticker.C:
			s.tickAndDispatch(ctx)
		}
	}
}

func (s *Scheduler) tickAndDispatch(ctx context.Context) {
	if _, err := s.Tick(ctx, s.clock.Now()); err != nil {
		return
	}
	s.Dispatch(s.jobCtx)
}

// RunOnce ticks, runs every enqueued job to a terminal state including
// retries, and returns. It is meant for one-shot CLI runs.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if _, err := s.Tick(ctx, s.clock.Now()); err != nil {
		return err
	}
	for {
		s.Dispatch(ctx)
		s.Wait()

		s.mu.Lock()
		var nextRetry *time.Time
		for _, job := range s.jobs {
			if job.RetryAt != nil && (nextRetry == nil || job.RetryAt.Before(*nextRetry)) {
				t := *job.RetryAt
				nextRetry = &t
			}
		}
		outstanding := len(s.jobs)
		s.mu.Unlock()

		if outstanding == 0 {
			return nil
		}
		wait := s.tickInterval
		if nextRetry != nil {
			wait = nextRetry.Sub(s.clock.Now())
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.mu.Lock()
		s.promoteRetriesLocked(s.clock.Now())
		s.mu.Unlock()
	}
}

// Stop ends the tick loop and waits for running jobs. When ctx expires first
// the running jobs are cancelled; they are then dropped without recording a
// failure.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	wasRunning := s.running
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping scheduler, waiting for running jobs")
	if wasRunning {
		<-s.loopDone
	}

	done := make(chan struct{})
	go func() {
		s.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelJobs()
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached, cancelling running jobs")
		s.cancelJobs()
		<-done
		return ctx.Err()
	}
}

// TriggerManualCrawl enqueues an immediate job for an enabled site and
// dispatches it. It fails with ErrCrawlInProgress while the site has an
// outstanding job.
func (s *Scheduler) TriggerManualCrawl(ctx context.Context, siteID string) (models.CrawlJob, error) {
	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return models.CrawlJob{}, err
	}
	if !site.Enabled {
		return models.CrawlJob{}, models.ErrSiteDisabled
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return models.CrawlJob{}, ErrStopped
	}
	if _, busy := s.jobs[siteID]; busy {
		s.mu.Unlock()
		return models.CrawlJob{}, models.ErrCrawlInProgress
	}
	job := newJob(siteID, s.clock.Now(), true)
	s.jobs[siteID] = job
	s.mu.Unlock()

	s.logger.Info().Str("site_id", siteID).Str("job_id", job.ID).Msg("Manual crawl requested")
	s.Dispatch(s.jobCtx)

	current, _ := s.Job(siteID)
	return current, nil
}

// Job returns a copy of the site's outstanding job or, when none is
// outstanding, its most recent finished job.
func (s *Scheduler) Job(siteID string) (models.CrawlJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[siteID]; ok {
		return job.Clone(), true
	}
	if job, ok := s.finished[siteID]; ok {
		return job.Clone(), true
	}
	return models.CrawlJob{}, false
}

// SetMinChangeRatio changes the notification threshold for jobs finishing
// from now on.
func (s *Scheduler) SetMinChangeRatio(ratio float64) {
	s.mu.Lock()
	s.minChangeRatio = ratio
	s.mu.Unlock()
}

func (s *Scheduler) changeThreshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minChangeRatio
}

// Outstanding returns copies of all non-terminal jobs.
func (s *Scheduler) Outstanding() []models.CrawlJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CrawlJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	return out
}

// Reschedule re-arms a site after its schedule was edited: next_run_at is
// recomputed from the last run with the new schedule. A site with an
// outstanding job is left alone; the job computes next_run_at from the new
// schedule when it finishes. Sites that never ran are already due.
func (s *Scheduler) Reschedule(ctx context.Context, siteID string) error {
	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.jobs[siteID]; busy || site.LastRunAt == nil {
		return nil
	}

	log := s.logger.With().Str("site_id", siteID).Logger()
	next := s.nextRun(*site, *site.LastRunAt, log)
	if err := s.store.UpdateSiteRun(ctx, siteID, models.SiteRunUpdate{
		LastRunAt: *site.LastRunAt,
		NextRunAt: next,
		Status:    site.LastStatus,
		Error:     site.LastError,
	}); err != nil {
		return common.WrapErrorf(err, "failed to reschedule site %s", siteID)
	}
	log.Info().Time("next_run_at", next).Str("schedule", site.Schedule.String()).Msg("Site rescheduled")
	return nil
}

// GetHistory returns the site with its snapshots, diffs and runs, newest
// first. limit <= 0 uses DefaultHistoryLimit.
func (s *Scheduler) GetHistory(ctx context.Context, siteID string, limit int) (*models.History, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, siteID, limit)
	if err != nil {
		return nil, err
	}
	diffs, err := s.store.ListDiffs(ctx, siteID, limit)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.ListRuns(ctx, siteID, limit)
	if err != nil {
		return nil, err
	}
	return &models.History{Site: *site, Snapshots: snaps, Diffs: diffs, Runs: runs}, nil
}

func newJob(siteID string, now time.Time, manual bool) *models.CrawlJob {
	return &models.CrawlJob{
		ID:          uuid.NewString(),
		SiteID:      siteID,
		ScheduledAt: now,
		Attempt:     1,
		State:       models.JobPending,
		Manual:      manual,
	}
}

// finishLocked records the terminal job and frees the site's slot.
func (s *Scheduler) finishLocked(job *models.CrawlJob, state models.JobState, lastErr string) {
	job.State = state
	job.LastError = lastErr
	job.RetryAt = nil
	s.finished[job.SiteID] = job.Clone()
	if current, ok := s.jobs[job.SiteID]; ok && current.ID == job.ID {
		delete(s.jobs, job.SiteID)
	}
}

// dropLocked removes a job without recording it as finished.
func (s *Scheduler) dropLocked(siteID, jobID string) {
	if current, ok := s.jobs[siteID]; ok && current.ID == jobID {
		delete(s.jobs, siteID)
	}
}

var errJobGone = errors.New("job no longer outstanding")

// lookupLocked returns the outstanding job with jobID.
func (s *Scheduler) lookupLocked(siteID, jobID string) (*models.CrawlJob, error) {
	job, ok := s.jobs[siteID]
	if !ok || job.ID != jobID {
		return nil, errJobGone
	}
	return job, nil
}

// SchedulerBuilder provides a fluent interface for creating Scheduler instances
type SchedulerBuilder struct {
	store          models.MetadataStore
	crawler        CrawlRunner
	notifier       models.Notifier
	retention      Retention
	guard          Guard
	metrics        *metrics.Metrics
	clock          Clock
	cfg            config.SchedulerConfig
	minChangeRatio float64
	logger         zerolog.Logger
}

// NewSchedulerBuilder creates a new SchedulerBuilder instance
func NewSchedulerBuilder(logger zerolog.Logger) *SchedulerBuilder {
	return &SchedulerBuilder{
		clock:  SystemClock(),
		cfg:    config.NewDefaultSchedulerConfig(),
		logger: logger.With().Str("component", "Scheduler").Logger(),
	}
}

// WithStore sets the metadata store
func (b *SchedulerBuilder) WithStore(store models.MetadataStore) *SchedulerBuilder {
	b.store = store
	return b
}

// WithCrawler sets the crawl runner
func (b *SchedulerBuilder) WithCrawler(crawler CrawlRunner) *SchedulerBuilder {
	b.crawler = crawler
	return b
}

// WithNotifier sets the change and failure notifier
func (b *SchedulerBuilder) WithNotifier(notifier models.Notifier) *SchedulerBuilder {
	b.notifier = notifier
	return b
}

// WithRetention enables retention after successful crawls
func (b *SchedulerBuilder) WithRetention(retention Retention) *SchedulerBuilder {
	b.retention = retention
	return b
}

// WithGuard sets the dispatch resource guard
func (b *SchedulerBuilder) WithGuard(guard Guard) *SchedulerBuilder {
	b.guard = guard
	return b
}

// WithMetrics sets the metrics sink
func (b *SchedulerBuilder) WithMetrics(m *metrics.Metrics) *SchedulerBuilder {
	b.metrics = m
	return b
}

// WithClock overrides the time source
func (b *SchedulerBuilder) WithClock(clock Clock) *SchedulerBuilder {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// WithSchedulerConfig sets pool size, tick period and retry policy
func (b *SchedulerBuilder) WithSchedulerConfig(cfg config.SchedulerConfig) *SchedulerBuilder {
	b.cfg = cfg
	return b
}

// WithMinChangeRatio sets the ratio a change must reach to be notified
func (b *SchedulerBuilder) WithMinChangeRatio(ratio float64) *SchedulerBuilder {
	b.minChangeRatio = ratio
	return b
}

// Build creates a new Scheduler instance
func (b *SchedulerBuilder) Build() (*Scheduler, error) {
	switch {
	case b.store == nil:
		return nil, common.NewValidationError("store", nil, "metadata store cannot be nil")
	case b.crawler == nil:
		return nil, common.NewValidationError("crawler", nil, "crawler cannot be nil")
	case b.cfg.MaxWorkers < 1:
		return nil, common.NewValidationError("max_workers", b.cfg.MaxWorkers, "max workers must be at least 1")
	case b.cfg.MaxAttempts < 1:
		return nil, common.NewValidationError("max_attempts", b.cfg.MaxAttempts, "max attempts must be at least 1")
	case b.cfg.TickInterval() <= 0:
		return nil, common.NewValidationError("tick_interval_secs", b.cfg.TickIntervalSecs, "tick interval must be positive")
	}

	pool := &errgroup.Group{}
	pool.SetLimit(b.cfg.MaxWorkers)
	jobCtx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:          b.store,
		crawler:        b.crawler,
		notifier:       b.notifier,
		retention:      b.retention,
		guard:          b.guard,
		metrics:        b.metrics,
		clock:          b.clock,
		backoff:        BackoffFromConfig(b.cfg),
		tickInterval:   b.cfg.TickInterval(),
		minChangeRatio: b.minChangeRatio,
		logger:         b.logger,
		jobs:           make(map[string]*models.CrawlJob),
		finished:       make(map[string]models.CrawlJob),
		siteLocks:      common.NewKeyedMutex(),
		pool:           pool,
		jobCtx:         jobCtx,
		cancelJobs:     cancel,
		stopCh:         make(chan struct{}),
		loopDone:       make(chan struct{}),
	}, nil
}
