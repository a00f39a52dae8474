package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// runJob executes one attempt of a job on a pool worker.
func (s *Scheduler) runJob(ctx context.Context, siteID, jobID string) {
	unlock := s.siteLocks.Lock(siteID)
	defer unlock()

	s.metrics.IncInflight()
	defer s.metrics.DecInflight()

	log := s.logger.With().Str("site_id", siteID).Str("job_id", jobID).Logger()
	// Bookkeeping outlives shutdown cancellation of the crawl itself.
	bookCtx := context.WithoutCancel(ctx)

	site, err := s.store.GetSite(bookCtx, siteID)
	if errors.Is(err, models.ErrNotFound) {
		log.Info().Msg("Site was deleted before its job ran, dropping job")
		s.mu.Lock()
		s.dropLocked(siteID, jobID)
		s.mu.Unlock()
		return
	}

	start := s.clock.Now()
	var outcome *models.CrawlOutcome
	if err == nil {
		outcome, err = s.crawler.RunCrawl(ctx, *site)
	}
	duration := s.clock.Now().Sub(start)

	if err != nil {
		if ctx.Err() != nil {
			log.Info().Err(err).Msg("Crawl interrupted by shutdown, dropping job")
			s.mu.Lock()
			s.dropLocked(siteID, jobID)
			s.mu.Unlock()
			return
		}
		if site == nil {
			log.Error().Err(err).Msg("Failed to load site for job")
			s.mu.Lock()
			job, lookupErr := s.lookupLocked(siteID, jobID)
			if lookupErr == nil {
				s.finishLocked(job, models.JobFailed, err.Error())
			}
			s.mu.Unlock()
			return
		}
		if s.retryLater(siteID, jobID, err, log) {
			s.metrics.ObserveCrawl(metrics.ResultRetried, duration)
			return
		}
		s.handleFailure(bookCtx, *site, jobID, err, start, log)
		s.metrics.ObserveCrawl(metrics.ResultFailed, duration)
		return
	}

	result := s.handleSuccess(bookCtx, *site, jobID, outcome, start, log)
	s.metrics.ObserveCrawl(result, duration)
}

// retryLater moves the job to Retrying when err is transient and attempts
// remain.
func (s *Scheduler) retryLater(siteID, jobID string, err error, log zerolog.Logger) bool {
	if !models.IsTransient(err) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, lookupErr := s.lookupLocked(siteID, jobID)
	if lookupErr != nil || !s.backoff.CanRetry(job.Attempt) {
		return false
	}

	delay := s.backoff.Delay(job.Attempt)
	retryAt := s.clock.Now().Add(delay)
	job.State = models.JobRetrying
	job.RetryAt = &retryAt
	job.LastError = err.Error()
	job.Backoffs = append(job.Backoffs, delay)

	log.Warn().
		Err(err).
		Int("attempt", job.Attempt).
		Int("max_attempts", s.backoff.MaxAttempts).
		Dur("backoff", delay).
		Time("retry_at", retryAt).
		Msg("Transient crawl failure, scheduling retry")
	return true
}

func (s *Scheduler) handleFailure(ctx context.Context, site models.MonitoredSite, jobID string, runErr error, start time.Time, log zerolog.Logger) {
	now := s.clock.Now()
	next := s.nextRun(site, now, log)

	if err := s.store.UpdateSiteRun(ctx, site.ID, models.SiteRunUpdate{
		LastRunAt: now,
		NextRunAt: next,
		Status:    models.SiteStatusFailed,
		Error:     runErr.Error(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to update site after failed crawl")
	}

	s.mu.Lock()
	job, lookupErr := s.lookupLocked(site.ID, jobID)
	var attempts int
	var manual bool
	if lookupErr == nil {
		attempts, manual = job.Attempt, job.Manual
		s.finishLocked(job, models.JobFailed, runErr.Error())
	}
	s.mu.Unlock()

	s.recordRun(ctx, models.RunRecord{
		SiteID:     site.ID,
		JobID:      jobID,
		StartedAt:  start,
		FinishedAt: now,
		Attempts:   attempts,
		Status:     models.RunFailed,
		Error:      runErr.Error(),
		Manual:     manual,
	}, log)

	log.Error().Err(runErr).Int("attempts", attempts).Time("next_run_at", next).Msg("Crawl job failed")

	if s.notifier != nil {
		if err := s.notifier.NotifyFailure(ctx, site, runErr); err != nil {
			log.Warn().Err(err).Msg("Failed to deliver failure notification")
		}
	}
}

func (s *Scheduler) handleSuccess(ctx context.Context, site models.MonitoredSite, jobID string, outcome *models.CrawlOutcome, start time.Time, log zerolog.Logger) string {
	now := s.clock.Now()
	next := s.nextRun(site, now, log)
	status, result := outcomeStatus(outcome)

	if outcome.Diff != nil {
		if err := s.store.RecordDiff(ctx, *outcome.Diff); err != nil {
			log.Error().Err(err).Msg("Failed to record diff")
		}
	}
	if err := s.store.UpdateSiteRun(ctx, site.ID, models.SiteRunUpdate{
		LastRunAt: now,
		NextRunAt: next,
		Status:    status,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to update site after crawl")
	}

	if outcome.Changed && site.Notify && s.notifier != nil && outcome.Diff != nil {
		if outcome.Diff.ChangeRatio >= s.changeThreshold() {
			if err := s.notifier.Notify(ctx, site, *outcome.Diff); err != nil {
				log.Warn().Err(err).Msg("Failed to deliver change notification")
			}
		} else {
			log.Debug().Float64("change_ratio", outcome.Diff.ChangeRatio).Msg("Change below notification threshold")
		}
	}

	if s.retention != nil {
		report, err := s.retention.Apply(ctx, site)
		if err != nil {
			log.Warn().Err(err).Msg("Retention failed")
		} else if report.DeletedSnapshots > 0 || report.Archived > 0 {
			log.Info().
				Int("snapshots_deleted", report.DeletedSnapshots).
				Int("objects_deleted", report.DeletedObjects).
				Int("archived", report.Archived).
				Msg("Retention applied")
		}
	}

	s.mu.Lock()
	job, lookupErr := s.lookupLocked(site.ID, jobID)
	var attempts int
	var manual bool
	if lookupErr == nil {
		attempts, manual = job.Attempt, job.Manual
		s.finishLocked(job, models.JobSucceeded, "")
	}
	s.mu.Unlock()

	run := models.RunRecord{
		SiteID:     site.ID,
		JobID:      jobID,
		StartedAt:  start,
		FinishedAt: now,
		Attempts:   attempts,
		Status:     models.RunSucceeded,
		SnapshotID: outcome.Snapshot.ID,
		Changed:    outcome.Changed,
		Manual:     manual,
	}
	if outcome.Diff != nil {
		run.ChangeRatio = outcome.Diff.ChangeRatio
	}
	s.recordRun(ctx, run, log)

	log.Info().
		Str("status", status).
		Int("attempts", attempts).
		Time("next_run_at", next).
		Msg("Crawl job succeeded")
	return result
}

// nextRun advances the schedule from now. A schedule that cannot produce a
// time falls back to the default interval so the site does not spin.
func (s *Scheduler) nextRun(site models.MonitoredSite, now time.Time, log zerolog.Logger) time.Time {
	next, err := site.Schedule.Next(now)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid schedule, falling back to default interval")
		return now.Add(models.DefaultScheduleInterval)
	}
	return next
}

func (s *Scheduler) recordRun(ctx context.Context, run models.RunRecord, log zerolog.Logger) {
	run.ID = uuid.NewString()
	if err := s.store.RecordRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to record run")
	}
}
