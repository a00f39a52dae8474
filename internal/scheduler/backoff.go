package scheduler

import (
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
)

// BackoffPolicy bounds retries of transient crawl failures.
type BackoffPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// BackoffFromConfig builds the policy from the scheduler configuration
func BackoffFromConfig(cfg config.SchedulerConfig) BackoffPolicy {
	return BackoffPolicy{
		Base:        cfg.BackoffBase(),
		Max:         cfg.BackoffMax(),
		MaxAttempts: cfg.MaxAttempts,
	}
}

// Delay returns Base * 2^(attempt-1) capped at Max. attempt is 1-based.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		if p.Max > 0 && delay >= p.Max {
			break
		}
		delay *= 2
	}
	if p.Max > 0 && delay > p.Max {
		delay = p.Max
	}
	return delay
}

// CanRetry reports whether a job that just failed its attempt-th try may run again.
func (p BackoffPolicy) CanRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}
