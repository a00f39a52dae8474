package config

import "time"

// SchedulerConfig defines configuration for the crawl scheduler
type SchedulerConfig struct {
	TickIntervalSecs int `json:"tick_interval_secs,omitempty" yaml:"tick_interval_secs,omitempty" validate:"min=1"`
	MaxWorkers       int `json:"max_workers,omitempty" yaml:"max_workers,omitempty" validate:"min=1,max=256"`
	MaxAttempts      int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" validate:"min=1"`
	BackoffBaseSecs  int `json:"backoff_base_secs,omitempty" yaml:"backoff_base_secs,omitempty" validate:"min=0"`
	BackoffMaxSecs   int `json:"backoff_max_secs,omitempty" yaml:"backoff_max_secs,omitempty" validate:"gtefield=BackoffBaseSecs"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickIntervalSecs: DefaultSchedulerTickIntervalSecs,
		MaxWorkers:       DefaultSchedulerMaxWorkers,
		MaxAttempts:      DefaultSchedulerMaxAttempts,
		BackoffBaseSecs:  DefaultSchedulerBackoffBaseSecs,
		BackoffMaxSecs:   DefaultSchedulerBackoffMaxSecs,
	}
}

// TickInterval returns the tick period as a duration
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSecs) * time.Second
}

// BackoffBase returns the first retry delay
func (c SchedulerConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSecs) * time.Second
}

// BackoffMax returns the retry delay cap
func (c SchedulerConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSecs) * time.Second
}
