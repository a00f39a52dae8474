package rslimiter

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/metrics"

	"github.com/rs/zerolog"
)

// DefaultCheckInterval is how often the background monitor logs usage.
const DefaultCheckInterval = 30 * time.Second

// Throttle reasons, also used as metric labels.
const (
	ReasonSystem = "system"
	ReasonHeap   = "heap"
)

// ResourceLimiter guards dispatch rounds against memory pressure. When the Go
// heap is over its limit a forced GC gets one chance to bring it back.
// Refused rounds are logged when throttling starts and when it ends, not on
// every tick.
type ResourceLimiter struct {
	config        config.ResourceLimiterConfig
	checkInterval time.Duration
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	readHeapMB     func() int64
	readSystemUsed func() (float64, error)
	collect        func()

	mu        sync.Mutex
	throttled string
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewResourceLimiter(cfg config.ResourceLimiterConfig, m *metrics.Metrics, logger zerolog.Logger) *ResourceLimiter {
	defaults := config.NewDefaultResourceLimiterConfig()
	if cfg.MaxMemoryMB == 0 {
		cfg.MaxMemoryMB = defaults.MaxMemoryMB
	}
	if cfg.SystemMemThreshold == 0 {
		cfg.SystemMemThreshold = defaults.SystemMemThreshold
	}

	return &ResourceLimiter{
		config:         cfg,
		checkInterval:  DefaultCheckInterval,
		metrics:        m,
		logger:         logger.With().Str("component", "ResourceLimiter").Logger(),
		readHeapMB:     heapMB,
		readSystemUsed: systemUsed,
		collect:        runtime.GC,
	}
}

// Allow reports whether a dispatch round may start new jobs.
func (rl *ResourceLimiter) Allow() bool {
	if !rl.config.Enabled {
		return true
	}
	reason := rl.check()
	rl.transition(reason)
	if reason != "" {
		rl.metrics.IncThrottled(reason)
		return false
	}
	return true
}

// check returns the throttle reason, or "" when dispatch may proceed.
func (rl *ResourceLimiter) check() string {
	used, err := rl.readSystemUsed()
	switch {
	case err != nil:
		// unreadable host stats never block crawling
		rl.logger.Error().Err(err).Msg("Failed to read system memory stats")
	case used > rl.config.SystemMemThreshold:
		return ReasonSystem
	}

	if rl.readHeapMB() <= rl.config.MaxMemoryMB {
		return ""
	}
	before := rl.readHeapMB()
	rl.collect()
	after := rl.readHeapMB()
	rl.logger.Info().
		Int64("before_mb", before).
		Int64("after_mb", after).
		Msg("Forced garbage collection")
	if after > rl.config.MaxMemoryMB {
		return ReasonHeap
	}
	return ""
}

func (rl *ResourceLimiter) transition(reason string) {
	rl.mu.Lock()
	prev := rl.throttled
	rl.throttled = reason
	rl.mu.Unlock()

	switch {
	case prev == "" && reason != "":
		rl.logger.Warn().
			Str("reason", reason).
			Int64("max_memory_mb", rl.config.MaxMemoryMB).
			Float64("system_mem_threshold", rl.config.SystemMemThreshold).
			Msg("Memory pressure, pausing dispatch")
	case prev != "" && reason == "":
		rl.logger.Info().Str("previous_reason", prev).Msg("Memory pressure relieved, resuming dispatch")
	}
}

// Throttled returns the current throttle reason, "" when dispatch is allowed.
func (rl *ResourceLimiter) Throttled() string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.throttled
}

// Start logs usage every check interval until ctx ends or Stop is called.
func (rl *ResourceLimiter) Start(ctx context.Context) {
	rl.mu.Lock()
	if rl.done != nil {
		rl.mu.Unlock()
		return
	}
	ctx, rl.cancel = context.WithCancel(ctx)
	rl.done = make(chan struct{})
	done := rl.done
	rl.mu.Unlock()

	go rl.monitor(ctx, done)

	rl.logger.Info().
		Bool("enabled", rl.config.Enabled).
		Int64("max_memory_mb", rl.config.MaxMemoryMB).
		Float64("system_mem_threshold", rl.config.SystemMemThreshold).
		Dur("check_interval", rl.checkInterval).
		Msg("Resource limiter started")
}

// Stop ends the monitor and waits for it. It is safe to call more than once.
func (rl *ResourceLimiter) Stop() {
	rl.mu.Lock()
	cancel, done := rl.cancel, rl.done
	rl.cancel, rl.done = nil, nil
	rl.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	rl.logger.Info().Msg("Resource limiter stopped")
}

func (rl *ResourceLimiter) running() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.done != nil
}

func (rl *ResourceLimiter) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(rl.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.logUsage(Sample())
		}
	}
}

func (rl *ResourceLimiter) logUsage(u Usage) {
	if u.HeapMB > rl.config.MaxMemoryMB*8/10 {
		rl.logger.Warn().
			Int64("heap_mb", u.HeapMB).
			Int64("limit_mb", rl.config.MaxMemoryMB).
			Msg("Heap approaching limit")
	}
	rl.logger.Debug().
		Int64("heap_mb", u.HeapMB).
		Int64("runtime_sys_mb", u.RuntimeSysMB).
		Int("goroutines", u.Goroutines).
		Uint32("gc_cycles", u.GCCycles).
		Float64("system_used", u.SystemUsed).
		Msg("Resource usage")
}
