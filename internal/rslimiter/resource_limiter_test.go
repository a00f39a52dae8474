package rslimiter

import (
	"context"
	"errors"
	"testing"

	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(heapMB []int64, systemUsed float64, systemErr error) (*ResourceLimiter, *int) {
	cfg := config.NewDefaultResourceLimiterConfig()
	cfg.MaxMemoryMB = 100
	cfg.SystemMemThreshold = 0.9
	rl := NewResourceLimiter(cfg, nil, zerolog.Nop())

	reads := 0
	rl.readHeapMB = func() int64 {
		v := heapMB[reads]
		if reads < len(heapMB)-1 {
			reads++
		}
		return v
	}
	rl.readSystemUsed = func() (float64, error) { return systemUsed, systemErr }
	gcs := 0
	rl.collect = func() { gcs++ }
	return rl, &gcs
}

func TestResourceLimiter_Allow(t *testing.T) {
	tests := []struct {
		name       string
		heapMB     []int64
		systemUsed float64
		systemErr  error
		wantAllow  bool
		wantGC     int
	}{
		{name: "within limits", heapMB: []int64{10}, systemUsed: 0.5, wantAllow: true},
		{name: "system memory over threshold", heapMB: []int64{10}, systemUsed: 0.95, wantAllow: false},
		{name: "system stats unavailable", heapMB: []int64{10}, systemErr: errors.New("no procfs"), wantAllow: true},
		{name: "heap recovered by gc", heapMB: []int64{150, 150, 40, 40}, systemUsed: 0.5, wantAllow: true, wantGC: 1},
		{name: "heap still over after gc", heapMB: []int64{150, 150, 140, 140}, systemUsed: 0.5, wantAllow: false, wantGC: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, gcs := newTestLimiter(tt.heapMB, tt.systemUsed, tt.systemErr)
			assert.Equal(t, tt.wantAllow, rl.Allow())
			assert.Equal(t, tt.wantGC, *gcs)
		})
	}
}

func TestResourceLimiter_DisabledAlwaysAllows(t *testing.T) {
	rl, _ := newTestLimiter([]int64{1000}, 0.99, nil)
	rl.config.Enabled = false
	assert.True(t, rl.Allow())
}

func TestResourceLimiter_DefaultsFilled(t *testing.T) {
	rl := NewResourceLimiter(config.ResourceLimiterConfig{Enabled: true}, nil, zerolog.Nop())
	assert.Equal(t, int64(1024), rl.config.MaxMemoryMB)
	assert.Equal(t, 0.95, rl.config.SystemMemThreshold)
}

func TestResourceLimiter_StartAndStop(t *testing.T) {
	rl := NewResourceLimiter(config.NewDefaultResourceLimiterConfig(), nil, zerolog.Nop())

	rl.Start(context.Background())
	rl.Start(context.Background())
	assert.True(t, rl.running())

	rl.Stop()
	assert.False(t, rl.running())
	rl.Stop()
}

func TestResourceLimiter_ThrottleStateAndMetrics(t *testing.T) {
	cfg := config.NewDefaultResourceLimiterConfig()
	cfg.SystemMemThreshold = 0.9
	m := metrics.New()
	rl := NewResourceLimiter(cfg, m, zerolog.Nop())
	rl.readHeapMB = func() int64 { return 10 }

	used := 0.95
	rl.readSystemUsed = func() (float64, error) { return used, nil }

	assert.False(t, rl.Allow())
	assert.False(t, rl.Allow())
	assert.Equal(t, ReasonSystem, rl.Throttled())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchThrottled(ReasonSystem)))

	used = 0.5
	assert.True(t, rl.Allow())
	assert.Empty(t, rl.Throttled())
}

func TestSample(t *testing.T) {
	u := Sample()
	require.Positive(t, u.Goroutines)
	assert.GreaterOrEqual(t, u.RuntimeSysMB, u.HeapMB)
}
