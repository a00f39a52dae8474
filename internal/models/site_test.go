package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitoredSite_Validate(t *testing.T) {
	valid := NewMonitoredSite("https://example.com/page", IntervalSchedule(time.Minute))
	assert.NoError(t, valid.Validate())

	noScheme := valid
	noScheme.URL = "example.com"
	assert.Error(t, noScheme.Validate())

	ftp := valid
	ftp.URL = "ftp://example.com/file"
	assert.Error(t, ftp.Validate())

	badInterval := valid
	badInterval.Schedule = IntervalSchedule(0)
	assert.Error(t, badInterval.Validate())

	// a disabled site may keep an unusable schedule
	badInterval.Enabled = false
	assert.NoError(t, badInterval.Validate())
}

func TestMonitoredSite_IsDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	site := NewMonitoredSite("https://example.com", IntervalSchedule(time.Minute))

	assert.True(t, site.IsDue(now), "never-run site is due")

	later := now.Add(time.Minute)
	site.NextRunAt = &later
	assert.False(t, site.IsDue(now))
	assert.True(t, site.IsDue(later))

	site.Enabled = false
	assert.False(t, site.IsDue(later))
}

func TestMonitoredSite_DisplayName(t *testing.T) {
	site := NewMonitoredSite("https://docs.example.com/a", IntervalSchedule(time.Minute))
	assert.Equal(t, "docs.example.com", site.DisplayName())
	site.Name = "Docs"
	assert.Equal(t, "Docs", site.DisplayName())
}

func TestFetchError_Transient(t *testing.T) {
	tests := []struct {
		err       *FetchError
		transient bool
	}{
		{&FetchError{Kind: FetchTimeout}, true},
		{&FetchError{Kind: FetchConnectionError}, true},
		{NewHTTPStatusError("u", 500), true},
		{NewHTTPStatusError("u", 503), true},
		{NewHTTPStatusError("u", 429), true},
		{NewHTTPStatusError("u", 404), false},
		{NewHTTPStatusError("u", 403), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.transient, tt.err.Transient())
			assert.Equal(t, tt.transient, IsTransient(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}

	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(&StorageError{Kind: StorageWriteFailed}))
}

func TestStorageError_IsNotFound(t *testing.T) {
	err := fmt.Errorf("get: %w", &StorageError{Kind: StorageNotFound, Hash: "abc"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(&StorageError{Kind: StorageWriteFailed}, ErrNotFound))
}

func TestDiffResult_Significant(t *testing.T) {
	d := DiffResult{Changed: true, ChangeRatio: 0.01}
	assert.True(t, d.Significant(0))
	assert.False(t, d.Significant(0.05))
	assert.False(t, DiffResult{}.Significant(0))
}
