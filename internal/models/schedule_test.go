package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Next(t *testing.T) {
	base := time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule Schedule
		expected time.Time
	}{
		{
			name:     "interval adds one full interval",
			schedule: IntervalSchedule(time.Minute),
			expected: base.Add(time.Minute),
		},
		{
			name:     "daily later today",
			schedule: Schedule{Kind: ScheduleDaily, DailyTime: "14:00"},
			expected: time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily already passed rolls to tomorrow",
			schedule: Schedule{Kind: ScheduleDaily, DailyTime: "02:00"},
			expected: time.Date(2024, 5, 11, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily at exactly now is tomorrow",
			schedule: Schedule{Kind: ScheduleDaily, DailyTime: "10:30"},
			expected: time.Date(2024, 5, 11, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "cron every hour on the hour",
			schedule: Schedule{Kind: ScheduleCron, Cron: "0 * * * *"},
			expected: time.Date(2024, 5, 10, 11, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.schedule.Next(base)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestSchedule_Validate(t *testing.T) {
	assert.NoError(t, IntervalSchedule(time.Second).Validate())
	assert.Error(t, IntervalSchedule(0).Validate())
	assert.Error(t, Schedule{Kind: ScheduleDaily, DailyTime: "25:00"}.Validate())
	assert.Error(t, Schedule{Kind: ScheduleDaily, DailyTime: "noon"}.Validate())
	assert.Error(t, Schedule{Kind: ScheduleCron, Cron: "not a cron"}.Validate())
	assert.Error(t, Schedule{Kind: "weekly"}.Validate())
}

func TestSchedule_WithDefaults(t *testing.T) {
	assert.Equal(t, Duration(DefaultScheduleInterval), Schedule{}.WithDefaults().Interval)
	assert.Equal(t, ScheduleInterval, Schedule{}.WithDefaults().Kind)
	assert.Equal(t, DefaultDailyTime, Schedule{Kind: ScheduleDaily}.WithDefaults().DailyTime)
	assert.Equal(t, DefaultCronExpression, Schedule{Kind: ScheduleCron}.WithDefaults().Cron)
}

func TestDuration_JSON(t *testing.T) {
	var s Schedule
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"interval","interval":"90s"}`), &s))
	assert.Equal(t, 90*time.Second, s.Interval.Std())

	require.NoError(t, json.Unmarshal([]byte(`{"interval":60}`), &s))
	assert.Equal(t, time.Minute, s.Interval.Std())

	out, err := json.Marshal(IntervalSchedule(time.Hour))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"interval","interval":"1h0m0s"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"interval":"soon"}`), &s))
}
