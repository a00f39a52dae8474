package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind selects how a site's next run time is computed.
type ScheduleKind string

const (
	ScheduleInterval ScheduleKind = "interval"
	ScheduleDaily    ScheduleKind = "daily"
	ScheduleCron     ScheduleKind = "cron"
)

const (
	DefaultScheduleInterval = 60 * time.Minute
	DefaultDailyTime        = "02:00"
	DefaultCronExpression   = "0 3 * * *"
)

// Schedule describes the cadence of a monitored site.
type Schedule struct {
	Kind      ScheduleKind `json:"kind"`
	Interval  Duration     `json:"interval,omitempty"`
	DailyTime string       `json:"daily_time,omitempty"`
	Cron      string       `json:"cron,omitempty"`
}

// IntervalSchedule is shorthand for a fixed-interval schedule.
func IntervalSchedule(d time.Duration) Schedule {
	return Schedule{Kind: ScheduleInterval, Interval: Duration(d)}
}

// Validate checks that the schedule can produce run times.
func (s Schedule) Validate() error {
	switch s.kind() {
	case ScheduleInterval:
		if s.Interval <= 0 {
			return fmt.Errorf("interval must be positive, got %s", s.Interval)
		}
	case ScheduleDaily:
		if _, _, err := parseDailyTime(s.DailyTime); err != nil {
			return err
		}
	case ScheduleCron:
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
	return nil
}

// Next returns the first run time strictly after the given instant.
// For interval schedules this is after + interval.
func (s Schedule) Next(after time.Time) (time.Time, error) {
	switch s.kind() {
	case ScheduleInterval:
		if s.Interval <= 0 {
			return time.Time{}, fmt.Errorf("interval must be positive, got %s", s.Interval)
		}
		return after.Add(s.Interval.Std()), nil
	case ScheduleDaily:
		hour, minute, err := parseDailyTime(s.DailyTime)
		if err != nil {
			return time.Time{}, err
		}
		next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil
	case ScheduleCron:
		parsed, err := cron.ParseStandard(s.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
		}
		return parsed.Next(after), nil
	}
	return time.Time{}, fmt.Errorf("unknown schedule kind %q", s.Kind)
}

// WithDefaults fills empty fields for the schedule kind.
func (s Schedule) WithDefaults() Schedule {
	s.Kind = s.kind()
	switch s.Kind {
	case ScheduleInterval:
		if s.Interval == 0 {
			s.Interval = Duration(DefaultScheduleInterval)
		}
	case ScheduleDaily:
		if s.DailyTime == "" {
			s.DailyTime = DefaultDailyTime
		}
	case ScheduleCron:
		if s.Cron == "" {
			s.Cron = DefaultCronExpression
		}
	}
	return s
}

func (s Schedule) kind() ScheduleKind {
	if s.Kind == "" {
		return ScheduleInterval
	}
	return s.Kind
}

func (s Schedule) String() string {
	switch s.kind() {
	case ScheduleDaily:
		return "daily@" + s.DailyTime
	case ScheduleCron:
		return "cron(" + s.Cron + ")"
	}
	return "every " + s.Interval.String()
}

func parseDailyTime(v string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("daily time must be HH:MM, got %q", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in daily time %q", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in daily time %q", v)
	}
	return hour, minute, nil
}
