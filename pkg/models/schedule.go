package models

import "time"

// Schedule types.
const (
	ScheduleInterval = "interval"
	ScheduleDaily    = "daily"
	ScheduleWeekly   = "weekly"
	ScheduleMonthly  = "monthly"
)

// Schedule describes when a job fires. Exactly one trigger shape is relevant
// per type; unused fields stay zero.
type Schedule struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	IntervalMinutes int       `json:"interval_minutes,omitempty"`
	TimeOfDay       string    `json:"time_of_day,omitempty"` // HH:MM
	DayOfWeek       *int      `json:"day_of_week,omitempty"` // 0=Mon .. 6=Sun
	DayOfMonth      *int      `json:"day_of_month,omitempty"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ScheduledJob binds a named handler to a Schedule and tracks execution.
type ScheduledJob struct {
	ID           int64      `json:"id"`
	JobName      string     `json:"job_name"`
	ScheduleID   *int64     `json:"schedule_id,omitempty"`
	ScheduleName string     `json:"schedule_name,omitempty"` // joined, read-only
	Enabled      bool       `json:"enabled"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	RunCount     int64      `json:"run_count"`
	ErrorCount   int64      `json:"error_count"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
