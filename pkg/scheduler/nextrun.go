// Package scheduler runs the background jobs: provider syncs and the report
// dispatches. Triggers live in the database so intervals and times change
// without a restart.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// NextRun computes the first firing strictly after ref. ref's location is the
// user's timezone; stored times of day are interpreted in it.
func NextRun(s *models.Schedule, ref time.Time) (time.Time, error) {
	switch s.Type {
	case models.ScheduleInterval:
		if s.IntervalMinutes <= 0 {
			return time.Time{}, services.NewValidationError("interval_minutes", "must be positive")
		}
		return ref.Add(time.Duration(s.IntervalMinutes) * time.Minute), nil

	case models.ScheduleDaily:
		hh, mm, err := parseTimeOfDay(s.TimeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		next := time.Date(ref.Year(), ref.Month(), ref.Day(), hh, mm, 0, 0, ref.Location())
		if !next.After(ref) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case models.ScheduleWeekly:
		if s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return time.Time{}, services.NewValidationError("day_of_week", "must be 0 (Monday) through 6 (Sunday)")
		}
		hh, mm, err := parseTimeOfDay(s.TimeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		ahead := *s.DayOfWeek - weekdayIndex(ref.Weekday())
		if ahead <= 0 {
			ahead += 7
		}
		day := ref.AddDate(0, 0, ahead)
		return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, ref.Location()), nil

	case models.ScheduleMonthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return time.Time{}, services.NewValidationError("day_of_month", "must be 1 through 31")
		}
		hh, mm, err := parseTimeOfDay(s.TimeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		return nextMonthly(ref, *s.DayOfMonth, hh, mm), nil
	}
	return time.Time{}, services.NewValidationError("type", fmt.Sprintf("unknown schedule type %q", s.Type))
}

// nextMonthly finds the next month whose day number exists and lies after
// ref. Day 31 skips 30-day months rather than clamping.
func nextMonthly(ref time.Time, day, hh, mm int) time.Time {
	year, month := ref.Year(), ref.Month()
	for {
		if day <= daysIn(year, month) {
			candidate := time.Date(year, month, day, hh, mm, 0, 0, ref.Location())
			if candidate.After(ref) {
				return candidate
			}
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// weekdayIndex maps time.Weekday (Sunday=0) onto Monday=0.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func parseTimeOfDay(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, services.NewValidationError("time_of_day", "expected HH:MM")
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, services.NewValidationError("time_of_day", "expected HH:MM")
	}
	return hh, mm, nil
}
