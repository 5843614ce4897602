package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

func intp(n int) *int { return &n }

// ref is Wednesday, 2025-03-12 10:00 local.
var ref = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func TestNextRunInterval(t *testing.T) {
	next, err := NextRun(&models.Schedule{Type: models.ScheduleInterval, IntervalMinutes: 15}, ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Add(15*time.Minute), next)

	_, err = NextRun(&models.Schedule{Type: models.ScheduleInterval}, ref)
	assert.True(t, services.IsValidationError(err))
}

func TestNextRunDaily(t *testing.T) {
	// Time of day still ahead today.
	next, err := NextRun(&models.Schedule{Type: models.ScheduleDaily, TimeOfDay: "18:30"}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 12, 18, 30, 0, 0, time.UTC), next)

	// Time of day already past rolls to tomorrow.
	next, err = NextRun(&models.Schedule{Type: models.ScheduleDaily, TimeOfDay: "07:00"}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 13, 7, 0, 0, 0, time.UTC), next)

	// Exactly now counts as past.
	next, err = NextRun(&models.Schedule{Type: models.ScheduleDaily, TimeOfDay: "10:00"}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC), next)

	_, err = NextRun(&models.Schedule{Type: models.ScheduleDaily, TimeOfDay: "25:00"}, ref)
	assert.True(t, services.IsValidationError(err))
}

func TestNextRunWeekly(t *testing.T) {
	// Friday (index 4) from a Wednesday.
	next, err := NextRun(&models.Schedule{
		Type: models.ScheduleWeekly, DayOfWeek: intp(4), TimeOfDay: "08:00",
	}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC), next)

	// Same weekday rolls a full week ahead.
	next, err = NextRun(&models.Schedule{
		Type: models.ScheduleWeekly, DayOfWeek: intp(2), TimeOfDay: "08:00",
	}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 19, 8, 0, 0, 0, time.UTC), next)

	// Monday (index 0) already passed this week.
	next, err = NextRun(&models.Schedule{
		Type: models.ScheduleWeekly, DayOfWeek: intp(0), TimeOfDay: "08:00",
	}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC), next)

	_, err = NextRun(&models.Schedule{Type: models.ScheduleWeekly, DayOfWeek: intp(7), TimeOfDay: "08:00"}, ref)
	assert.True(t, services.IsValidationError(err))
}

func TestNextRunMonthly(t *testing.T) {
	// Day ahead in the current month.
	next, err := NextRun(&models.Schedule{
		Type: models.ScheduleMonthly, DayOfMonth: intp(20), TimeOfDay: "09:00",
	}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC), next)

	// Day already passed rolls to next month.
	next, err = NextRun(&models.Schedule{
		Type: models.ScheduleMonthly, DayOfMonth: intp(5), TimeOfDay: "09:00",
	}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 5, 9, 0, 0, 0, time.UTC), next)

	// Day 31 skips April (30 days) and lands in May.
	next, err = NextRun(&models.Schedule{
		Type: models.ScheduleMonthly, DayOfMonth: intp(31), TimeOfDay: "09:00",
	}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC), next)

	afterMarch := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	next, err = NextRun(&models.Schedule{
		Type: models.ScheduleMonthly, DayOfMonth: intp(31), TimeOfDay: "09:00",
	}, afterMarch)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 31, 9, 0, 0, 0, time.UTC), next)

	// December rolls into January of the next year.
	december := time.Date(2025, 12, 15, 12, 0, 0, 0, time.UTC)
	next, err = NextRun(&models.Schedule{
		Type: models.ScheduleMonthly, DayOfMonth: intp(10), TimeOfDay: "09:00",
	}, december)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), next)
}

func TestNextRunUnknownType(t *testing.T) {
	_, err := NextRun(&models.Schedule{Type: "hourly"}, ref)
	assert.True(t, services.IsValidationError(err))
}
