package store

import (
	"context"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// Schedules is the repository for schedules and scheduled_jobs.
type Schedules struct {
	g *Gateway
}

// NewSchedules creates the schedule repository.
func NewSchedules(g *Gateway) *Schedules {
	return &Schedules{g: g}
}

const scheduleColumns = "id, name, type, interval_minutes, time_of_day, day_of_week, day_of_month, enabled, created_at, updated_at"

// ListSchedules returns all schedules.
func (s *Schedules) ListSchedules(ctx context.Context) ([]*models.Schedule, error) {
	rows, err := s.g.Query(ctx, "SELECT "+scheduleColumns+" FROM schedules ORDER BY id")
	if err != nil {
		return nil, err
	}
	out := make([]*models.Schedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanSchedule(row))
	}
	return out, nil
}

// GetSchedule loads one schedule by id.
func (s *Schedules) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	row, err := s.g.QueryOne(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return scanSchedule(row), nil
}

// CreateSchedule inserts a schedule and returns it with its id.
func (s *Schedules) CreateSchedule(ctx context.Context, sched *models.Schedule) (*models.Schedule, error) {
	var id int64
	err := s.g.Tx(ctx, func(tx *Tx) error {
		var txErr error
		id, txErr = tx.InsertReturningID(ctx, `INSERT INTO schedules
			(name, type, interval_minutes, time_of_day, day_of_week, day_of_month, enabled)
			VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, ''), $5, $6, $7) RETURNING id`,
			sched.Name, sched.Type, sched.IntervalMinutes, sched.TimeOfDay,
			sched.DayOfWeek, sched.DayOfMonth, sched.Enabled)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, id)
}

// UpdateSchedule overwrites one schedule.
func (s *Schedules) UpdateSchedule(ctx context.Context, sched *models.Schedule) (*models.Schedule, error) {
	affected, err := s.g.Exec(ctx, `UPDATE schedules SET
		name=$1, type=$2, interval_minutes=NULLIF($3, 0), time_of_day=NULLIF($4, ''),
		day_of_week=$5, day_of_month=$6, enabled=$7, updated_at=NOW()
		WHERE id=$8`,
		sched.Name, sched.Type, sched.IntervalMinutes, sched.TimeOfDay,
		sched.DayOfWeek, sched.DayOfMonth, sched.Enabled, sched.ID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, services.ErrNotFound
	}
	return s.GetSchedule(ctx, sched.ID)
}

// DeleteSchedule removes a schedule; jobs referencing it keep running on
// their detached state until reassigned.
func (s *Schedules) DeleteSchedule(ctx context.Context, id int64) error {
	err := s.g.Tx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "UPDATE scheduled_jobs SET schedule_id = NULL, updated_at = NOW() WHERE schedule_id = $1", id); err != nil {
			return err
		}
		affected, err := tx.Exec(ctx, "DELETE FROM schedules WHERE id = $1", id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return services.ErrNotFound
		}
		return nil
	})
	return err
}

const jobColumns = `j.id, j.job_name, j.schedule_id, s.name AS schedule_name, j.enabled,
	j.last_run, j.next_run, j.run_count, j.error_count, j.last_error, j.created_at, j.updated_at`

// ListJobs returns all jobs with their joined schedule name.
func (s *Schedules) ListJobs(ctx context.Context) ([]*models.ScheduledJob, error) {
	rows, err := s.g.Query(ctx, `SELECT `+jobColumns+`
		FROM scheduled_jobs j LEFT JOIN schedules s ON j.schedule_id = s.id
		ORDER BY j.id`)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ScheduledJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanJob(row))
	}
	return out, nil
}

// RunnableJobs returns the jobs due for scheduling: job and schedule enabled.
func (s *Schedules) RunnableJobs(ctx context.Context) ([]*models.ScheduledJob, error) {
	rows, err := s.g.Query(ctx, `SELECT `+jobColumns+`
		FROM scheduled_jobs j LEFT JOIN schedules s ON j.schedule_id = s.id
		WHERE j.enabled = TRUE AND s.enabled = TRUE
		ORDER BY j.id`)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ScheduledJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanJob(row))
	}
	return out, nil
}

// GetJob loads one job by id with its joined schedule name.
func (s *Schedules) GetJob(ctx context.Context, id int64) (*models.ScheduledJob, error) {
	row, err := s.g.QueryOne(ctx, `SELECT `+jobColumns+`
		FROM scheduled_jobs j LEFT JOIN schedules s ON j.schedule_id = s.id
		WHERE j.id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row), nil
}

// GetJobByName loads one job by its unique name.
func (s *Schedules) GetJobByName(ctx context.Context, name string) (*models.ScheduledJob, error) {
	row, err := s.g.QueryOne(ctx, `SELECT `+jobColumns+`
		FROM scheduled_jobs j LEFT JOIN schedules s ON j.schedule_id = s.id
		WHERE j.job_name = $1`, name)
	if err != nil {
		return nil, err
	}
	return scanJob(row), nil
}

// UpdateJob patches the mutable admin fields of a job.
func (s *Schedules) UpdateJob(ctx context.Context, id int64, enabled *bool, scheduleID *int64) (*models.ScheduledJob, error) {
	if enabled != nil {
		if _, err := s.g.Exec(ctx, "UPDATE scheduled_jobs SET enabled = $1, updated_at = NOW() WHERE id = $2", *enabled, id); err != nil {
			return nil, err
		}
	}
	if scheduleID != nil {
		if _, err := s.g.Exec(ctx, "UPDATE scheduled_jobs SET schedule_id = $1, updated_at = NOW() WHERE id = $2", *scheduleID, id); err != nil {
			return nil, err
		}
	}
	return s.GetJob(ctx, id)
}

// SetNextRun persists a computed next_run without touching run counters,
// used when a job is scheduled for the first time.
func (s *Schedules) SetNextRun(ctx context.Context, jobName string, nextRun time.Time) error {
	_, err := s.g.Exec(ctx, `UPDATE scheduled_jobs
		SET next_run = $2, updated_at = NOW() WHERE job_name = $1`, jobName, nextRun)
	return err
}

// RecordSuccess marks a completed run and persists the recomputed next_run.
func (s *Schedules) RecordSuccess(ctx context.Context, jobName string, nextRun *time.Time) error {
	_, err := s.g.Exec(ctx, `UPDATE scheduled_jobs
		SET last_run = NOW(), run_count = run_count + 1, last_error = '',
		    next_run = $2, updated_at = NOW()
		WHERE job_name = $1`, jobName, nextRun)
	return err
}

// RecordFailure stores the error and bumps error_count; next_run still moves
// forward so the next tick retries.
func (s *Schedules) RecordFailure(ctx context.Context, jobName, lastError string, nextRun *time.Time) error {
	_, err := s.g.Exec(ctx, `UPDATE scheduled_jobs
		SET last_run = NOW(), error_count = error_count + 1, last_error = $2,
		    next_run = $3, updated_at = NOW()
		WHERE job_name = $1`, jobName, lastError, nextRun)
	return err
}

func scanSchedule(row Row) *models.Schedule {
	sched := &models.Schedule{
		ID:              asInt64(row["id"]),
		Name:            asString(row["name"]),
		Type:            asString(row["type"]),
		IntervalMinutes: int(asInt64(row["interval_minutes"])),
		TimeOfDay:       asString(row["time_of_day"]),
		Enabled:         asBool(row["enabled"]),
	}
	if row["day_of_week"] != nil {
		d := int(asInt64(row["day_of_week"]))
		sched.DayOfWeek = &d
	}
	if row["day_of_month"] != nil {
		d := int(asInt64(row["day_of_month"]))
		sched.DayOfMonth = &d
	}
	if t := asTime(row["created_at"]); t != nil {
		sched.CreatedAt = *t
	}
	if t := asTime(row["updated_at"]); t != nil {
		sched.UpdatedAt = *t
	}
	return sched
}

func scanJob(row Row) *models.ScheduledJob {
	job := &models.ScheduledJob{
		ID:           asInt64(row["id"]),
		JobName:      asString(row["job_name"]),
		ScheduleID:   asInt64Ptr(row["schedule_id"]),
		ScheduleName: asString(row["schedule_name"]),
		Enabled:      asBool(row["enabled"]),
		LastRun:      asTime(row["last_run"]),
		NextRun:      asTime(row["next_run"]),
		RunCount:     asInt64(row["run_count"]),
		ErrorCount:   asInt64(row["error_count"]),
		LastError:    asString(row["last_error"]),
	}
	if t := asTime(row["created_at"]); t != nil {
		job.CreatedAt = *t
	}
	if t := asTime(row["updated_at"]); t != nil {
		job.UpdatedAt = *t
	}
	return job
}
