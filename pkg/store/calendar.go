package store

import (
	"context"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// CalendarEvents is the typed repository for calendar_events, used by the
// calendar sync job.
type CalendarEvents struct {
	g *Gateway
}

// NewCalendarEvents creates the calendar repository.
func NewCalendarEvents(g *Gateway) *CalendarEvents {
	return &CalendarEvents{g: g}
}

const calendarColumns = `id, title, description, location, start_time, end_time,
	all_day, recurrence, person_id, calendar_id, icloud_uid, etag, created_at, updated_at`

// FindByUID loads one event by its provider UID.
func (c *CalendarEvents) FindByUID(ctx context.Context, uid string) (*models.CalendarEvent, error) {
	row, err := c.g.QueryOne(ctx,
		"SELECT "+calendarColumns+" FROM calendar_events WHERE icloud_uid = $1", uid)
	if err != nil {
		return nil, err
	}
	return scanCalendarEvent(row), nil
}

// Upsert inserts or updates an event keyed by its provider UID.
func (c *CalendarEvents) Upsert(ctx context.Context, ev *models.CalendarEvent) error {
	if ev.ICloudUID == "" {
		return services.NewValidationError("icloud_uid", "required for upsert")
	}
	_, err := c.g.Exec(ctx, `INSERT INTO calendar_events
		(title, description, location, start_time, end_time, all_day, recurrence,
		 calendar_id, icloud_uid, etag, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
		ON CONFLICT (icloud_uid) WHERE icloud_uid IS NOT NULL
		DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
		    location=EXCLUDED.location, start_time=EXCLUDED.start_time,
		    end_time=EXCLUDED.end_time, all_day=EXCLUDED.all_day,
		    recurrence=EXCLUDED.recurrence, etag=EXCLUDED.etag, updated_at=NOW()`,
		ev.Title, ev.Description, ev.Location, ev.StartTime, ev.EndTime,
		ev.AllDay, ev.Recurrence, ev.CalendarID, ev.ICloudUID, ev.Etag)
	return err
}

// DeleteByUID removes the event mirroring a remotely deleted VEVENT.
func (c *CalendarEvents) DeleteByUID(ctx context.Context, uid string) (bool, error) {
	affected, err := c.g.Exec(ctx, "DELETE FROM calendar_events WHERE icloud_uid = $1", uid)
	return affected > 0, err
}

// AllUIDs lists every provider UID currently mirrored locally.
func (c *CalendarEvents) AllUIDs(ctx context.Context) ([]string, error) {
	rows, err := c.g.Query(ctx,
		"SELECT icloud_uid FROM calendar_events WHERE icloud_uid IS NOT NULL")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, asString(row["icloud_uid"]))
	}
	return out, nil
}

// PendingPush returns locally created events that were never pushed.
func (c *CalendarEvents) PendingPush(ctx context.Context) ([]*models.CalendarEvent, error) {
	rows, err := c.g.Query(ctx,
		"SELECT "+calendarColumns+" FROM calendar_events WHERE icloud_uid IS NULL")
	if err != nil {
		return nil, err
	}
	out := make([]*models.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanCalendarEvent(row))
	}
	return out, nil
}

// MarkPushed stores the provider UID after a successful push.
func (c *CalendarEvents) MarkPushed(ctx context.Context, id int64, uid string) error {
	_, err := c.g.Exec(ctx,
		"UPDATE calendar_events SET icloud_uid = $1, updated_at = NOW() WHERE id = $2", uid, id)
	return err
}

func scanCalendarEvent(row Row) *models.CalendarEvent {
	ev := &models.CalendarEvent{
		ID:          asInt64(row["id"]),
		Title:       asString(row["title"]),
		Description: asString(row["description"]),
		Location:    asString(row["location"]),
		StartTime:   asTime(row["start_time"]),
		EndTime:     asTime(row["end_time"]),
		AllDay:      asBool(row["all_day"]),
		Recurrence:  asString(row["recurrence"]),
		PersonID:    asInt64Ptr(row["person_id"]),
		CalendarID:  asInt64Ptr(row["calendar_id"]),
		ICloudUID:   asString(row["icloud_uid"]),
		Etag:        asString(row["etag"]),
	}
	if t := asTime(row["created_at"]); t != nil {
		ev.CreatedAt = *t
	}
	if t := asTime(row["updated_at"]); t != nil {
		ev.UpdatedAt = *t
	}
	return ev
}
