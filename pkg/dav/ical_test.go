package dav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Apple Inc.//iCloud//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:event-1\r\n" +
	"DTSTART:20250314T090000Z\r\n" +
	"DTEND:20250314T100000Z\r\n" +
	"SUMMARY:Zahnarzt\\, Kontrolle\r\n" +
	"LOCATION:Praxis Dr. Weber\r\n" +
	"DESCRIPTION:Karte mitbringen\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:event-2\r\n" +
	"DTSTART;VALUE=DATE:20250320\r\n" +
	"SUMMARY:Geburtstag Anna\r\n" +
	"RRULE:FREQ=YEARLY\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events := ParseICS(sampleICS)
	require.Len(t, events, 2)

	timed := events[0]
	assert.Equal(t, "event-1", timed.ICloudUID)
	assert.Equal(t, "Zahnarzt, Kontrolle", timed.Title)
	assert.Equal(t, "Praxis Dr. Weber", timed.Location)
	assert.Equal(t, "Karte mitbringen", timed.Description)
	assert.False(t, timed.AllDay)
	require.NotNil(t, timed.StartTime)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), timed.StartTime.UTC())
	require.NotNil(t, timed.EndTime)
	assert.Equal(t, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), timed.EndTime.UTC())

	allDay := events[1]
	assert.Equal(t, "event-2", allDay.ICloudUID)
	assert.True(t, allDay.AllDay)
	require.NotNil(t, allDay.StartTime)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), allDay.StartTime.UTC())
	assert.Equal(t, "FREQ=YEARLY", allDay.Recurrence)
}

func TestParseICSEmptyPayload(t *testing.T) {
	assert.Empty(t, ParseICS("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	assert.Empty(t, ParseICS(""))
}

func TestParseICSSkipsEmptyEvents(t *testing.T) {
	raw := "BEGIN:VEVENT\r\nDTSTART:20250101T000000Z\r\nEND:VEVENT\r\n"
	assert.Empty(t, ParseICS(raw))
}

func TestSerializeICSTimed(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	ev := &models.CalendarEvent{
		Title:       "Zahnarzt, Kontrolle",
		Description: "Karte mitbringen",
		Location:    "Praxis Dr. Weber",
		StartTime:   &start,
		EndTime:     &end,
	}

	raw, uid := SerializeICS(ev, "event-1")
	assert.Equal(t, "event-1", uid)
	assert.Contains(t, raw, "PRODID:"+icalProdID+"\r\n")
	assert.Contains(t, raw, "UID:event-1\r\n")
	assert.Contains(t, raw, "DTSTART:20250314T090000Z\r\n")
	assert.Contains(t, raw, "DTEND:20250314T100000Z\r\n")
	assert.Contains(t, raw, "SUMMARY:Zahnarzt\\, Kontrolle\r\n")
	assert.Contains(t, raw, "LOCATION:Praxis Dr. Weber\r\n")
}

func TestSerializeICSAllDay(t *testing.T) {
	day := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	ev := &models.CalendarEvent{
		Title:      "Geburtstag Anna",
		StartTime:  &day,
		AllDay:     true,
		Recurrence: "FREQ=YEARLY",
	}

	raw, uid := SerializeICS(ev, "")
	assert.NotEmpty(t, uid)
	assert.Contains(t, raw, "DTSTART;VALUE=DATE:20250320\r\n")
	assert.Contains(t, raw, "RRULE:FREQ=YEARLY\r\n")
	assert.NotContains(t, raw, "DTEND")
}

func TestICSRoundTrip(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	ev := &models.CalendarEvent{Title: "Review; Q1", StartTime: &start}

	raw, uid := SerializeICS(ev, "rt-1")
	events := ParseICS(raw)
	require.Len(t, events, 1)
	assert.Equal(t, uid, events[0].ICloudUID)
	assert.Equal(t, "Review; Q1", events[0].Title)
	assert.Equal(t, start, events[0].StartTime.UTC())
}
