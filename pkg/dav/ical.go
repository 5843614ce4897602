package dav

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

const icalProdID = "-//Second Brain//CalDAV//EN"

var veventRe = regexp.MustCompile(`(?s)BEGIN:VEVENT(.*?)END:VEVENT`)

// ParseICS extracts all VEVENTs from an iCalendar payload.
func ParseICS(raw string) []*models.CalendarEvent {
	var out []*models.CalendarEvent
	for _, m := range veventRe.FindAllStringSubmatch(raw, -1) {
		if ev := parseVEvent(m[1]); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

func parseVEvent(block string) *models.CalendarEvent {
	ev := &models.CalendarEvent{}
	for _, line := range unfoldLines(block) {
		name, params, value := splitProperty(line)
		switch name {
		case "UID":
			ev.ICloudUID = value
		case "SUMMARY":
			ev.Title = unescapeText(value)
		case "DESCRIPTION":
			ev.Description = unescapeText(value)
		case "LOCATION":
			ev.Location = unescapeText(value)
		case "RRULE":
			ev.Recurrence = value
		case "DTSTART":
			t, allDay := parseICalTime(value, params)
			ev.StartTime = t
			ev.AllDay = allDay
		case "DTEND":
			t, _ := parseICalTime(value, params)
			ev.EndTime = t
		}
	}
	if ev.Title == "" && ev.ICloudUID == "" {
		return nil
	}
	return ev
}

// parseICalTime handles the two shapes the providers emit: VALUE=DATE for
// all-day events and basic-format timestamps, with or without a Z suffix.
func parseICalTime(value, params string) (*time.Time, bool) {
	if strings.Contains(params, "VALUE=DATE") && !strings.Contains(value, "T") {
		if t, err := time.Parse("20060102", value); err == nil {
			return &t, true
		}
		return nil, false
	}
	v := strings.TrimSuffix(value, "Z")
	if t, err := time.Parse("20060102T150405", v); err == nil {
		if strings.HasSuffix(value, "Z") {
			t = t.UTC()
		}
		return &t, false
	}
	return nil, false
}

// SerializeICS encodes one event as a single-VEVENT calendar. uid may be
// empty; a fresh one is generated and returned.
func SerializeICS(ev *models.CalendarEvent, uid string) (string, string) {
	if uid == "" {
		uid = uuid.New().String()
	}
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	fmt.Fprintf(&b, "PRODID:%s\r\n", icalProdID)
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s\r\n", uid)
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", time.Now().UTC().Format("20060102T150405Z"))
	if ev.StartTime != nil {
		writeICalTime(&b, "DTSTART", *ev.StartTime, ev.AllDay)
	}
	if ev.EndTime != nil {
		writeICalTime(&b, "DTEND", *ev.EndTime, ev.AllDay)
	}
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeText(ev.Title))
	if ev.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeText(ev.Description))
	}
	if ev.Location != "" {
		fmt.Fprintf(&b, "LOCATION:%s\r\n", escapeText(ev.Location))
	}
	if ev.Recurrence != "" {
		fmt.Fprintf(&b, "RRULE:%s\r\n", ev.Recurrence)
	}
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String(), uid
}

func writeICalTime(b *strings.Builder, prop string, t time.Time, allDay bool) {
	if allDay {
		fmt.Fprintf(b, "%s;VALUE=DATE:%s\r\n", prop, t.Format("20060102"))
		return
	}
	fmt.Fprintf(b, "%s:%s\r\n", prop, t.UTC().Format("20060102T150405Z"))
}
