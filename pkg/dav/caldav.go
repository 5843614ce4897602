package dav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const icloudCalendarBase = "https://caldav.icloud.com"

const calendarHomePropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:prop><cal:calendar-home-set/></d:prop>
</d:propfind>`

const calendarListPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/" xmlns:apple="http://apple.com/ns/ical/">
  <d:prop>
    <d:resourcetype/>
    <d:displayname/>
    <apple:calendar-color/>
    <cs:getctag/>
  </d:prop>
</d:propfind>`

const calendarQueryBody = `<?xml version="1.0" encoding="utf-8"?>
<cal:calendar-query xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <cal:calendar-data/>
  </d:prop>
  <cal:filter>
    <cal:comp-filter name="VCALENDAR">
      %s
    </cal:comp-filter>
  </cal:filter>
</cal:calendar-query>`

// Calendar is one calendar collection on the CalDAV server.
type Calendar struct {
	UID   string
	Name  string
	Color string
	CTag  string
	URL   string
}

// RemoteEvent is one calendar object with its etag.
type RemoteEvent struct {
	UID  string
	Etag string
	ICS  string
}

// CalDAV talks to the user's iCloud calendar home.
type CalDAV struct {
	c       *client
	homeURL string
	logger  *slog.Logger
}

// NewICloudCalDAV discovers the calendar home for the Apple ID.
func NewICloudCalDAV(ctx context.Context, appleID, appPassword string, logger *slog.Logger) (*CalDAV, error) {
	log := logger.With("component", "caldav", "provider", "icloud")
	c := newClient(appleID, normalizeAppPassword(appPassword), 60*time.Second, log)

	principal, err := discoverHref(ctx, c, icloudCalendarBase+"/", principalPropfindBody,
		func(p *davProp) string { return p.CurrentUserPrincipal.Href })
	if err != nil {
		return nil, fmt.Errorf("icloud caldav principal discovery: %w", err)
	}

	home, err := discoverHref(ctx, c, resolveHref(icloudCalendarBase, principal), calendarHomePropfindBody,
		func(p *davProp) string { return p.CalendarHomeSet.Href })
	if err != nil {
		return nil, fmt.Errorf("icloud calendar home discovery: %w", err)
	}

	homeURL := resolveHref(icloudCalendarBase, home)
	if !strings.HasSuffix(homeURL, "/") {
		homeURL += "/"
	}
	return &CalDAV{c: c, homeURL: homeURL, logger: log}, nil
}

// ListCalendars enumerates the calendar collections in the home.
func (d *CalDAV) ListCalendars(ctx context.Context) ([]Calendar, error) {
	ms, err := d.c.multistatus(ctx, "PROPFIND", d.homeURL, "1", calendarListPropfindBody)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	var out []Calendar
	for i := range ms.Responses {
		prop := ms.Responses[i].firstProp()
		if prop == nil || prop.ResourceType.Calendar == nil {
			continue
		}
		url := resolveHref(icloudCalendarBase, ms.Responses[i].Href)
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		out = append(out, Calendar{
			UID:   hrefBasename(ms.Responses[i].Href),
			Name:  prop.DisplayName,
			Color: strings.TrimSpace(prop.CalendarColor),
			CTag:  prop.CTag,
			URL:   url,
		})
	}
	return out, nil
}

// PullEvents fetches the events of one calendar. A non-zero day restricts the
// report to that day via a time-range filter.
func (d *CalDAV) PullEvents(ctx context.Context, cal Calendar, day time.Time) ([]RemoteEvent, error) {
	eventFilter := `<cal:comp-filter name="VEVENT"/>`
	if !day.IsZero() {
		ds := day.UTC().Format("20060102")
		eventFilter = fmt.Sprintf(
			`<cal:comp-filter name="VEVENT"><cal:time-range start="%sT000000Z" end="%sT235959Z"/></cal:comp-filter>`,
			ds, ds)
	}
	body := fmt.Sprintf(calendarQueryBody, eventFilter)

	ms, err := d.c.multistatus(ctx, "REPORT", cal.URL, "1", body)
	if err != nil {
		return nil, fmt.Errorf("pull events from %s: %w", cal.Name, err)
	}

	var out []RemoteEvent
	for i := range ms.Responses {
		prop := ms.Responses[i].firstProp()
		if prop == nil || strings.TrimSpace(prop.CalendarData) == "" {
			continue
		}
		out = append(out, RemoteEvent{
			UID:  hrefBasename(ms.Responses[i].Href),
			Etag: strings.Trim(prop.Etag, `"`),
			ICS:  prop.CalendarData,
		})
	}
	return out, nil
}

// Push uploads one event into the calendar, keyed by UID.
func (d *CalDAV) Push(ctx context.Context, cal Calendar, uid, ics string) error {
	url := cal.URL + uid + ".ics"
	status, _, err := d.c.do(ctx, http.MethodPut, url, "", "text/calendar; charset=utf-8", ics)
	if err != nil {
		return fmt.Errorf("push event %s: %w", uid, err)
	}
	if status != http.StatusCreated && status != http.StatusNoContent {
		return fmt.Errorf("push event %s: server answered %d", uid, status)
	}
	return nil
}

// Delete removes one event. Missing events are not an error.
func (d *CalDAV) Delete(ctx context.Context, cal Calendar, uid string) error {
	url := cal.URL + uid + ".ics"
	status, _, err := d.c.do(ctx, http.MethodDelete, url, "", "", "")
	if err != nil {
		return fmt.Errorf("delete event %s: %w", uid, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent && status != http.StatusNotFound {
		return fmt.Errorf("delete event %s: server answered %d", uid, status)
	}
	return nil
}
