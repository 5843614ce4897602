package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/dav"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// ProviderICloudCalendar is the sync_config provider for calendar sync.
const ProviderICloudCalendar = "icloud_calendar"

// CalendarService mirrors iCloud calendars into calendar_events and pushes
// locally created events into the configured write calendar.
type CalendarService struct {
	svc    *Service
	events *store.CalendarEvents
}

// NewCalendarService creates the calendar sync engine on top of the contact
// sync service's store plumbing.
func NewCalendarService(svc *Service, events *store.CalendarEvents) *CalendarService {
	return &CalendarService{svc: svc, events: events}
}

// Sync runs one full calendar reconciliation.
func (s *CalendarService) Sync(ctx context.Context, caldav *dav.CalDAV) (*Stats, error) {
	cfg, err := s.svc.syncStore.Config(ctx, ProviderICloudCalendar)
	if err != nil {
		return nil, fmt.Errorf("load calendar sync config: %w", err)
	}
	if !cfg.Enabled {
		s.svc.logger.Info("calendar sync disabled")
		return &Stats{}, nil
	}

	calendars, err := caldav.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	s.svc.logger.Info("calendars discovered", "count", len(calendars))

	stats := &Stats{}
	seen := make(map[string]bool)
	for _, cal := range calendars {
		remote, err := caldav.PullEvents(ctx, cal, time.Time{})
		if err != nil {
			stats.Errors++
			s.svc.logger.Error("pulling calendar failed", "calendar", cal.Name, "error", err)
			continue
		}
		for _, re := range remote {
			for _, ev := range dav.ParseICS(re.ICS) {
				if ev.ICloudUID == "" {
					ev.ICloudUID = re.UID
				}
				ev.Etag = re.Etag
				seen[ev.ICloudUID] = true
				if err := s.events.Upsert(ctx, ev); err != nil {
					stats.Errors++
					s.svc.logger.Error("upserting event failed", "uid", ev.ICloudUID, "error", err)
					continue
				}
				stats.Pulled++
			}
		}
	}

	// Events that vanished remotely vanish locally too.
	if stats.Errors == 0 {
		uids, err := s.events.AllUIDs(ctx)
		if err != nil {
			stats.Errors++
			s.svc.logger.Error("listing local event uids failed", "error", err)
		} else {
			for _, uid := range uids {
				if seen[uid] {
					continue
				}
				deleted, err := s.events.DeleteByUID(ctx, uid)
				if err != nil {
					stats.Errors++
					s.svc.logger.Error("deleting vanished event failed", "uid", uid, "error", err)
					continue
				}
				if deleted {
					stats.Deleted++
				}
			}
		}
	}

	s.pushPending(ctx, caldav, calendars, cfg.WriteCalendarID, stats)

	if err := s.svc.syncStore.TouchLastSync(ctx, ProviderICloudCalendar); err != nil {
		return stats, err
	}
	s.svc.logStats(ctx, ProviderICloudCalendar, cfg, stats)
	return stats, nil
}

// pushPending uploads locally created events into the write calendar.
func (s *CalendarService) pushPending(ctx context.Context, caldav *dav.CalDAV, calendars []dav.Calendar, writeCalendarID string, stats *Stats) {
	pending, err := s.events.PendingPush(ctx)
	if err != nil {
		stats.Errors++
		s.svc.logger.Error("listing pending events failed", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	target, ok := pickWriteCalendar(calendars, writeCalendarID)
	if !ok {
		stats.Errors++
		s.svc.logger.Error("no write calendar available", "write_calendar_id", writeCalendarID)
		return
	}

	for _, ev := range pending {
		ics, uid := dav.SerializeICS(ev, "")
		if err := caldav.Push(ctx, target, uid, ics); err != nil {
			stats.Errors++
			s.svc.logger.Error("pushing event failed", "id", ev.ID, "error", err)
			continue
		}
		if err := s.events.MarkPushed(ctx, ev.ID, uid); err != nil {
			stats.Errors++
			s.svc.logger.Error("marking event pushed failed", "id", ev.ID, "error", err)
			continue
		}
		stats.Pushed++
	}
}

func pickWriteCalendar(calendars []dav.Calendar, writeCalendarID string) (dav.Calendar, bool) {
	if writeCalendarID != "" {
		for _, cal := range calendars {
			if cal.UID == writeCalendarID || cal.Name == writeCalendarID {
				return cal, true
			}
		}
	}
	if len(calendars) > 0 {
		return calendars[0], true
	}
	return dav.Calendar{}, false
}
