// Package reports builds the daily and weekly summaries and fans them out to
// the configured report channels.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/agent"
	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// Report types, matching report_channels.report_type.
const (
	TypeDaily  = "daily"
	TypeWeekly = "weekly"
)

// Service builds and dispatches reports.
type Service struct {
	gateway  *store.Gateway
	channels *store.ReportChannels
	agents   *agent.Runner
	telegram *notify.Telegram
	webhook  *notify.Webhook
	cfg      *config.Manager
	logger   *slog.Logger
}

// NewService creates the report service.
func NewService(gateway *store.Gateway, channels *store.ReportChannels, agents *agent.Runner,
	telegram *notify.Telegram, webhook *notify.Webhook, cfg *config.Manager, logger *slog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		channels: channels,
		agents:   agents,
		telegram: telegram,
		webhook:  webhook,
		cfg:      cfg,
		logger:   logger.With("component", "reports"),
	}
}

// RunDaily builds and dispatches the morning report.
func (s *Service) RunDaily(ctx context.Context) error {
	now := time.Now().In(s.cfg.Timezone(ctx))
	data, err := s.dailyData(ctx, now)
	if err != nil {
		return fmt.Errorf("collect daily data: %w", err)
	}
	text := s.compose(ctx, models.AgentDailyReport, data,
		fmt.Sprintf("Tagesübersicht %s", now.Format("02.01.2006")))
	return s.dispatch(ctx, TypeDaily, text)
}

// RunWeekly builds and dispatches the Monday review.
func (s *Service) RunWeekly(ctx context.Context) error {
	now := time.Now().In(s.cfg.Timezone(ctx))
	data, err := s.weeklyData(ctx, now)
	if err != nil {
		return fmt.Errorf("collect weekly data: %w", err)
	}
	text := s.compose(ctx, models.AgentWeeklyReport, data,
		fmt.Sprintf("Wochenrückblick KW %s", now.Format("02.01.2006")))
	return s.dispatch(ctx, TypeWeekly, text)
}

func (s *Service) dailyData(ctx context.Context, now time.Time) (map[string]any, error) {
	today := now.Format("2006-01-02")

	dueTasks, err := s.gateway.Query(ctx, `SELECT title, priority, due_date FROM tasks
		WHERE deleted_at IS NULL AND status NOT IN ('done', 'someday')
		  AND due_date IS NOT NULL AND due_date <= $1
		ORDER BY priority ASC, due_date ASC LIMIT 20`, today)
	if err != nil {
		return nil, err
	}
	openTasks, err := s.gateway.Query(ctx, `SELECT title, priority FROM tasks
		WHERE deleted_at IS NULL AND status IN ('next', 'waiting')
		ORDER BY priority ASC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	events, err := s.gateway.Query(ctx, `SELECT title, start_time, location FROM calendar_events
		WHERE start_time >= $1::date AND start_time < $1::date + INTERVAL '1 day'
		ORDER BY start_time ASC`, today)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"date":        today,
		"due_tasks":   rowsToText(dueTasks),
		"open_tasks":  rowsToText(openTasks),
		"events":      rowsToText(events),
		"event_count": len(events),
	}, nil
}

func (s *Service) weeklyData(ctx context.Context, now time.Time) (map[string]any, error) {
	weekAgo := now.AddDate(0, 0, -7).Format("2006-01-02")

	completed, err := s.gateway.Query(ctx, `SELECT title, updated_at FROM tasks
		WHERE deleted_at IS NULL AND status = 'done' AND updated_at >= $1::date
		ORDER BY updated_at DESC LIMIT 30`, weekAgo)
	if err != nil {
		return nil, err
	}
	created, err := s.gateway.Query(ctx, `SELECT title, status FROM tasks
		WHERE deleted_at IS NULL AND created_at >= $1::date
		ORDER BY created_at DESC LIMIT 30`, weekAgo)
	if err != nil {
		return nil, err
	}
	projects, err := s.gateway.Query(ctx, `SELECT name, status FROM projects
		WHERE deleted_at IS NULL AND status = 'active' ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"week_start":      weekAgo,
		"completed_tasks": rowsToText(completed),
		"created_tasks":   rowsToText(created),
		"active_projects": rowsToText(projects),
	}, nil
}

// compose asks the report agent for prose; a failing agent degrades to the
// raw data so the report still goes out.
func (s *Service) compose(ctx context.Context, agentName string, data map[string]any, title string) string {
	out, err := s.agents.Execute(ctx, agentName, data)
	if err == nil {
		if report, ok := out["report"].(string); ok && report != "" {
			return report
		}
	} else {
		s.logger.Warn("report agent failed, sending raw summary", "agent", agentName, "error", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", title)
	for _, key := range []string{"due_tasks", "open_tasks", "events", "completed_tasks", "created_tasks", "active_projects"} {
		if v, ok := data[key].(string); ok && v != "" {
			fmt.Fprintf(&b, "\n%s:\n%s\n", key, v)
		}
	}
	return b.String()
}

// dispatch fans the report out to every active channel's recipients.
func (s *Service) dispatch(ctx context.Context, reportType, text string) error {
	channels, err := s.channels.ActiveChannels(ctx, reportType)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		s.logger.Info("no active report channels", "report_type", reportType)
		return nil
	}

	var failures int
	for _, ch := range channels {
		for _, recipient := range ch.Recipients {
			var res notify.Result
			switch ch.ChannelType {
			case notify.ChannelTelegram:
				res = s.telegram.Send(ctx, recipient, text)
			case notify.ChannelWebhook:
				res = s.webhook.Send(ctx, recipient, map[string]any{
					"report_type": reportType,
					"report":      text,
				})
			default:
				s.logger.Warn("unknown report channel type", "channel_type", ch.ChannelType)
				continue
			}
			if !res.Success {
				failures++
				s.logger.Warn("report delivery failed",
					"report_type", reportType, "channel", ch.ChannelType,
					"recipient", recipient, "error", res.Error)
			}
		}
	}
	if failures > 0 {
		return fmt.Errorf("report %s: %d deliveries failed", reportType, failures)
	}
	return nil
}

func rowsToText(rows []store.Row) string {
	var lines []string
	for _, row := range rows {
		parts := make([]string, 0, len(row))
		for _, k := range []string{"title", "name", "status", "priority", "due_date", "start_time", "location", "updated_at"} {
			v, ok := row[k]
			if !ok || v == nil {
				continue
			}
			if t, isTime := v.(time.Time); isTime {
				v = t.Format("2006-01-02 15:04")
			}
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " | "))
		}
	}
	return strings.Join(lines, "\n")
}
