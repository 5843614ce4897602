// Package telegram handles incoming bot updates: slash commands answer from
// the database directly, free text goes through the capture pipeline.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/pipeline"
	"github.com/secondbrainhq/secondbrain/pkg/reports"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

const helpText = `<b>Second Brain</b>
Einfach schreiben, um etwas zu erfassen.
Mit ? fragen, mit ! ändern.

/tasks - offene Aufgaben
/today - heutige Termine und fällige Aufgaben
/status - Überblick
/query &lt;Frage&gt; - Frage an deine Daten
/daily - Tagesbericht jetzt senden
/help - diese Hilfe`

// Update is one incoming Telegram message, already unwrapped from the
// webhook envelope.
type Update struct {
	ChatID string
	Text   string
}

// Handler reacts to bot updates.
type Handler struct {
	gateway  *store.Gateway
	pipe     *pipeline.Orchestrator
	reports  *reports.Service
	sender   *notify.Telegram
	cfg      *config.Manager
	logger   *slog.Logger
}

// NewHandler creates the update handler.
func NewHandler(gateway *store.Gateway, pipe *pipeline.Orchestrator, reportSvc *reports.Service,
	sender *notify.Telegram, cfg *config.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		gateway: gateway,
		pipe:    pipe,
		reports: reportSvc,
		sender:  sender,
		cfg:     cfg,
		logger:  logger.With("component", "telegram"),
	}
}

// Handle processes one update and sends the reply.
func (h *Handler) Handle(ctx context.Context, u Update) {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return
	}

	var reply string
	var err error
	switch {
	case text == "/help" || text == "/start":
		reply = helpText
	case text == "/status":
		reply, err = h.status(ctx)
	case text == "/tasks":
		reply, err = h.tasks(ctx)
	case text == "/today":
		reply, err = h.today(ctx)
	case text == "/daily":
		err = h.reports.RunDaily(ctx)
		reply = "Tagesbericht unterwegs."
	case strings.HasPrefix(text, "/query"):
		question := strings.TrimSpace(strings.TrimPrefix(text, "/query"))
		if question == "" {
			reply = "Wonach soll ich suchen? /query &lt;Frage&gt;"
			break
		}
		h.capture(ctx, u.ChatID, "?"+question)
		return
	case strings.HasPrefix(text, "/"):
		reply = "Das Kommando kenne ich nicht. /help zeigt, was ich kann."
	default:
		h.capture(ctx, u.ChatID, text)
		return
	}

	if err != nil {
		h.logger.Error("command failed", "text", text, "error", err)
		reply = "Da ist etwas schiefgegangen. Bitte versuch es nochmal."
	}
	h.sender.Send(ctx, u.ChatID, reply)
}

// capture routes text through the pipeline; the pipeline responds on the
// telegram channel itself.
func (h *Handler) capture(ctx context.Context, chatID, text string) {
	chctx := notify.ChannelContext{Channel: notify.ChannelTelegram, ChatID: chatID}
	if _, err := h.pipe.Process(ctx, text, chctx, false, nil); err != nil {
		h.logger.Error("pipeline failed", "error", err)
		h.sender.Send(ctx, chatID, "Das konnte ich nicht verarbeiten. Bitte versuch es nochmal.")
	}
}

func (h *Handler) status(ctx context.Context) (string, error) {
	open, err := h.count(ctx,
		"SELECT COUNT(*) AS n FROM tasks WHERE deleted_at IS NULL AND status IN ('next', 'waiting')")
	if err != nil {
		return "", err
	}
	overdue, err := h.count(ctx,
		`SELECT COUNT(*) AS n FROM tasks WHERE deleted_at IS NULL
		 AND due_date < CURRENT_DATE AND status NOT IN ('done', 'someday')`)
	if err != nil {
		return "", err
	}
	inboxCount, err := h.count(ctx,
		"SELECT COUNT(*) AS n FROM tasks WHERE deleted_at IS NULL AND status = 'inbox'")
	if err != nil {
		return "", err
	}
	projects, err := h.count(ctx,
		"SELECT COUNT(*) AS n FROM projects WHERE deleted_at IS NULL AND status = 'active'")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`<b>Status</b>
Offene Aufgaben: %d
Überfällig: %d
Inbox: %d
Aktive Projekte: %d`, open, overdue, inboxCount, projects), nil
}

func (h *Handler) tasks(ctx context.Context) (string, error) {
	rows, err := h.gateway.Query(ctx, `SELECT title, priority, due_date FROM tasks
		WHERE deleted_at IS NULL AND status NOT IN ('done')
		ORDER BY priority ASC, due_date ASC NULLS LAST LIMIT 10`)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "Keine offenen Aufgaben.", nil
	}

	var b strings.Builder
	b.WriteString("<b>Offene Aufgaben</b>\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "• %v", row["title"])
		if due, ok := row["due_date"].(time.Time); ok {
			fmt.Fprintf(&b, " (bis %s)", due.Format("02.01."))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (h *Handler) today(ctx context.Context) (string, error) {
	today := time.Now().In(h.cfg.Timezone(ctx)).Format("2006-01-02")

	events, err := h.gateway.Query(ctx, `SELECT title, start_time, location FROM calendar_events
		WHERE start_time >= $1::date AND start_time < $1::date + INTERVAL '1 day'
		ORDER BY start_time ASC`, today)
	if err != nil {
		return "", err
	}
	due, err := h.gateway.Query(ctx, `SELECT title, priority FROM tasks
		WHERE deleted_at IS NULL AND due_date <= $1 AND status NOT IN ('done', 'someday')
		ORDER BY priority ASC`, today)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<b>Heute</b>\n")
	if len(events) == 0 {
		b.WriteString("Keine Termine.\n")
	}
	for _, row := range events {
		if start, ok := row["start_time"].(time.Time); ok {
			fmt.Fprintf(&b, "%s %v", start.In(h.cfg.Timezone(ctx)).Format("15:04"), row["title"])
		} else {
			fmt.Fprintf(&b, "%v", row["title"])
		}
		if loc, ok := row["location"].(string); ok && loc != "" {
			fmt.Fprintf(&b, " (%s)", loc)
		}
		b.WriteString("\n")
	}
	if len(due) > 0 {
		b.WriteString("\n<b>Fällig</b>\n")
		for _, row := range due {
			fmt.Fprintf(&b, "• %v\n", row["title"])
		}
	}
	return b.String(), nil
}

func (h *Handler) count(ctx context.Context, query string) (int64, error) {
	row, err := h.gateway.QueryOne(ctx, query)
	if err != nil {
		return 0, err
	}
	if n, ok := row["n"].(int64); ok {
		return n, nil
	}
	return 0, nil
}
