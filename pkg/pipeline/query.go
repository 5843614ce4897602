package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/store"
	"github.com/secondbrainhq/secondbrain/pkg/textproc"
)

const queryRowLimit = 20

// baseQuery is the fixed, whitelisted SQL skeleton for one table. Agent
// output only ever selects one of these and supplies parameter values.
type baseQuery struct {
	sql      string
	orderBy  string
	dateCol  string
	liveOnly bool
}

var baseQueries = map[string]baseQuery{
	"tasks": {
		sql:      "SELECT title, status, priority, due_date, notes FROM tasks",
		orderBy:  "ORDER BY priority ASC, due_date ASC NULLS LAST",
		dateCol:  "due_date",
		liveOnly: true,
	},
	"projects": {
		sql:      "SELECT name, status, notes, updated_at FROM projects",
		orderBy:  "ORDER BY updated_at DESC",
		liveOnly: true,
	},
	"people": {
		sql:      "SELECT name, phone, email, context FROM people",
		orderBy:  "ORDER BY name ASC",
		liveOnly: true,
	},
	"ideas": {
		sql:      "SELECT name, status, notes, created_at FROM ideas",
		orderBy:  "ORDER BY created_at DESC",
		liveOnly: true,
	},
	"calendar_events": {
		sql:     "SELECT title, start_time, end_time, location, description FROM calendar_events",
		orderBy: "ORDER BY start_time ASC",
		dateCol: "start_time",
	},
	"events": {
		sql:      "SELECT title, notes, created_at FROM events",
		orderBy:  "ORDER BY created_at DESC",
		liveOnly: true,
	},
}

// handleQuery answers a question in three stages: classify, fetch, compose.
func (o *Orchestrator) handleQuery(ctx context.Context, question string) (*Result, error) {
	classification, err := o.agents.Execute(ctx, models.AgentQueryClassifier, map[string]any{
		"question": question,
	})
	if err != nil {
		return nil, err
	}

	table, _ := classification["table"].(string)
	searchType, _ := classification["search_type"].(string)
	searchTerm, _ := classification["search_term"].(string)
	dateRange, _ := classification["date_range"].(string)

	rows, err := o.fetchQueryData(ctx, table, searchType, searchTerm, dateRange)
	if err != nil {
		return nil, err
	}

	data := formatRows(rows)
	answer := "Dazu habe ich nichts gefunden."
	if data != "" {
		out, err := o.agents.Execute(ctx, models.AgentQuery, map[string]any{
			"question": question,
			"data":     data,
		})
		if err != nil {
			return nil, err
		}
		if a, ok := out["answer"].(string); ok && a != "" {
			answer = a
		}
	}

	err = o.gateway.Tx(ctx, func(tx *store.Tx) error {
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: question,
			Intent:       textproc.IntentQuery,
			TargetTable:  table,
			Confidence:   floatValue(classification["confidence"]),
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Intent:  textproc.IntentQuery,
		Success: true,
		Table:   table,
		Message: answer,
	}, nil
}

// fetchQueryData runs the whitelisted query for the classification.
func (o *Orchestrator) fetchQueryData(ctx context.Context, table, searchType, searchTerm, dateRange string) ([]store.Row, error) {
	bq, ok := baseQueries[table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown query table %q", errInvalidCapture, table)
	}

	var conds []string
	var args []any
	if bq.liveOnly {
		conds = append(conds, "deleted_at IS NULL")
	}

	switch searchType {
	case "name":
		nameCol := store.NameColumn(table)
		args = append(args, "%"+strings.ToLower(searchTerm)+"%")
		conds = append(conds, fmt.Sprintf("LOWER(%s) LIKE $%d", nameCol, len(args)))
	case "fulltext":
		nameCol := store.NameColumn(table)
		notesCol := store.NotesColumn(table)
		args = append(args, "%"+searchTerm+"%")
		conds = append(conds, fmt.Sprintf("(%s ILIKE $%d OR %s ILIKE $%d)",
			nameCol, len(args), notesCol, len(args)))
	case "date_range":
		if bq.dateCol == "" {
			break
		}
		days := 7
		if dateRange == "next_30_days" {
			days = 30
		}
		now := time.Now().In(o.cfg.Timezone(ctx))
		args = append(args, now.Format("2006-01-02"))
		from := len(args)
		args = append(args, now.AddDate(0, 0, days).Format("2006-01-02"))
		conds = append(conds, fmt.Sprintf("%s >= $%d AND %s <= $%d",
			bq.dateCol, from, bq.dateCol, len(args)))
	}

	query := bq.sql
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " " + bq.orderBy + fmt.Sprintf(" LIMIT %d", queryRowLimit)

	return o.gateway.Query(ctx, query, args...)
}

// formatRows renders query rows into the compact text form the query agent
// consumes, one row per line.
func formatRows(rows []store.Row) string {
	var lines []string
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			v := row[k]
			if v == nil {
				continue
			}
			if t, ok := v.(time.Time); ok {
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
