package store

import (
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// The entity tables the pipeline may touch with interpolated identifiers.
// Values always stay parameterised; only names from these maps may ever be
// spliced into SQL text.

// EntityTables lists the searchable entity tables in match order.
var EntityTables = []string{"projects", "tasks", "people", "ideas", "events", "calendar_events"}

// NameColumn returns the display-name column of an entity table.
func NameColumn(table string) string {
	switch table {
	case "tasks", "events", "calendar_events":
		return "title"
	default:
		return "name"
	}
}

// NotesColumn returns the free-text column of an entity table.
func NotesColumn(table string) string {
	switch table {
	case "people":
		return "context"
	case "calendar_events":
		return "description"
	default:
		return "notes"
	}
}

// writableColumns is the closed set of columns a generic update may set.
var writableColumns = map[string]map[string]bool{
	"people": {
		"name": true, "first_name": true, "middle_name": true, "last_name": true,
		"phone": true, "email": true, "street": true, "house_nr": true,
		"zip": true, "city": true, "country": true, "important_dates": true,
		"last_contact": true, "context": true, "sync_status": true,
	},
	"projects": {
		"name": true, "status": true, "priority": true, "notes": true,
	},
	"ideas": {
		"name": true, "one_liner": true, "status": true, "priority": true,
		"tags": true, "notes": true,
	},
	"tasks": {
		"title": true, "status": true, "priority": true, "due_date": true,
		"project_id": true, "person_id": true, "tags": true, "notes": true,
	},
	"events": {
		"title": true, "notes": true,
	},
	"calendar_events": {
		"title": true, "description": true, "location": true, "start_time": true,
		"end_time": true, "all_day": true, "recurrence": true, "person_id": true,
		"calendar_id": true,
	},
}

// SafeTable validates a table name against the whitelist.
func SafeTable(table string) (string, error) {
	if _, ok := writableColumns[table]; !ok {
		return "", fmt.Errorf("%w: table %q not allowed", services.ErrInvalidInput, table)
	}
	return table, nil
}

// SafeColumn validates a column name for the given table.
func SafeColumn(table, column string) (string, error) {
	cols, ok := writableColumns[table]
	if !ok {
		return "", fmt.Errorf("%w: table %q not allowed", services.ErrInvalidInput, table)
	}
	if !cols[column] {
		return "", fmt.Errorf("%w: column %q not allowed on %q", services.ErrInvalidInput, column, table)
	}
	return column, nil
}

// SoftDeletable reports whether a table carries a deleted_at column.
func SoftDeletable(table string) bool {
	return table != "calendar_events"
}
