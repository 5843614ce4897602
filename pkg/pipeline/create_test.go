package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/store"
	"github.com/secondbrainhq/secondbrain/pkg/textproc"
)

func TestTargetRefReadsJSONNumbers(t *testing.T) {
	// Classifications round-trip through JSON, so ids arrive as float64.
	raw := `{"intent":"complete","target":{"table":"tasks","id":42,"label":"Zahnarzt anrufen"}}`
	var classification map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &classification))

	table, id, label := targetRef(classification)
	assert.Equal(t, "tasks", table)
	assert.EqualValues(t, 42, id)
	assert.Equal(t, "Zahnarzt anrufen", label)
}

func TestTargetRefMissingTarget(t *testing.T) {
	table, id, label := targetRef(map[string]any{"intent": "delete"})
	assert.Equal(t, "", table)
	assert.Zero(t, id)
	assert.Equal(t, "", label)
}

func TestMatchCandidatesShape(t *testing.T) {
	got := matchCandidates([]store.Match{
		{Table: "tasks", ID: 7, Name: "Reifen wechseln", Score: 0.8},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "tasks", got[0]["table"])
	assert.EqualValues(t, 7, got[0]["id"])
	assert.Equal(t, "Reifen wechseln", got[0]["name"])
	assert.InDelta(t, 0.8, got[0]["match_score"].(float64), 0.001)
}

func TestOptionEntriesPrefersAgentOptions(t *testing.T) {
	agentOptions := []any{
		map[string]any{"table": "tasks", "id": float64(3), "label": "Steuer"},
		map[string]any{"label": "kaputt"}, // no table, skipped
		"not a map",
	}
	matches := []store.Match{{Table: "ideas", ID: 9, Name: "Steuer-App"}}

	entries := optionEntries(agentOptions, matches)
	require.Len(t, entries, 1)
	assert.Equal(t, "tasks", entries[0]["table"])
}

func TestOptionEntriesFallsBackToMatches(t *testing.T) {
	matches := []store.Match{{Table: "ideas", ID: 9, Name: "Steuer-App"}}

	entries := optionEntries(nil, matches)
	require.Len(t, entries, 1)
	assert.Equal(t, "ideas", entries[0]["table"])
	assert.EqualValues(t, 9, entries[0]["id"])
	assert.Equal(t, "Steuer-App", entries[0]["label"])

	assert.Empty(t, optionEntries([]any{}, nil))
}

func TestChosenOptionMatchesChoice(t *testing.T) {
	options := []any{
		map[string]any{"table": "tasks", "id": float64(3), "label": "Steuer"},
		map[string]any{"table": "projects", "id": float64(5), "label": "Umzug"},
	}

	entry, ok := chosenOption(options, "projects", "umzug")
	require.True(t, ok)
	assert.EqualValues(t, 5, int64(floatValue(entry["id"])))

	_, ok = chosenOption(options, "ideas", "Umzug")
	assert.False(t, ok)
	_, ok = chosenOption("garbage", "tasks", "Steuer")
	assert.False(t, ok)
}

func TestCategoryOptionsCoverCreateTables(t *testing.T) {
	for _, entry := range categoryOptions() {
		table, _ := entry["table"].(string)
		assert.True(t, createTables[table], "unknown table %q", table)
		assert.NotEmpty(t, entry["label"])
	}
}

func TestBuildEntityDataMergesHints(t *testing.T) {
	due := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	hints := textproc.Hints{Status: "inbox", Priority: 1, DueDate: &due}

	data := buildEntityData("tasks", map[string]any{
		"title":    "Steuererklärung abgeben",
		"person":   "Anna",
		"category": "tasks",
		"notes":    "",
	}, hints)

	assert.Equal(t, "Steuererklärung abgeben", data["title"])
	assert.Equal(t, "inbox", data["status"])
	assert.Equal(t, 1, data["priority"])
	assert.Equal(t, "2025-03-20", data["due_date"])
	// Routing fields and empty strings never reach the row.
	assert.NotContains(t, data, "person")
	assert.NotContains(t, data, "category")
	assert.NotContains(t, data, "notes")
}

func TestBuildEntityDataAgentFieldsWin(t *testing.T) {
	due := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	hints := textproc.Hints{Status: "inbox", Priority: 2, DueDate: &due}

	data := buildEntityData("tasks", map[string]any{
		"title":    "X",
		"priority": float64(1),
		"due_date": "2025-04-01",
		"status":   "next",
	}, hints)

	assert.Equal(t, float64(1), data["priority"])
	assert.Equal(t, "2025-04-01", data["due_date"])
	assert.Equal(t, "next", data["status"])
}

func TestLabelOr(t *testing.T) {
	assert.Equal(t, "Zahnarzt", labelOr("Zahnarzt", "tasks", 3))
	assert.Equal(t, "tasks #3", labelOr("", "tasks", 3))
}

func TestFloatValue(t *testing.T) {
	assert.Equal(t, 0.85, floatValue(0.85))
	assert.Equal(t, float64(3), floatValue(3))
	assert.Equal(t, float64(7), floatValue(int64(7)))
	assert.Equal(t, 0.5, floatValue("0.5"))
	assert.Zero(t, floatValue(nil))
	assert.Zero(t, floatValue("quatsch"))
}
