package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Kategorisiere: {text} (heute ist {today})", map[string]any{
		"text":  "milch kaufen",
		"today": "2025-03-12",
	})
	assert.Equal(t, "Kategorisiere: milch kaufen (heute ist 2025-03-12)", out)
}

func TestRenderTemplateComposites(t *testing.T) {
	out := RenderTemplate("Entity: {entity}", map[string]any{
		"entity": map[string]any{"name": "Umzug"},
	})
	assert.Equal(t, `Entity: {"name":"Umzug"}`, out)

	out = RenderTemplate("Zeilen:\n{rows}", map[string]any{
		"rows": []string{"a", "b"},
	})
	assert.Equal(t, "Zeilen:\n[\"a\",\"b\"]", out)
}

func TestRenderTemplateNilAndNumbers(t *testing.T) {
	out := RenderTemplate("due={due} prio={prio}", map[string]any{
		"due":  nil,
		"prio": 2,
	})
	assert.Equal(t, "due=null prio=2", out)
}

func TestRenderTemplateEscapedBraces(t *testing.T) {
	// Doubled braces survive as literals so prompts can show JSON examples.
	out := RenderTemplate(`Antworte als {{"table": "..."}} für: {q}`, map[string]any{
		"q": "offene aufgaben",
	})
	assert.Equal(t, `Antworte als {"table": "..."} für: offene aufgaben`, out)
}

func TestRenderTemplateUnknownPlaceholder(t *testing.T) {
	out := RenderTemplate("hallo {missing}", map[string]any{})
	assert.Equal(t, "hallo {missing}", out)
}
