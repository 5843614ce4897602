package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

func TestCoerceFillsDefaults(t *testing.T) {
	schema := map[string]Field{
		"status":   {Type: "string", Default: "inbox"},
		"priority": {Type: "int", Default: 2},
	}
	out, err := Coerce(map[string]any{}, schema)
	require.NoError(t, err)
	assert.Equal(t, "inbox", out["status"])
	assert.Equal(t, 2, out["priority"])
}

func TestCoerceMissingRequired(t *testing.T) {
	schema := map[string]Field{
		"category": {Type: "string", Required: true},
	}
	_, err := Coerce(map[string]any{"category": nil}, schema)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}

func TestCoerceNumericConversions(t *testing.T) {
	schema := map[string]Field{
		"priority":   {Type: "int"},
		"confidence": {Type: "float"},
	}

	// JSON numbers arrive as float64; strings like "3.0" still count as ints.
	out, err := Coerce(map[string]any{"priority": 3.0, "confidence": "0.85"}, schema)
	require.NoError(t, err)
	assert.Equal(t, 3, out["priority"])
	assert.Equal(t, 0.85, out["confidence"])

	out, err = Coerce(map[string]any{"priority": "2.0", "confidence": 1}, schema)
	require.NoError(t, err)
	assert.Equal(t, 2, out["priority"])
	assert.Equal(t, 1.0, out["confidence"])

	_, err = Coerce(map[string]any{"priority": "hoch", "confidence": 0.5}, schema)
	require.Error(t, err)
}

func TestCoerceBool(t *testing.T) {
	schema := map[string]Field{"all_day": {Type: "bool"}}

	for _, raw := range []any{true, "ja", "Yes", "1", 1.0} {
		out, err := Coerce(map[string]any{"all_day": raw}, schema)
		require.NoError(t, err)
		assert.Equal(t, true, out["all_day"], "input %v", raw)
	}

	out, err := Coerce(map[string]any{"all_day": "nein"}, schema)
	require.NoError(t, err)
	assert.Equal(t, false, out["all_day"])
}

func TestCoerceListFromString(t *testing.T) {
	schema := map[string]Field{"tags": {Type: "list"}}
	out, err := Coerce(map[string]any{"tags": "privat, arbeit , "}, schema)
	require.NoError(t, err)
	assert.Equal(t, []any{"privat", "arbeit"}, out["tags"])

	assert.Equal(t, []string{"privat", "arbeit"}, Strings(out["tags"]))
}

func TestCoercePassesUnknownKeys(t *testing.T) {
	out, err := Coerce(map[string]any{"extra": "kept"}, map[string]Field{})
	require.NoError(t, err)
	assert.Equal(t, "kept", out["extra"])
}

func TestCoerceStringFromNumber(t *testing.T) {
	schema := map[string]Field{"phone": {Type: "string"}}
	out, err := Coerce(map[string]any{"phone": 491701234.0}, schema)
	require.NoError(t, err)
	assert.Equal(t, "491701234", out["phone"])
}
