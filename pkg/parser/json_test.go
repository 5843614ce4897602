package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

func TestExtractPlainObject(t *testing.T) {
	v, err := Extract(`{"category": "tasks", "confidence": 0.9}`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, "tasks", obj["category"])
	assert.Equal(t, 0.9, obj["confidence"])
}

func TestExtractJSONFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"table\": \"tasks\"}\n```\nDone."
	v, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"table": "tasks"}, v)
}

func TestExtractAnonymousFence(t *testing.T) {
	raw := "```\n[1, 2, 3]\n```"
	v, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, v)
}

func TestExtractBalancedObjectFromProse(t *testing.T) {
	raw := `Sure! The structured answer is {"name": "Anna {M}üller", "priority": 2} as requested.`
	v, err := Extract(raw)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, "Anna {M}üller", obj["name"])
}

func TestExtractBalancedArray(t *testing.T) {
	raw := `The options are ["a", "b"] in my view.`
	v, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestExtractNoJSON(t *testing.T) {
	_, err := Extract("I could not produce any structured data, sorry.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	_, err = Extract("   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}

func TestExtractObjectRejectsArray(t *testing.T) {
	_, err := ExtractObject(`[{"a": 1}]`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}

func TestExtractUnbalancedBraces(t *testing.T) {
	_, err := Extract(`{"broken": "value`)
	require.Error(t, err)
}
