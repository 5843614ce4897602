package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrefix(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		intent    string
		remainder string
	}{
		{"question mark routes to query", "? welche aufgaben sind offen", IntentQuery, "welche aufgaben sind offen"},
		{"bang routes to edit", "!zahnarzt erledigt", IntentEdit, "zahnarzt erledigt"},
		{"no prefix is a create", "milch kaufen", IntentCreate, "milch kaufen"},
		{"leading whitespace before prefix", "  ? status projekt umzug", IntentQuery, "status projekt umzug"},
		{"bare prefix leaves empty remainder", "!", IntentEdit, ""},
		{"question mark mid-text does not route", "kaufen? vielleicht", IntentCreate, "kaufen? vielleicht"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			intent, remainder := ParsePrefix(tc.input)
			assert.Equal(t, tc.intent, intent)
			assert.Equal(t, tc.remainder, remainder)
		})
	}
}
