package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// Every searchable table's name and notes columns must exist in its schema;
// the search query interpolates them into SQL against all tables at once.
func TestEntityColumnsMatchSchema(t *testing.T) {
	for _, table := range EntityTables {
		name := NameColumn(table)
		assert.Truef(t, writableColumns[table][name],
			"name column %q does not exist on %s", name, table)

		notes := NotesColumn(table)
		assert.Truef(t, writableColumns[table][notes],
			"notes column %q does not exist on %s", notes, table)
	}
}

func TestSafeTableRejectsUnknown(t *testing.T) {
	_, err := SafeTable("api_keys")
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	for _, table := range EntityTables {
		got, err := SafeTable(table)
		assert.NoError(t, err)
		assert.Equal(t, table, got)
	}
}
