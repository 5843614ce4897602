package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// The whitelisted query skeletons must select the same name column the store
// whitelist declares, since name searches interpolate that column.
func TestBaseQueriesUseSchemaColumns(t *testing.T) {
	for table, bq := range baseQueries {
		nameCol := store.NameColumn(table)
		assert.Truef(t, strings.Contains(bq.sql, nameCol),
			"base query for %s does not select its name column %q: %s", table, nameCol, bq.sql)
		assert.Truef(t, strings.HasPrefix(bq.sql, "SELECT "),
			"base query for %s is not a plain select", table)
	}
}

func TestBaseQueriesCoverEntityTables(t *testing.T) {
	for _, table := range store.EntityTables {
		_, ok := baseQueries[table]
		assert.Truef(t, ok, "no base query for %s", table)
	}
}
