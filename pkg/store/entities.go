package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// Match is one fuzzy-search hit from the entity tables.
type Match struct {
	Table string  `json:"table"`
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Data  Row     `json:"data"`
	Score float64 `json:"match_score"`
}

// Entities bundles the generic, whitelist-guarded operations on the entity
// tables: weighted search, inserts, partial updates, and soft deletion.
type Entities struct {
	g *Gateway
}

// NewEntities creates the generic entity repository.
func NewEntities(g *Gateway) *Entities {
	return &Entities{g: g}
}

// Search runs the weighted keyword search over all entity tables. Exact name
// match scores 1.0, name substring 0.8, notes substring 0.5. Results are
// deduplicated by (table, id) keeping the best score, sorted descending, and
// capped at maxMatches.
func (e *Entities) Search(ctx context.Context, keywords []string, maxMatches int) ([]Match, error) {
	best := make(map[string]Match)

	for _, table := range EntityTables {
		nameCol := NameColumn(table)
		notesCol := NotesColumn(table)

		liveCond := "deleted_at IS NULL"
		if !SoftDeletable(table) {
			liveCond = "TRUE"
		}

		// Identifiers come from the closed whitelist above; keyword values
		// stay parameterised.
		query := fmt.Sprintf(`
			SELECT id, %[1]s AS name,
			       CASE
			           WHEN LOWER(%[1]s) = $1 THEN 1.0
			           WHEN LOWER(%[1]s) LIKE $2 THEN 0.8
			           WHEN LOWER(COALESCE(%[2]s, '')) LIKE $2 THEN 0.5
			           ELSE 0.3
			       END AS score
			FROM %[3]s
			WHERE %[4]s
			  AND (LOWER(%[1]s) LIKE $2 OR LOWER(COALESCE(%[2]s, '')) LIKE $2)`,
			nameCol, notesCol, table, liveCond)

		for _, kw := range keywords {
			kw = strings.ToLower(kw)
			rows, err := e.g.Query(ctx, query, kw, "%"+kw+"%")
			if err != nil {
				return nil, fmt.Errorf("search %s: %w", table, err)
			}
			for _, row := range rows {
				m := Match{
					Table: table,
					ID:    asInt64(row["id"]),
					Name:  asString(row["name"]),
					Data:  row,
					Score: asFloat64(row["score"]),
				}
				key := fmt.Sprintf("%s:%d", m.Table, m.ID)
				if prev, ok := best[key]; !ok || m.Score > prev.Score {
					best[key] = m
				}
			}
		}
	}

	matches := make([]Match, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if maxMatches > 0 && len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches, nil
}

// Get loads one live row by id.
func (e *Entities) Get(ctx context.Context, table string, id int64) (Row, error) {
	t, err := SafeTable(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", t)
	if SoftDeletable(t) {
		query += " AND deleted_at IS NULL"
	}
	return e.g.QueryOne(ctx, query, id)
}

// Insert creates a row from the given field map inside tx and returns its id.
func (e *Entities) Insert(ctx context.Context, tx *Tx, table string, data map[string]any) (int64, error) {
	t, err := SafeTable(table)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: no fields to insert", services.ErrInvalidInput)
	}

	cols := make([]string, 0, len(data))
	placeholders := make([]string, 0, len(data))
	args := make([]any, 0, len(data))
	i := 1
	for col, val := range data {
		c, err := SafeColumn(t, col)
		if err != nil {
			return 0, err
		}
		cols = append(cols, c)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, bindValue(val))
		i++
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, NOW(), NOW()) RETURNING id",
		t, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	return tx.InsertReturningID(ctx, query, args...)
}

// Update applies only the provided changes to one row inside tx.
func (e *Entities) Update(ctx context.Context, tx *Tx, table string, id int64, changes map[string]any) error {
	t, err := SafeTable(table)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return fmt.Errorf("%w: no changes", services.ErrInvalidInput)
	}

	sets := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	i := 1
	for col, val := range changes {
		c, err := SafeColumn(t, col)
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i))
		args = append(args, bindValue(val))
		i++
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d", t, strings.Join(sets, ", "), i)
	affected, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// MarkDone sets the status of one row to done inside tx.
func (e *Entities) MarkDone(ctx context.Context, tx *Tx, table string, id int64) error {
	t, err := SafeTable(table)
	if err != nil {
		return err
	}
	if _, err := SafeColumn(t, "status"); err != nil {
		return err
	}
	affected, err := tx.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET status = 'done', updated_at = NOW() WHERE id = $1", t), id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// SoftDelete marks one live row deleted inside tx.
func (e *Entities) SoftDelete(ctx context.Context, tx *Tx, table string, id int64) error {
	t, err := SafeTable(table)
	if err != nil {
		return err
	}
	if !SoftDeletable(t) {
		return fmt.Errorf("%w: table %q is not soft-deletable", services.ErrInvalidInput, t)
	}
	affected, err := tx.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", t), id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// bindValue makes composite values bindable: slices and maps go over the wire
// as JSON, everything else as-is.
func bindValue(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, []byte:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
