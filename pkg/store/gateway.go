// Package store implements the storage gateway and typed repositories on top
// of the pooled database client. Callers construct SQL with parameterised
// binds; dynamically interpolated identifiers must come from the whitelist in
// identifiers.go.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/database"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// Row is one result row keyed by column name.
type Row map[string]any

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Gateway provides dictionary-shaped query access and transactional helpers.
type Gateway struct {
	db *sql.DB
}

// New creates a gateway over the database client.
func New(client *database.Client) *Gateway {
	return &Gateway{db: client.DB()}
}

// NewFromDB wraps a raw connection (used by tests).
func NewFromDB(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

// DB exposes the underlying pool for health checks.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// Query runs a SELECT and returns all rows as column-name maps.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, g.db, query, args...)
}

// QueryOne runs a SELECT expected to return one row. Returns
// services.ErrNotFound when the result set is empty.
func (g *Gateway) QueryOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := queryRows(ctx, g.db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, services.ErrNotFound
	}
	return rows[0], nil
}

// Exec runs a statement and returns the number of affected rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// Tx is an open transaction with the same query surface as the gateway.
type Tx struct {
	tx *sql.Tx
}

// Query runs a SELECT inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, t.tx, query, args...)
}

// QueryOne runs a single-row SELECT inside the transaction.
func (t *Tx) QueryOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := queryRows(ctx, t.tx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, services.ErrNotFound
	}
	return rows[0], nil
}

// Exec runs a statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// InsertReturningID runs an INSERT ... RETURNING id inside the transaction.
func (t *Tx) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert failed: %w", err)
	}
	return id, nil
}

// Tx runs fn inside a transaction. A returned error rolls everything back.
func (g *Gateway) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Healthy reports whether the connection answers a ping.
func (g *Gateway) Healthy(ctx context.Context) bool {
	return g.db.PingContext(ctx) == nil
}

func queryRows(ctx context.Context, q querier, query string, args ...any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			// pgx hands text columns back as []byte through database/sql
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}
