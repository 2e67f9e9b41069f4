// Package sqlite implements the warehouse backend for a local SQLite
// target using database/sql. SQLite has no server-side bulk loader, so the
// staging bulk copy reads JSON record files from the local filesystem and
// batch-inserts them inside the stage transaction; dimension loads run the
// same SQL as the warehouse targets.
//
// The backend exists for local runs and tests; it enforces the declared
// primary/foreign/uniqueness constraints and ignores columnar layout hints.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

func init() {
	warehouse.Register("sqlite", func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
		return New(ctx, cfg)
	})
}

// Repository is a SQLite-backed warehouse.Repository.
type Repository struct {
	db *sql.DB
}

// New opens the database at cfg.DSN and pings it to fail fast on invalid
// paths. The pool is capped at one connection: the pipeline uses the
// target serially, and a single connection keeps the foreign_keys pragma
// in force for the whole run.
func New(ctx context.Context, cfg warehouse.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Begin(ctx context.Context) (warehouse.Tx, error) {
	sqltx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &tx{tx: sqltx}, nil
}

func (r *Repository) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: exec: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *Repository) Dialect() warehouse.Dialect { return Dialect{} }

func (r *Repository) Close() { r.db.Close() }

type tx struct {
	tx *sql.Tx
}

func (t *tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: exec: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (t *tx) QueryInt64s(ctx context.Context, query string) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v sql.NullInt64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		if v.Valid {
			out = append(out, v.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	return out, nil
}

// CopyFrom inserts rows with a prepared statement. SQLite has no COPY;
// prepared inserts inside the surrounding transaction keep throughput
// acceptable for batch volumes.
func (t *tx) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	stmt, err := t.tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return inserted, fmt.Errorf("sqlite: CopyFrom: row has %d values, want %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		inserted++
	}
	return inserted, nil
}

func (t *tx) BulkLoad(ctx context.Context, table schema.TableDef, src warehouse.BulkSource) (int64, error) {
	rows, err := readSourceRows(table, src)
	if err != nil {
		return 0, err
	}
	return t.CopyFrom(ctx, table.Name, table.ColumnNames(), rows)
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		_ = err
	}
}

// quoteIdent safely quotes a single identifier segment.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
