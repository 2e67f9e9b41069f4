// Package redshift implements the warehouse backend for Redshift and plain
// Postgres targets using pgx v5. Staging is fed by the server-side COPY
// ... FROM <object store> bulk loader; everything else is ordinary SQL over
// a pgxpool connection.
package redshift

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

func init() {
	warehouse.Register("redshift", func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
		return New(ctx, cfg, true)
	})
	// Plain Postgres shares the backend; it enforces the declared
	// constraints and ignores the columnar layout hints.
	warehouse.Register("postgres", func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
		return New(ctx, cfg, false)
	})
}

// Repository is a Redshift/Postgres-backed warehouse.Repository.
type Repository struct {
	pool    *pgxpool.Pool
	dialect Dialect
}

// New opens a connection pool against cfg.DSN and pings it to fail fast on
// unreachable or misconfigured targets.
func New(ctx context.Context, cfg warehouse.Config, columnar bool) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool, dialect: Dialect{columnar: columnar}}, nil
}

func (r *Repository) Begin(ctx context.Context) (warehouse.Tx, error) {
	pgtx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, pgError("begin", err)
	}
	return &tx{tx: pgtx, columnar: r.dialect.columnar}, nil
}

func (r *Repository) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, pgError("exec", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) Dialect() warehouse.Dialect { return r.dialect }

func (r *Repository) Close() { r.pool.Close() }

type tx struct {
	tx       pgx.Tx
	columnar bool
}

func (t *tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, pgError("exec", err)
	}
	return tag.RowsAffected(), nil
}

func (t *tx) QueryInt64s(ctx context.Context, sql string) ([]int64, error) {
	rows, err := t.tx.Query(ctx, sql)
	if err != nil {
		return nil, pgError("query", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v *int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("query", err)
	}
	return out, nil
}

// CopyFrom bulk-inserts prepared rows. Redshift does not speak the COPY
// wire protocol, so the columnar path falls back to chunked multi-row
// INSERTs; plain Postgres uses native CopyFrom.
func (t *tx) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !t.columnar {
		n, err := t.tx.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, pgError("copy", err)
		}
		return n, nil
	}

	var inserted int64
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		n, err := t.insertChunk(ctx, table, columns, rows[start:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

const insertChunk = 500

func (t *tx) insertChunk(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	values := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("copy %s: row has %d values, want %d", table, len(row), len(columns))
		}
		ph := make([]string, len(columns))
		for j, v := range row {
			args = append(args, v)
			ph[j] = fmt.Sprintf("$%d", len(args))
		}
		values[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteFQN(table), strings.Join(columns, ", "), strings.Join(values, ", "))
	tag, err := t.tx.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, pgError("copy", err)
	}
	return tag.RowsAffected(), nil
}

// BulkLoad issues the target's server-side bulk copy from object storage
// into a staging relation. The statement is a pure pass-through: source
// reachability, credential checks, and per-record parsing are all enforced
// by the loader itself.
func (t *tx) BulkLoad(ctx context.Context, table schema.TableDef, src warehouse.BulkSource) (int64, error) {
	tag, err := t.tx.Exec(ctx, copyStatement(table.Name, src))
	if err != nil {
		return 0, pgError("bulk copy", err)
	}
	return tag.RowsAffected(), nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return pgError("commit", err)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) {
	// Rollback after Commit is a no-op; pgx reports ErrTxClosed.
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		_ = err
	}
}

// copyStatement renders the vendor bulk-load statement. Events carry an
// explicit jsonpaths mapping; anything without one maps JSON keys to
// columns automatically.
func copyStatement(table string, src warehouse.BulkSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s\nFROM %s\nIAM_ROLE %s\n", quoteIdent(table), quoteLiteral(src.Location), quoteLiteral(src.Credential))
	if src.Mapping != "" {
		fmt.Fprintf(&b, "JSON %s", quoteLiteral(src.Mapping))
	} else {
		b.WriteString("JSON 'auto'")
	}
	if src.Region != "" {
		fmt.Fprintf(&b, "\nREGION %s", quoteLiteral(src.Region))
	}
	return b.String()
}

// pgError extracts the server-side detail from a pgconn error, which is
// where constraint and COPY diagnostics live.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s: %s (%s)", op, pgErr.Message, pgErr.Detail, pgErr.SQLState())
	}
	return fmt.Errorf("%s: %w", op, err)
}

// quoteIdent safely quotes a single identifier segment.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// quoteFQN quotes a possibly schema-qualified name like "public.songplays".
func quoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// splitFQN converts "schema.table" into a pgx.Identifier.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// quoteLiteral renders a single-quoted SQL string literal.
func quoteLiteral(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }
