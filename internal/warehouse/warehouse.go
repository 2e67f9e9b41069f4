// Package warehouse defines the storage abstraction the pipeline runs
// against: a Repository opened from configuration, transactions carrying
// the per-stage commit points, and a Dialect describing how the target
// renders DDL and the handful of SQL fragments that differ per backend.
//
// Concrete backends live in subpackages and register themselves with this
// package's factory via init; importing warehouse/all (typically as a blank
// import in the wiring layer) makes every built-in backend available.
package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sparkify/internal/schema"
)

// Config selects and configures a backend.
type Config struct {
	// Kind names a registered backend, e.g. "redshift" or "sqlite".
	Kind string

	// DSN is the backend-specific connection string.
	DSN string
}

// BulkSource locates one set of input files for a staging bulk load.
type BulkSource struct {
	// Location is a directory or object-storage prefix of JSON records.
	Location string

	// Mapping optionally locates a jsonpaths file assigning JSON fields to
	// staging columns by position. Empty means automatic name matching.
	Mapping string

	// Credential identifies the caller to the storage system, e.g. an IAM
	// role ARN. Backends reading the local filesystem ignore it.
	Credential string

	// Region is the object-storage region, if the loader needs one.
	Region string
}

// Repository is a connection to one warehouse target.
type Repository interface {
	// Begin opens a transaction. The pipeline commits once per stage.
	Begin(ctx context.Context) (Tx, error)

	// Exec runs a statement outside any transaction (DDL, mostly) and
	// returns the number of rows affected where the target reports one.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Dialect describes the target's SQL surface.
	Dialect() Dialect

	// Close releases the connection.
	Close()
}

// Tx is one transaction against the target. The warehouse connection is
// used serially; implementations need not be safe for concurrent use.
type Tx interface {
	// Exec runs a statement and returns the rows affected where the target
	// reports one.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// QueryInt64s runs a single-column query and returns its values,
	// skipping NULLs.
	QueryInt64s(ctx context.Context, sql string) ([]int64, error)

	// CopyFrom bulk-inserts prepared rows into a relation. row[i] values
	// align with columns[i].
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// BulkLoad ingests raw JSON records from src into a staging relation,
	// using the target's native bulk-copy mechanism. It validates nothing
	// beyond what that mechanism itself enforces.
	BulkLoad(ctx context.Context, table schema.TableDef, src BulkSource) (int64, error)

	Commit(ctx context.Context) error

	// Rollback discards the transaction. Safe to call after Commit.
	Rollback(ctx context.Context)
}

// Dialect is the SQL surface of one backend. Everything else the pipeline
// issues is portable and built by the load stage itself.
type Dialect interface {
	Name() string

	// CreateTableSQL renders a catalog relation, including constraints and
	// whatever layout hints the target honors.
	CreateTableSQL(def schema.TableDef) string

	// DropTableSQL renders an idempotent drop.
	DropTableSQL(table string) string

	// EpochMillisToTimestamp renders the conversion of an epoch-millisecond
	// SQL expression to the target's timestamp representation, truncated to
	// whole seconds.
	EpochMillisToTimestamp(expr string) string

	// TimestampValue encodes a Go time for insertion into a timestamp
	// column so that it compares equal to EpochMillisToTimestamp output.
	TimestampValue(t time.Time) any

	// MergeSQL renders the statements that merge the rows produced by
	// selectSQL into table keyed on keyColumns, replacing attribute values
	// on key conflict (last-write-wins).
	MergeSQL(table string, columns, keyColumns []string, selectSQL string) []string

	// TempTableSQL renders creation of an empty session-local table with
	// the same shape as like.
	TempTableSQL(tmp, like string) string
}

// ConnectionError reports that the target is unreachable or refused the
// configured credentials.
type ConnectionError struct {
	Kind string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("warehouse %s: connect: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var factories = map[string]Factory{}

// Register installs a backend factory under the given kind. Backends call
// Register from init; duplicate kinds panic at startup.
func Register(kind string, f Factory) {
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("warehouse: duplicate backend kind %q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New opens a Repository for cfg.Kind. Open or ping failures are reported
// as *ConnectionError.
func New(ctx context.Context, cfg Config) (Repository, error) {
	f, ok := factories[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("warehouse: unknown kind %q (registered: %s)",
			cfg.Kind, strings.Join(Kinds(), ", "))
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, &ConnectionError{Kind: cfg.Kind, Err: err}
	}
	return repo, nil
}
