package redshift

import (
	"fmt"
	"strings"
	"time"

	"sparkify/internal/schema"
)

// Dialect renders catalog definitions and the backend-specific SQL
// fragments for Redshift (columnar) and plain Postgres targets.
type Dialect struct {
	// columnar enables the Redshift surface: IDENTITY(0,1) columns and
	// DISTKEY/SORTKEY layout hints. Plain Postgres uses standard identity
	// syntax and ignores the hints.
	columnar bool
}

func (d Dialect) Name() string {
	if d.columnar {
		return "redshift"
	}
	return "postgres"
}

func (d Dialect) CreateTableSQL(def schema.TableDef) string {
	lines := make([]string, 0, len(def.Columns)+2)
	var pk []string
	for _, c := range def.Columns {
		var b strings.Builder
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(d.columnSQL(c))
		if c.NotNull && !c.Identity {
			b.WriteString(" NOT NULL")
		}
		if c.References != nil {
			fmt.Fprintf(&b, " REFERENCES %s (%s)", quoteIdent(c.References.Table), c.References.Column)
		}
		lines = append(lines, b.String())
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	for _, u := range def.Uniques {
		lines = append(lines, fmt.Sprintf("UNIQUE (%s)", strings.Join(u, ", ")))
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdent(def.Name), strings.Join(lines, ",\n  "))
	if d.columnar {
		if def.DistKey != "" {
			stmt += fmt.Sprintf("\nDISTKEY (%s)", def.DistKey)
		}
		if len(def.SortKey) > 0 {
			stmt += fmt.Sprintf("\nSORTKEY (%s)", strings.Join(def.SortKey, ", "))
		}
	}
	return stmt
}

func (d Dialect) columnSQL(c schema.ColumnDef) string {
	if c.Identity {
		if d.columnar {
			return "INTEGER IDENTITY(0,1)"
		}
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY"
	}
	switch c.Type {
	case schema.Char:
		return "CHAR(1)"
	case schema.Int:
		return "INTEGER"
	case schema.BigInt:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE PRECISION"
	case schema.Timestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func (d Dialect) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))
}

func (d Dialect) EpochMillisToTimestamp(expr string) string {
	return fmt.Sprintf("TIMESTAMP 'epoch' + %s / 1000 * INTERVAL '1 second'", expr)
}

func (d Dialect) TimestampValue(t time.Time) any { return t.UTC() }

// MergeSQL merges select output into table keyed on keyColumns with
// last-write-wins semantics. Redshift has no ON CONFLICT, so the merge is
// the canonical delete-then-insert pair; both statements run inside the
// stage's transaction.
func (d Dialect) MergeSQL(table string, columns, keyColumns []string, selectSQL string) []string {
	target := quoteIdent(table)
	conds := make([]string, len(keyColumns))
	for i, k := range keyColumns {
		conds[i] = fmt.Sprintf("s.%s = %s.%s", k, target, k)
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE EXISTS (SELECT 1 FROM (%s) s WHERE %s)",
		target, selectSQL, strings.Join(conds, " AND "))
	ins := fmt.Sprintf("INSERT INTO %s (%s)\n%s",
		target, strings.Join(columns, ", "), selectSQL)
	return []string{del, ins}
}

func (d Dialect) TempTableSQL(tmp, like string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM %s WHERE 1 = 0",
		quoteIdent(tmp), quoteIdent(like))
}
