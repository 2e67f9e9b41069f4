package sqlite

import (
	"fmt"
	"strings"
	"time"

	"sparkify/internal/schema"
)

// Dialect renders catalog definitions and backend-specific SQL fragments
// for SQLite. Timestamps are stored as "YYYY-MM-DD HH:MM:SS" UTC text so
// that values derived in SQL via datetime() and values inserted from Go
// compare equal.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (d Dialect) CreateTableSQL(def schema.TableDef) string {
	lines := make([]string, 0, len(def.Columns)+2)
	var pk []string
	for _, c := range def.Columns {
		var b strings.Builder
		b.WriteString(c.Name)
		if c.Identity {
			// SQLite surrogate keys ride on the rowid.
			b.WriteString(" INTEGER PRIMARY KEY AUTOINCREMENT")
			lines = append(lines, b.String())
			continue
		}
		b.WriteByte(' ')
		b.WriteString(typeSQL(c.Type))
		if c.NotNull {
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

	// SortKey and DistKey are columnar layout hints; SQLite ignores them.
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdent(def.Name), strings.Join(lines, ",\n  "))
}

func typeSQL(t schema.Type) string {
	switch t {
	case schema.Int, schema.BigInt:
		return "INTEGER"
	case schema.Float:
		return "REAL"
	default:
		// text, char, timestamp
		return "TEXT"
	}
}

func (Dialect) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))
}

func (Dialect) EpochMillisToTimestamp(expr string) string {
	return fmt.Sprintf("datetime(%s / 1000, 'unixepoch')", expr)
}

const timestampLayout = "2006-01-02 15:04:05"

func (Dialect) TimestampValue(t time.Time) any {
	return t.UTC().Format(timestampLayout)
}

// MergeSQL merges select output into table keyed on keyColumns using the
// native upsert, updating attribute columns on conflict (last-write-wins).
func (Dialect) MergeSQL(table string, columns, keyColumns []string, selectSQL string) []string {
	keys := make(map[string]bool, len(keyColumns))
	for _, k := range keyColumns {
		keys[k] = true
	}
	var sets []string
	for _, c := range columns {
		if !keys[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	conflict := fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(keyColumns, ", "))
	if len(sets) > 0 {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(keyColumns, ", "), strings.Join(sets, ", "))
	}

	return []string{fmt.Sprintf("INSERT INTO %s (%s)\n%s\n%s",
		quoteIdent(table), strings.Join(columns, ", "), selectSQL, conflict)}
}

func (Dialect) TempTableSQL(tmp, like string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM %s WHERE 1 = 0",
		quoteIdent(tmp), quoteIdent(like))
}
