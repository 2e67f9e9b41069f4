package redshift

import (
	"strings"
	"testing"

	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

// TestCopyStatement verifies the bulk-copy statement shape for both the
// explicit-mapping and auto-mapping forms.
func TestCopyStatement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      warehouse.BulkSource
		contains []string
		excludes []string
	}{
		{
			name: "events with jsonpaths and region",
			src: warehouse.BulkSource{
				Location:   "s3://bucket/log_data",
				Mapping:    "s3://bucket/log_json_path.json",
				Credential: "arn:aws:iam::1:role/dwh",
				Region:     "us-west-2",
			},
			contains: []string{
				`COPY "staging_events"`,
				"FROM 's3://bucket/log_data'",
				"IAM_ROLE 'arn:aws:iam::1:role/dwh'",
				"JSON 's3://bucket/log_json_path.json'",
				"REGION 'us-west-2'",
			},
			excludes: []string{"'auto'"},
		},
		{
			name: "songs auto mapping without region",
			src: warehouse.BulkSource{
				Location:   "s3://bucket/song_data",
				Credential: "arn:aws:iam::1:role/dwh",
			},
			contains: []string{"JSON 'auto'"},
			excludes: []string{"REGION"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := copyStatement("staging_events", tt.src)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("statement missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("statement unexpectedly contains %q:\n%s", bad, got)
				}
			}
		})
	}
}

// TestCreateTableSQLColumnar verifies Redshift rendering of the fact table:
// identity column, constraints, and layout hints.
func TestCreateTableSQLColumnar(t *testing.T) {
	t.Parallel()

	got := Dialect{columnar: true}.CreateTableSQL(schema.Songplays)
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "songplays"`,
		"songplay_id INTEGER IDENTITY(0,1)",
		`start_time TIMESTAMP NOT NULL REFERENCES "time" (start_time)`,
		`user_id VARCHAR NOT NULL REFERENCES "users" (user_id)`,
		"PRIMARY KEY (songplay_id)",
		"UNIQUE (start_time, user_id, song_id, artist_id)",
		"DISTKEY (song_id)",
		"SORTKEY (start_time, user_id, song_id, artist_id)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("DDL missing %q:\n%s", want, got)
		}
	}
}

// TestCreateTableSQLPostgres verifies that the non-columnar variant uses
// standard identity syntax and drops the layout hints.
func TestCreateTableSQLPostgres(t *testing.T) {
	t.Parallel()

	got := Dialect{columnar: false}.CreateTableSQL(schema.Songplays)
	if !strings.Contains(got, "GENERATED BY DEFAULT AS IDENTITY") {
		t.Errorf("DDL missing standard identity:\n%s", got)
	}
	for _, bad := range []string{"IDENTITY(0,1)", "DISTKEY", "SORTKEY"} {
		if strings.Contains(got, bad) {
			t.Errorf("DDL unexpectedly contains %q:\n%s", bad, got)
		}
	}
}

// TestMergeSQL verifies the delete-then-insert merge pair.
func TestMergeSQL(t *testing.T) {
	t.Parallel()

	sel := "SELECT user_id, level FROM staging_events WHERE 1 = 1"
	stmts := Dialect{columnar: true}.MergeSQL("users", []string{"user_id", "level"}, []string{"user_id"}, sel)
	if len(stmts) != 2 {
		t.Fatalf("MergeSQL returned %d statements, want 2", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], `DELETE FROM "users"`) {
		t.Errorf("first statement is not the delete:\n%s", stmts[0])
	}
	if !strings.Contains(stmts[0], `s.user_id = "users".user_id`) {
		t.Errorf("delete missing key condition:\n%s", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], `INSERT INTO "users" (user_id, level)`) {
		t.Errorf("second statement is not the insert:\n%s", stmts[1])
	}
	if !strings.Contains(stmts[1], sel) {
		t.Errorf("insert does not carry the select body:\n%s", stmts[1])
	}
}

// TestEpochExpression verifies the epoch-milliseconds conversion fragment.
func TestEpochExpression(t *testing.T) {
	t.Parallel()

	got := Dialect{columnar: true}.EpochMillisToTimestamp("se.ts")
	want := "TIMESTAMP 'epoch' + se.ts / 1000 * INTERVAL '1 second'"
	if got != want {
		t.Fatalf("EpochMillisToTimestamp = %q, want %q", got, want)
	}
}

// TestQuoteLiteral verifies single-quote escaping in rendered literals.
func TestQuoteLiteral(t *testing.T) {
	t.Parallel()

	if got := quoteLiteral("it's"); got != "'it''s'" {
		t.Fatalf("quoteLiteral = %q", got)
	}
}
