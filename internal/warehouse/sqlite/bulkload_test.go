package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TestParseJSONPath covers the bracket jsonpath form used by warehouse
// mapping files.
func TestParseJSONPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "single segment", in: "$['artist']", want: []string{"artist"}},
		{name: "nested segments", in: "$['user']['id']", want: []string{"user", "id"}},
		{name: "missing root", in: "['artist']", wantErr: true},
		{name: "unterminated", in: "$['artist", wantErr: true},
		{name: "dotted form unsupported", in: "$.artist", wantErr: true},
		{name: "bare root", in: "$", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseJSONPath(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseJSONPath(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseJSONPath(%q): %v", tt.in, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseJSONPath(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("parseJSONPath(%q) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}

// TestReadSourceRowsAuto reads song-catalog style files (one object per
// file) with automatic field matching.
func TestReadSourceRowsAuto(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "song1.json",
		`{"num_songs": 1, "artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Test Artist", "song_id": "S1", "title": "Test Song", "duration": 200.0, "year": 2001}`)
	writeFile(t, dir, "notes.txt", "ignored")

	rows, err := readSourceRows(schema.StagingSongs, warehouse.BulkSource{Location: dir})
	if err != nil {
		t.Fatalf("readSourceRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	row := rows[0]
	cols := schema.StagingSongs.ColumnNames()
	byName := map[string]any{}
	for i, c := range cols {
		byName[c] = row[i]
	}
	if byName["num_songs"] != int64(1) {
		t.Errorf("num_songs = %v (%T), want int64 1", byName["num_songs"], byName["num_songs"])
	}
	if byName["artist_latitude"] != nil {
		t.Errorf("artist_latitude = %v, want nil", byName["artist_latitude"])
	}
	if byName["duration"] != 200.0 {
		t.Errorf("duration = %v, want 200.0", byName["duration"])
	}
	if byName["song_id"] != "S1" {
		t.Errorf("song_id = %v, want S1", byName["song_id"])
	}
}

// TestReadSourceRowsNDJSONWithMapping reads activity-log style files
// (newline-delimited objects, camelCase keys) through a jsonpaths mapping.
func TestReadSourceRowsNDJSONWithMapping(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logs := filepath.Join(dir, "log_data")
	if err := os.MkdirAll(logs, 0o755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, logs, "2018-11-12-events.json",
		`{"artist":"Test Artist","auth":"Logged In","firstName":"Ada","gender":"F","itemInSession":0,"lastName":"Lovelace","length":200.0,"level":"paid","location":"London","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":583,"song":"Test Song","status":200,"ts":1500000000000,"userAgent":"Mozilla/5.0","userId":"42"}
{"artist":null,"auth":"Logged In","firstName":"Ada","gender":"F","itemInSession":1,"lastName":"Lovelace","length":null,"level":"paid","location":"London","method":"GET","page":"Home","registration":1540919166796.0,"sessionId":583,"song":null,"status":200,"ts":1500000001000,"userAgent":"Mozilla/5.0","userId":"42"}`)

	mapping := writeFile(t, dir, "log_json_path.json", eventJSONPaths)

	rows, err := readSourceRows(schema.StagingEvents, warehouse.BulkSource{Location: logs, Mapping: mapping})
	if err != nil {
		t.Fatalf("readSourceRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	cols := schema.StagingEvents.ColumnNames()
	first := map[string]any{}
	for i, c := range cols {
		first[c] = rows[0][i]
	}
	if first["ts"] != int64(1500000000000) {
		t.Errorf("ts = %v (%T), want int64 1500000000000", first["ts"], first["ts"])
	}
	if first["page"] != "NextSong" {
		t.Errorf("page = %v, want NextSong", first["page"])
	}
	if first["user_id"] != "42" {
		t.Errorf("user_id = %v, want \"42\"", first["user_id"])
	}
	if first["item_in_session"] != int64(0) {
		t.Errorf("item_in_session = %v, want int64 0", first["item_in_session"])
	}
}

// TestReadSourceRowsErrors covers unreachable locations, malformed JSON and
// type mismatches, each of which must fail the load rather than skip rows.
func TestReadSourceRowsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(t *testing.T) warehouse.BulkSource
		wantIn  string
	}{
		{
			name: "missing location",
			prepare: func(t *testing.T) warehouse.BulkSource {
				return warehouse.BulkSource{Location: filepath.Join(t.TempDir(), "absent")}
			},
			wantIn: "absent",
		},
		{
			name: "malformed json",
			prepare: func(t *testing.T) warehouse.BulkSource {
				dir := t.TempDir()
				writeFile(t, dir, "bad.json", `{"song_id": `)
				return warehouse.BulkSource{Location: dir}
			},
			wantIn: "bad.json",
		},
		{
			name: "type mismatch",
			prepare: func(t *testing.T) warehouse.BulkSource {
				dir := t.TempDir()
				writeFile(t, dir, "song.json", `{"song_id": "S1", "year": "not a year"}`)
				return warehouse.BulkSource{Location: dir}
			},
			wantIn: "year",
		},
		{
			name: "scalar record",
			prepare: func(t *testing.T) warehouse.BulkSource {
				dir := t.TempDir()
				writeFile(t, dir, "scalar.json", `42`)
				return warehouse.BulkSource{Location: dir}
			},
			wantIn: "not a JSON object",
		},
		{
			name: "mapping arity mismatch",
			prepare: func(t *testing.T) warehouse.BulkSource {
				dir := t.TempDir()
				writeFile(t, dir, "song.json", `{"song_id": "S1"}`)
				mapping := writeFile(t, dir, "paths.json", `{"jsonpaths": ["$['song_id']"]}`)
				return warehouse.BulkSource{Location: dir, Mapping: mapping}
			},
			wantIn: "jsonpaths",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := tt.prepare(t)
			_, err := readSourceRows(schema.StagingSongs, src)
			if err == nil {
				t.Fatal("readSourceRows succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error %q does not mention %q", err, tt.wantIn)
			}
		})
	}
}

// eventJSONPaths is the positional field mapping for staging_events,
// matching the column order declared in the catalog.
const eventJSONPaths = `{
  "jsonpaths": [
    "$['artist']",
    "$['auth']",
    "$['firstName']",
    "$['gender']",
    "$['itemInSession']",
    "$['lastName']",
    "$['length']",
    "$['level']",
    "$['location']",
    "$['method']",
    "$['page']",
    "$['registration']",
    "$['sessionId']",
    "$['song']",
    "$['status']",
    "$['ts']",
    "$['userAgent']",
    "$['userId']"
  ]
}`
