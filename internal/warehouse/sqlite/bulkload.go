package sqlite

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

// readSourceRows walks src.Location for *.json record files and converts
// every record into a row aligned with the staging relation's columns.
//
// Files may hold one JSON object, a top-level array of objects, or
// newline-delimited objects; the activity logs are NDJSON while the song
// catalog is one object per file, and the decoder handles both without
// being told which is which.
func readSourceRows(table schema.TableDef, src warehouse.BulkSource) ([][]any, error) {
	fields, err := sourceFields(table, src)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(src.Location, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Location, err)
	}

	var rows [][]any
	for _, path := range files {
		fileRows, err := readFileRows(path, table, fields)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// sourceFields resolves the JSON field read for each staging column:
// either the positional jsonpaths mapping or the column names themselves.
func sourceFields(table schema.TableDef, src warehouse.BulkSource) ([][]string, error) {
	cols := table.ColumnNames()
	if src.Mapping == "" {
		fields := make([][]string, len(cols))
		for i, c := range cols {
			fields[i] = []string{c}
		}
		return fields, nil
	}

	fields, err := readJSONPaths(src.Mapping)
	if err != nil {
		return nil, err
	}
	if len(fields) != len(cols) {
		return nil, fmt.Errorf("mapping %s: %d jsonpaths for %d columns of %s",
			src.Mapping, len(fields), len(cols), table.Name)
	}
	return fields, nil
}

// readJSONPaths parses a jsonpaths mapping file of the form
//
//	{"jsonpaths": ["$['artist']", "$['auth']", ...]}
//
// and returns, per entry, the chain of object keys to follow.
func readJSONPaths(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	var doc struct {
		JSONPaths []string `json:"jsonpaths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	if len(doc.JSONPaths) == 0 {
		return nil, fmt.Errorf("mapping %s: no jsonpaths entries", path)
	}

	fields := make([][]string, len(doc.JSONPaths))
	for i, p := range doc.JSONPaths {
		keys, err := parseJSONPath(p)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", path, err)
		}
		fields[i] = keys
	}
	return fields, nil
}

// parseJSONPath accepts the bracket form used by warehouse jsonpaths files,
// e.g. $['artist'] or $['user']['id'].
func parseJSONPath(p string) ([]string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(p), "$")
	if !ok {
		return nil, fmt.Errorf("jsonpath %q: missing $ root", p)
	}
	var keys []string
	for rest != "" {
		if !strings.HasPrefix(rest, "['") {
			return nil, fmt.Errorf("jsonpath %q: unsupported segment %q", p, rest)
		}
		end := strings.Index(rest, "']")
		if end < 0 {
			return nil, fmt.Errorf("jsonpath %q: unterminated segment", p)
		}
		keys = append(keys, rest[2:end])
		rest = rest[end+2:]
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("jsonpath %q: no segments", p)
	}
	return keys, nil
}

func readFileRows(path string, table schema.TableDef, fields [][]string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source file %s: %w", path, err)
	}
	defer f.Close()

	var rows [][]any
	dec := json.NewDecoder(f)
	record := 0
	for {
		var v any
		if err := dec.Decode(&v); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, record+1, err)
		}

		var objs []map[string]any
		switch rec := v.(type) {
		case map[string]any:
			objs = append(objs, rec)
		case []any:
			for _, e := range rec {
				obj, ok := e.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%s: record %d: array element is not an object", path, record+1)
				}
				objs = append(objs, obj)
			}
		default:
			return nil, fmt.Errorf("%s: record %d: not a JSON object", path, record+1)
		}

		for _, obj := range objs {
			record++
			row, err := buildRow(table, fields, obj)
			if err != nil {
				return nil, fmt.Errorf("%s: record %d: %w", path, record, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func buildRow(table schema.TableDef, fields [][]string, obj map[string]any) ([]any, error) {
	row := make([]any, len(table.Columns))
	for i, col := range table.Columns {
		v, err := coerce(col, lookup(obj, fields[i]))
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// lookup follows a chain of object keys; a missing key yields nil, which
// loads as NULL, matching the warehouse loader's treatment of absent fields.
func lookup(obj map[string]any, keys []string) any {
	var v any = obj
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// coerce converts a decoded JSON value to the staging column's declared
// type. A value the declared type cannot hold is a parse failure, exactly
// as the warehouse bulk loader would report one.
func coerce(col schema.ColumnDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case schema.Int, schema.BigInt:
		switch n := v.(type) {
		case float64:
			return int64(n), nil
		case string:
			if n == "" {
				return nil, nil
			}
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %q is not an integer", col.Name, n)
			}
			return i, nil
		}
	case schema.Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case string:
			if n == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %q is not a number", col.Name, n)
			}
			return f, nil
		}
	case schema.Text, schema.Char:
		switch s := v.(type) {
		case string:
			return s, nil
		case float64, bool:
			return fmt.Sprint(s), nil
		}
	}
	return nil, fmt.Errorf("column %s: value %v (%T) does not fit type %s", col.Name, v, v, col.Type)
}
