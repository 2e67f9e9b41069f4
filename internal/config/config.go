// Package config defines the JSON-serializable configuration model for a
// warehouse load run. It is intentionally small, explicit, and dependency-
// free: a run is described by one JSON file decoded with the standard
// library, and the decoded Pipeline is passed explicitly to every stage.
// No component reads ambient global state.
//
// Example:
//
//	{
//	  "job": "sparkify_dwh",
//	  "warehouse": { "kind": "redshift", "dsn": "postgres://..." },
//	  "ingest": {
//	    "credential": "arn:aws:iam::123456789012:role/dwhRole",
//	    "region": "us-west-2",
//	    "events": { "location": "s3://bucket/log_data", "mapping": "s3://bucket/log_json_path.json" },
//	    "songs":  { "location": "s3://bucket/song_data" }
//	  },
//	  "run": { "recreate_schema": true }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a run configuration file.
type Pipeline struct {
	// Job names the run for logging and metrics labeling.
	Job string `json:"job"`

	// Warehouse selects and configures the target store.
	Warehouse Warehouse `json:"warehouse"`

	// Ingest configures the two staging bulk copies.
	Ingest Ingest `json:"ingest"`

	// Run holds per-run switches.
	Run Run `json:"run"`
}

// Warehouse identifies the target store.
type Warehouse struct {
	// Kind selects the backend implementation, e.g. "redshift" or "sqlite".
	Kind string `json:"kind"`

	// DSN is the backend connection string: a pgx URL for "redshift", a
	// database/sql DSN (usually a file path) for "sqlite".
	DSN string `json:"dsn"`
}

// Ingest configures the bulk ingest stage.
type Ingest struct {
	// Credential identifies the caller to the storage system the bulk
	// loader reads from, e.g. an IAM role ARN for S3-backed COPY. Ignored
	// by backends that read the local filesystem.
	Credential string `json:"credential"`

	// Region is the object-storage region, emitted on COPY when set.
	Region string `json:"region"`

	// Events locates the user-activity log files.
	Events Source `json:"events"`

	// Songs locates the song-catalog files.
	Songs Source `json:"songs"`
}

// Source locates one set of input files.
type Source struct {
	// Location is a directory or object-storage prefix containing JSON
	// records.
	Location string `json:"location"`

	// Mapping optionally locates a jsonpaths file mapping JSON fields to
	// staging columns by position. Empty means automatic name matching.
	Mapping string `json:"mapping,omitempty"`
}

// Run holds per-run switches.
type Run struct {
	// RecreateSchema drops and recreates all relations before ingest,
	// giving a clean-slate run.
	RecreateSchema bool `json:"recreate_schema"`
}

// Error reports missing or malformed configuration.
type Error struct {
	Path string // dotted path into the config, e.g. "warehouse.dsn"
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("config: %s: %v", e.Path, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Load reads and decodes a Pipeline from a JSON file.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, &Error{Path: path, Err: err}
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, &Error{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return p, nil
}
