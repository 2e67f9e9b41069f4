package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "warehouse.kind"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a Pipeline. It does not mutate the
// pipeline; callers decide whether warnings are fatal.
func Validate(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; logs and metrics will carry a blank run name",
		})
	}

	issues = append(issues, validateWarehouse(p.Warehouse)...)
	issues = append(issues, validateIngest(p.Warehouse.Kind, p.Ingest)...)

	return issues
}

// HasError reports whether any issue carries error severity.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateWarehouse(w Warehouse) []Issue {
	var issues []Issue

	kind := strings.TrimSpace(w.Kind)
	if kind == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.kind",
			Message:  "warehouse.kind must not be empty",
		})
	} else if _, ok := knownKinds[kind]; !ok {
		// Unknown kinds are warnings for forward compatibility.
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.kind",
			Message:  fmt.Sprintf("unknown warehouse kind %q; ensure a matching backend is registered", kind),
		})
	}

	if strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.dsn",
			Message:  "warehouse.dsn must not be empty",
		})
	}

	return issues
}

var knownKinds = map[string]struct{}{
	"redshift": {},
	"postgres": {},
	"sqlite":   {},
}

func validateIngest(kind string, in Ingest) []Issue {
	var issues []Issue

	if strings.TrimSpace(in.Events.Location) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.events.location",
			Message:  "ingest.events.location must not be empty",
		})
	}
	if strings.TrimSpace(in.Songs.Location) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.songs.location",
			Message:  "ingest.songs.location must not be empty",
		})
	}

	// The S3-backed COPY path needs a credential and usually a region; the
	// local-file path ignores both.
	if kind == "redshift" {
		if strings.TrimSpace(in.Credential) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "ingest.credential",
				Message:  "ingest.credential (IAM role) is required for the redshift warehouse kind",
			})
		}
		if strings.TrimSpace(in.Region) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "ingest.region",
				Message:  "ingest.region is empty; COPY will use the cluster's default region",
			})
		}
	}

	return issues
}
