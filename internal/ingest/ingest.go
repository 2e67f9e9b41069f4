// Package ingest implements the bulk ingest stage: two independent bulk
// copies that populate the staging relations from raw JSON files. The
// stage is a pure pass-through over the backend's bulk loader — it never
// inspects row content, and it never commits; the orchestrator owns the
// transaction so both staging loads land as one unit.
package ingest

import (
	"context"
	"fmt"
	"log"

	"sparkify/internal/config"
	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

// Error reports a failed staging bulk copy: unreachable source, rejected
// credential, or a record the staging schema cannot hold.
type Error struct {
	Relation string
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("ingest %s: %v", e.Relation, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Stats reports rows landed per staging relation.
type Stats struct {
	Events int64
	Songs  int64
}

// Run loads staging_events and staging_songs from the configured sources.
// The two copies are independent; a failure in either aborts the stage.
func Run(ctx context.Context, tx warehouse.Tx, cfg config.Ingest) (Stats, error) {
	var st Stats

	n, err := tx.BulkLoad(ctx, schema.StagingEvents, warehouse.BulkSource{
		Location:   cfg.Events.Location,
		Mapping:    cfg.Events.Mapping,
		Credential: cfg.Credential,
		Region:     cfg.Region,
	})
	if err != nil {
		return st, &Error{Relation: schema.StagingEvents.Name, Err: err}
	}
	st.Events = n
	log.Printf("ingest: %s: %d rows from %s", schema.StagingEvents.Name, n, cfg.Events.Location)

	n, err = tx.BulkLoad(ctx, schema.StagingSongs, warehouse.BulkSource{
		Location:   cfg.Songs.Location,
		Credential: cfg.Credential,
		Region:     cfg.Region,
	})
	if err != nil {
		return st, &Error{Relation: schema.StagingSongs.Name, Err: err}
	}
	st.Songs = n
	log.Printf("ingest: %s: %d rows from %s", schema.StagingSongs.Name, n, cfg.Songs.Location)

	return st, nil
}
