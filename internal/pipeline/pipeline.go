// Package pipeline sequences a complete warehouse run: optional
// clean-slate schema recreation, the staging bulk copies, and the
// transform/load of the star schema. Each stage commits as one unit
// immediately after it completes, so a transform failure rolls back every
// dimensional write from that run while successfully staged data stays
// put. Any stage error aborts the run; there is no retry logic here.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"sparkify/internal/config"
	"sparkify/internal/ingest"
	"sparkify/internal/load"
	"sparkify/internal/metrics"
	"sparkify/internal/schema"
	"sparkify/internal/warehouse"
)

// newRepository is a test seam; production code uses warehouse.New.
var newRepository = warehouse.New

// Run executes one batch run against the configured warehouse.
func Run(ctx context.Context, cfg config.Pipeline) error {
	repo, err := newRepository(ctx, warehouse.Config{Kind: cfg.Warehouse.Kind, DSN: cfg.Warehouse.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Printf("run %s: connected (%s)", cfg.Job, repo.Dialect().Name())

	if cfg.Run.RecreateSchema {
		if err := recreateSchema(ctx, repo); err != nil {
			return err
		}
	}

	if err := runIngest(ctx, repo, cfg.Ingest); err != nil {
		return err
	}
	return runLoad(ctx, repo)
}

// recreateSchema drops every relation in drop order, then creates them all
// in creation order, giving a clean-slate run.
func recreateSchema(ctx context.Context, repo warehouse.Repository) error {
	d := repo.Dialect()
	for _, t := range schema.DropOrder() {
		if _, err := repo.Exec(ctx, d.DropTableSQL(t.Name)); err != nil {
			return fmt.Errorf("drop %s: %w", t.Name, err)
		}
	}
	for _, t := range schema.CreateOrder() {
		if _, err := repo.Exec(ctx, d.CreateTableSQL(t)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
	}
	log.Printf("schema: recreated %d relations", len(schema.CreateOrder()))
	return nil
}

func runIngest(ctx context.Context, repo warehouse.Repository, cfg config.Ingest) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStage("ingest", err, time.Since(start)) }()

	tx, err := repo.Begin(ctx)
	if err != nil {
		return err
	}

	st, err := ingest.Run(ctx, tx, cfg)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ingest: %w", err)
	}

	metrics.RecordRows(schema.StagingEvents.Name, st.Events)
	metrics.RecordRows(schema.StagingSongs.Name, st.Songs)
	return nil
}

func runLoad(ctx context.Context, repo warehouse.Repository) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStage("load", err, time.Since(start)) }()

	tx, err := repo.Begin(ctx)
	if err != nil {
		return err
	}

	st, err := load.Run(ctx, tx, repo.Dialect())
	if err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}

	metrics.RecordRows(schema.Users.Name, st.Users)
	metrics.RecordRows(schema.Artists.Name, st.Artists)
	metrics.RecordRows(schema.Songs.Name, st.Songs)
	metrics.RecordRows(schema.Time.Name, st.Time)
	metrics.RecordRows(schema.Songplays.Name, st.Songplays)
	return nil
}
