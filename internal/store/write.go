package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/graph"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored pipemap run.
type Run struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	Environment string `json:"environment"`
	Status      string `json:"status"`
	DiagramPath string `json:"diagram_path,omitempty"`
	StartedAt   string `json:"started_at"`
	Pipelines   int    `json:"pipelines"`
	Failures    int    `json:"failures"`
}

// BeginRun creates a run with the next seq. started_at is informational.
func (s *Store) BeginRun(ctx context.Context, id, environment string) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("begin run: next seq: %w", err)
	}

	run := Run{
		ID:          id,
		Seq:         seq,
		Environment: environment,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, environment, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Seq, run.Environment, run.Status, run.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("begin run: commit: %w", err)
	}
	return run, nil
}

// FinishRun sets the final status and diagram path of a run.
func (s *Store) FinishRun(ctx context.Context, id, status, diagramPath string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, diagram_path = ? WHERE id = ?
	`, status, diagramPath, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WriteRecord appends a pipeline record and its connections to a run.
// Records are read back in the order they were written.
func (s *Store) WriteRecord(ctx context.Context, runID string, rec graph.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write record: begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "pipelines", runID)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipelines (run_id, seq, file, pipeline_id, project_id, project_name, trigger)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, seq, rec.File, rec.PipelineID, rec.ProjectID, rec.ProjectName, rec.Trigger)
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.File, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO connections
		(run_id, pipeline_seq, seq, from_pipeline, breadcrumb, target, raw_target, extra, connector_id, connector, step_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write record: prepare: %w", err)
	}
	defer stmt.Close()

	for i, ev := range rec.Connections {
		_, err := stmt.ExecContext(ctx,
			runID, seq, i+1,
			ev.From, ev.Breadcrumb, ev.Target, ev.RawTarget, ev.Extra,
			ev.ConnectorID, ev.Connector, ev.StepName,
		)
		if err != nil {
			return fmt.Errorf("write record %s: connection %d: %w", rec.File, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write record: commit: %w", err)
	}
	return nil
}

// WriteFailure appends a failed pipeline to a run.
func (s *Store) WriteFailure(ctx context.Context, runID string, f extract.Failure) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write failure: begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "failures", runID)
	if err != nil {
		return fmt.Errorf("write failure: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO failures (run_id, seq, file, code, message)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, f.File, string(f.Code), f.Error)
	if err != nil {
		return fmt.Errorf("write failure %s: %w", f.File, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write failure: commit: %w", err)
	}
	return nil
}

// WriteResult stores every record and failure of an extraction result.
func (s *Store) WriteResult(ctx context.Context, runID string, res *extract.Result) error {
	for _, rec := range res.Records {
		if err := s.WriteRecord(ctx, runID, rec); err != nil {
			return err
		}
	}
	for _, f := range res.Failures {
		if err := s.WriteFailure(ctx, runID, f); err != nil {
			return err
		}
	}
	return nil
}

// nextSeq returns the next per-run seq of table. table is always a
// package constant.
func nextSeq(ctx context.Context, tx *sql.Tx, table, runID string) (int64, error) {
	var seq int64
	query := fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE run_id = ?`, table)
	if err := tx.QueryRowContext(ctx, query, runID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}
