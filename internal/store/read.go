package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/graph"
	"github.com/roach88/pipemap/internal/traverse"
)

const runColumns = `
	r.id, r.seq, r.environment, r.status, r.diagram_path, r.started_at,
	(SELECT COUNT(*) FROM pipelines p WHERE p.run_id = r.id),
	(SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)
`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.Seq, &run.Environment, &run.Status, &run.DiagramPath, &run.StartedAt,
		&run.Pipelines, &run.Failures,
	)
	return run, err
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the run with the highest seq.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.seq DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
//
// Returns an empty slice (not nil) when no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRecords returns the pipeline records of a run in write order.
//
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadRecords(ctx context.Context, runID string) ([]graph.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, file, pipeline_id, project_id, project_name, trigger
		FROM pipelines
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}

	var seqs []int64
	records := []graph.Record{}
	for rows.Next() {
		var seq int64
		var rec graph.Record
		if err := rows.Scan(&seq, &rec.File, &rec.PipelineID, &rec.ProjectID, &rec.ProjectName, &rec.Trigger); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		rec.Connections = []traverse.Event{}
		seqs = append(seqs, seq)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}

	index := make(map[int64]int, len(seqs))
	for i, seq := range seqs {
		index[seq] = i
	}

	crows, err := s.db.QueryContext(ctx, `
		SELECT pipeline_seq, from_pipeline, breadcrumb, target, raw_target, extra, connector_id, connector, step_name
		FROM connections
		WHERE run_id = ?
		ORDER BY pipeline_seq ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var pseq int64
		var ev traverse.Event
		if err := crows.Scan(&pseq, &ev.From, &ev.Breadcrumb, &ev.Target, &ev.RawTarget, &ev.Extra,
			&ev.ConnectorID, &ev.Connector, &ev.StepName); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		i := index[pseq]
		records[i].Connections = append(records[i].Connections, ev)
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return records, nil
}

// ReadFailures returns the failed pipelines of a run in write order.
//
// Returns an empty slice (not nil) if the run has no failures.
func (s *Store) ReadFailures(ctx context.Context, runID string) ([]extract.Failure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, code, message
		FROM failures
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	failures := []extract.Failure{}
	for rows.Next() {
		var f extract.Failure
		var code string
		if err := rows.Scan(&f.File, &code, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Code = traverse.ErrorCode(code)
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}
