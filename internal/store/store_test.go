package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/graph"
	"github.com/roach88/pipemap/internal/traverse"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.BeginRun(context.Background(), "run-1", "prod")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	run, err := s2.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
}

func TestBeginRun_AssignsSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r1, err := s.BeginRun(ctx, "run-1", "prod")
	require.NoError(t, err)
	r2, err := s.BeginRun(ctx, "run-2", "test")
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, int64(2), r2.Seq)
	assert.Equal(t, StatusRunning, r2.Status)

	_, err = s.BeginRun(ctx, "run-1", "prod")
	assert.Error(t, err, "duplicate run id")
}

func TestRecords_RoundTripInWriteOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BeginRun(ctx, "run-1", "prod")
	require.NoError(t, err)

	zebra := createTestRecord("zebra", "https://z1", "https://z2")
	alpha := createTestRecord("alpha")
	require.NoError(t, s.WriteRecord(ctx, "run-1", zebra))
	require.NoError(t, s.WriteRecord(ctx, "run-1", alpha))

	records, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, zebra, records[0])
	assert.Equal(t, alpha, records[1])
}

func TestReadRecords_Empty(t *testing.T) {
	s := createTestStore(t)

	records, err := s.ReadRecords(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestWriteRecord_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteRecord(context.Background(), "missing", createTestRecord("a"))
	assert.Error(t, err, "foreign key must reject records of unknown runs")
}

func TestWriteResult_RecordsAndFailures(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BeginRun(ctx, "run-1", "prod")
	require.NoError(t, err)

	res := &extract.Result{
		Records: []graph.Record{createTestRecord("checkout", "https://api.pay.example/charge")},
		Failures: []extract.Failure{
			{File: "loop.json", Code: traverse.ErrCodeTraversalOverflow, Error: "visited more than 50 nodes"},
			{File: "bad.json", Code: traverse.ErrCodeMalformedDocument, Error: "branch missing"},
		},
	}
	require.NoError(t, s.WriteResult(ctx, "run-1", res))

	records, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Records, records)

	failures, err := s.ReadFailures(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Failures, failures)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Pipelines)
	assert.Equal(t, 2, run.Failures)
}

func TestReadFailures_Empty(t *testing.T) {
	s := createTestStore(t)

	failures, err := s.ReadFailures(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, failures)
	assert.Empty(t, failures)
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.BeginRun(ctx, "run-1", "prod")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, "run-1", StatusCompleted, "c4_src/container.puml"))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "c4_src/container.puml", run.DiagramPath)

	err = s.FinishRun(ctx, "missing", StatusFailed, "")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRuns_LatestAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	// Ids sort opposite to seq so ordering by id would be caught.
	for _, id := range []string{"run-c", "run-b", "run-a"} {
		_, err := s.BeginRun(ctx, id, "prod")
		require.NoError(t, err)
	}

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-a", latest.ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)

	_, err = s.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var gen RunIDGenerator = UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
