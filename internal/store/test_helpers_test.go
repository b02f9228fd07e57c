package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/pipemap/internal/graph"
	"github.com/roach88/pipemap/internal/traverse"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with one connection per target.
func createTestRecord(file string, targets ...string) graph.Record {
	rec := graph.Record{
		File:        file,
		PipelineID:  file + "-id",
		ProjectID:   "P1",
		ProjectName: "Payments",
		Trigger:     "http",
		Connections: []traverse.Event{},
	}
	for i, target := range targets {
		rec.Connections = append(rec.Connections, traverse.Event{
			From:        file,
			Breadcrumb:  "$",
			Target:      target,
			RawTarget:   target,
			Extra:       "POST",
			ConnectorID: file + "-" + target,
			Connector:   "rest-connector-v2",
			StepName:    "step " + string(rune('A'+i)),
		})
	}
	return rec
}
