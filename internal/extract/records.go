package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/pipemap/internal/graph"
)

// WriteRecords writes the pipelinesConnections.json artifact.
func WriteRecords(path string, records []graph.Record) error {
	if records == nil {
		records = []graph.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// ReadRecords reads a pipelinesConnections.json artifact.
func ReadRecords(path string) ([]graph.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []graph.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}
