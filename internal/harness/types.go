package harness

import (
	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/graph"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// RunID is the id of the in-memory stored run.
	RunID string `json:"run_id"`

	// Records are the extracted pipelines, read back from the store.
	Records []graph.Record `json:"records"`

	// Failures are the pipelines that could not be extracted.
	Failures []extract.Failure `json:"failures"`

	// Diagram is the rendered C4-PlantUML text.
	Diagram []byte `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	graph *graph.Graph
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Records:  []graph.Record{},
		Failures: []extract.Failure{},
		Errors:   []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Graph returns the finalized graph of the scenario.
func (r *Result) Graph() *graph.Graph {
	return r.graph
}
