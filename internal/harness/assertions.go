package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pipemap/internal/graph"
)

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s assertion failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEdge:
		return assertEdge(result.graph, a)
	case AssertVertex:
		return assertVertex(result.graph, a)
	case AssertFailed:
		return assertFailed(result, a)
	case AssertEventCount:
		return assertEventCount(result, a)
	case AssertBoundaryOrder:
		return assertBoundaryOrder(result.graph, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertEdge(g *graph.Graph, a Assertion) error {
	var edge *graph.Edge
	for _, e := range g.EdgesFrom(a.From) {
		if e.To == a.To {
			edge = &e
			break
		}
	}

	desc := a.From + " -> " + a.To
	if a.Absent {
		if edge != nil {
			return &AssertionError{Type: a.Type, Expected: "no edge " + desc, Actual: "edge present"}
		}
		return nil
	}
	if edge == nil {
		return &AssertionError{Type: a.Type, Expected: "edge " + desc, Actual: "no such edge"}
	}

	if a.Connector != "" && edge.Connector != a.Connector {
		return &AssertionError{Type: a.Type, Expected: "connector " + a.Connector, Actual: edge.Connector}
	}
	if a.Extra != "" && edge.Extra != a.Extra {
		return &AssertionError{Type: a.Type, Expected: "extra " + a.Extra, Actual: edge.Extra}
	}
	if a.Bidirectional != nil && g.IsBidirectional(*edge) != *a.Bidirectional {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("bidirectional=%t for %s", *a.Bidirectional, desc),
			Actual:   fmt.Sprintf("bidirectional=%t", !*a.Bidirectional),
		}
	}
	return nil
}

func assertVertex(g *graph.Graph, a Assertion) error {
	v, ok := g.Vertex(a.Key)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "vertex " + a.Key, Actual: "no such vertex"}
	}
	if a.Kind != "" && string(v.Kind()) != a.Kind {
		return &AssertionError{Type: a.Type, Expected: "kind " + a.Kind, Actual: string(v.Kind())}
	}
	if a.Project != "" && v.ProjectID != a.Project {
		return &AssertionError{Type: a.Type, Expected: "project " + a.Project, Actual: v.ProjectID}
	}
	return nil
}

func assertFailed(result *Result, a Assertion) error {
	for _, f := range result.Failures {
		if f.File != a.Pipeline {
			continue
		}
		if a.Code != "" && string(f.Code) != a.Code {
			return &AssertionError{Type: a.Type, Expected: "code " + a.Code, Actual: string(f.Code)}
		}
		return nil
	}
	return &AssertionError{Type: a.Type, Expected: "failure for " + a.Pipeline, Actual: "pipeline extracted"}
}

func assertEventCount(result *Result, a Assertion) error {
	for _, rec := range result.Records {
		if rec.File != a.Pipeline {
			continue
		}
		if len(rec.Connections) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d events from %s", a.Count, a.Pipeline),
				Actual:   fmt.Sprintf("%d", len(rec.Connections)),
			}
		}
		return nil
	}
	return &AssertionError{Type: a.Type, Expected: "record for " + a.Pipeline, Actual: "no record"}
}

func assertBoundaryOrder(g *graph.Graph, a Assertion) error {
	var ids []string
	for _, b := range g.Boundaries() {
		ids = append(ids, b.ID)
	}
	if !slices.Equal(ids, a.Boundaries) {
		return &AssertionError{
			Type:     a.Type,
			Expected: "[" + strings.Join(a.Boundaries, ", ") + "]",
			Actual:   "[" + strings.Join(ids, ", ") + "]",
		}
	}
	return nil
}
