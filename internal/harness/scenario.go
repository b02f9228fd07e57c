package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipemap/internal/flowspec"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Environment is recorded on the stored run. Defaults to "test".
	Environment string `yaml:"environment,omitempty"`

	// MaxVisits overrides the traversal ceiling when positive.
	MaxVisits int `yaml:"max_visits,omitempty"`

	// Rules is a CUE rules directory merged over the default table.
	// Relative paths are resolved against the scenario file.
	Rules string `yaml:"rules,omitempty"`

	// RunID is an optional fixed run id.
	RunID string `yaml:"run_id,omitempty"`

	Projects   []flowspec.Project `yaml:"projects"`
	Pipelines  []PipelineSpec     `yaml:"pipelines"`
	Assertions []Assertion        `yaml:"assertions"`
}

// PipelineSpec is one inline pipeline.
type PipelineSpec struct {
	// Name is the pipeline file name; it becomes the origin vertex key.
	Name string `yaml:"name"`

	// ID is the stable pipeline id. Empty simulates missing metadata.
	ID string `yaml:"id"`

	Trigger string `yaml:"trigger,omitempty"`

	// Flowspec is the document, written as YAML.
	Flowspec map[string]any `yaml:"flowspec"`
}

// Document converts the inline flowspec to a flowspec.Document through
// its JSON form, so inline documents decode exactly like exported ones.
func (p PipelineSpec) Document() (flowspec.Document, error) {
	data, err := json.Marshal(p.Flowspec)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
	}
	return flowspec.Decode(data)
}

// Assertion validates the resulting graph or extraction.
type Assertion struct {
	// Type is one of edge, vertex, failed, event_count, boundary_order.
	Type string `yaml:"type"`

	// From and To are vertex keys (edge).
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Connector and Extra are optional edge payload checks.
	Connector string `yaml:"connector,omitempty"`
	Extra     string `yaml:"extra,omitempty"`

	// Bidirectional is an optional edge check.
	Bidirectional *bool `yaml:"bidirectional,omitempty"`

	// Absent inverts an edge assertion.
	Absent bool `yaml:"absent,omitempty"`

	// Key, Kind and Project check a vertex.
	Key     string `yaml:"key,omitempty"`
	Kind    string `yaml:"kind,omitempty"`
	Project string `yaml:"project,omitempty"`

	// Pipeline and Code check a failure; Pipeline and Count an event count.
	Pipeline string `yaml:"pipeline,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	// Boundaries is the expected project id order (boundary_order).
	Boundaries []string `yaml:"boundaries,omitempty"`
}

// Assertion type constants.
const (
	AssertEdge          = "edge"
	AssertVertex        = "vertex"
	AssertFailed        = "failed"
	AssertEventCount    = "event_count"
	AssertBoundaryOrder = "boundary_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Pipelines) == 0 {
		return fmt.Errorf("pipelines list is required and must be non-empty")
	}

	seen := map[string]bool{}
	for i, p := range s.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipeline %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("pipeline %d: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEdge:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("edge assertion requires from and to")
		}
	case AssertVertex:
		if a.Key == "" {
			return fmt.Errorf("vertex assertion requires key")
		}
	case AssertFailed:
		if a.Pipeline == "" {
			return fmt.Errorf("failed assertion requires pipeline")
		}
	case AssertEventCount:
		if a.Pipeline == "" {
			return fmt.Errorf("event_count assertion requires pipeline")
		}
	case AssertBoundaryOrder:
		if a.Boundaries == nil {
			return fmt.Errorf("boundary_order assertion requires boundaries")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
