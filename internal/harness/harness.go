package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pipemap/internal/diagram"
	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/flowspec"
	"github.com/roach88/pipemap/internal/graph"
	"github.com/roach88/pipemap/internal/rules"
	"github.com/roach88/pipemap/internal/store"
	"github.com/roach88/pipemap/internal/testutil"
	"github.com/roach88/pipemap/internal/traverse"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database. Errors are
// returned only for problems with the scenario itself (bad rules, store
// failures); pipeline failures and failed assertions are reported in the
// Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	table := rules.Default()
	if scenario.Rules != "" {
		custom, err := rules.LoadDir(scenario.Rules)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		table = table.Merge(custom)
	}

	var opts []traverse.Option
	if scenario.MaxVisits > 0 {
		opts = append(opts, traverse.WithMaxVisits(scenario.MaxVisits))
	}
	engine := traverse.New(table, opts...)
	catalog := flowspec.NewCatalog(scenario.Projects)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	env := scenario.Environment
	if env == "" {
		env = "test"
	}
	runID := testutil.NewFixedRunIDGenerator(scenario.RunID).Generate()
	if _, err := st.BeginRun(ctx, runID, env); err != nil {
		return nil, err
	}

	extracted := &extract.Result{}
	for _, p := range scenario.Pipelines {
		rec, err := extractPipeline(ctx, engine, catalog, p)
		if err != nil {
			slog.Debug("scenario pipeline failed", "scenario", scenario.Name, "pipeline", p.Name, "error", err)
			extracted.Failures = append(extracted.Failures, extract.NewFailure(p.Name, err))
			continue
		}
		extracted.Records = append(extracted.Records, rec)
	}

	if err := st.WriteResult(ctx, runID, extracted); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}

	result := NewResult()
	result.RunID = runID
	if result.Records, err = st.ReadRecords(ctx, runID); err != nil {
		return nil, err
	}
	if result.Failures, err = st.ReadFailures(ctx, runID); err != nil {
		return nil, err
	}

	builder := graph.NewBuilder(table)
	if err := builder.Build(result.Records); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	result.graph = builder.Finalize()
	result.Diagram = diagram.Render(result.graph, diagram.Options{})

	if err := st.FinishRun(ctx, runID, store.StatusCompleted, ""); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func extractPipeline(ctx context.Context, engine *traverse.Engine, catalog *flowspec.Catalog, p PipelineSpec) (graph.Record, error) {
	if p.ID == "" {
		return graph.Record{}, traverse.NewMalformedError(p.Name, flowspec.ErrMissingPipelineID.Error())
	}
	doc, err := p.Document()
	if err != nil {
		return graph.Record{}, traverse.NewMalformedError(p.Name, err.Error())
	}
	events, err := engine.Traverse(ctx, doc, p.Name, flowspec.StartBranch)
	if err != nil {
		return graph.Record{}, err
	}

	rec := graph.Record{
		File:        p.Name,
		PipelineID:  p.ID,
		Trigger:     p.Trigger,
		Connections: events,
	}
	extract.AssignProject(catalog, &rec)
	return rec, nil
}
