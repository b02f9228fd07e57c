package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/diagram"
	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/globals"
	"github.com/roach88/pipemap/internal/publish"
	"github.com/roach88/pipemap/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Strict      bool
	SkipGlobals bool
	Publish     bool

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator
}

// RunSummary is the run command's result.
type RunSummary struct {
	RunID       string            `json:"run_id"`
	Environment string            `json:"environment"`
	Pipelines   int               `json:"pipelines"`
	Connections int               `json:"connections"`
	Failures    []extract.Failure `json:"failures"`
	Vertices    int               `json:"vertices"`
	Edges       int               `json:"edges"`
	Diagram     string            `json:"diagram"`
	Published   string            `json:"published,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replace globals, extract and render in one recorded run",
		Long: `Run the whole pipeline for the selected environment:

  1. substitute globals (skipped when no globals file exists)
  2. extract connections from every flowspec
  3. write the extraction file and the diagram
  4. upload the diagram when publishing is enabled

Every run is recorded in the SQLite run history (see "pipemap runs").

Example:
  pipemap run --env prod
  pipemap run --data-dir ./export --strict --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any pipeline fails extraction")
	cmd.Flags().BoolVar(&opts.SkipGlobals, "skip-globals", false, "use the already substituted flowspecs")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "upload the diagram to the configured bucket")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if !opts.SkipGlobals && pathExists(cfg.GlobalsFile) {
		dict, err := globals.LoadFile(cfg.GlobalsFile)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load globals", err)
		}
		if _, err := dict.ApplyDir(cfg.FlowspecsDir, cfg.ReplacedDir, []string{cfg.Environment}); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to replace globals", err)
		}
	} else {
		slog.Debug("globals substitution skipped", "globals_file", cfg.GlobalsFile)
	}

	table, err := loadRules(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load connector rules", err)
	}
	extractor, err := newExtractor(cfg, table)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load projects", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to create database directory", err)
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	gen := opts.RunIDGenerator
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}
	run, err := st.BeginRun(ctx, gen.Generate(), cfg.Environment)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to record run", err)
	}
	slog.Info("run started", "run_id", run.ID, "environment", cfg.Environment)

	// Any early return below marks the stored run as failed.
	status := store.StatusFailed
	defer func() {
		path := ""
		if status == store.StatusCompleted {
			path = cfg.Output
		}
		if finishErr := st.FinishRun(context.WithoutCancel(ctx), run.ID, status, path); finishErr != nil {
			slog.Error("error finishing run", "run_id", run.ID, "error", finishErr)
		}
	}()

	result, err := extractor.Run(ctx)
	if err != nil {
		if isCanceled(err) {
			return formatter.Fail(ExitCommandError, ErrCodeCanceled, "run interrupted", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to list flowspecs", err)
	}
	if err := st.WriteResult(ctx, run.ID, result); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to store extraction", err)
	}
	if err := extract.WriteRecords(cfg.ExtractionFile, result.Records); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write extraction", err)
	}

	g, err := buildGraph(table, result.Records)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to build graph", err)
	}
	dopts := diagramOptions(cfg)
	if err := diagram.WriteFile(cfg.Output, g, dopts); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write diagram", err)
	}

	summary := RunSummary{
		RunID:       run.ID,
		Environment: cfg.Environment,
		Pipelines:   len(result.Records),
		Failures:    result.Failures,
		Vertices:    g.NumVertices(),
		Edges:       g.NumEdges(),
		Diagram:     cfg.Output,
	}
	if summary.Failures == nil {
		summary.Failures = []extract.Failure{}
	}
	for _, rec := range result.Records {
		summary.Connections += len(rec.Connections)
	}

	if opts.Publish || cfg.Publish.Enabled {
		key := publish.RunKey(run.ID, cfg.Publish.Key)
		location, err := publishDiagram(ctx, cfg.Publish, key, diagram.Render(g, dopts))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodePublish, "failed to publish diagram", err)
		}
		summary.Published = location
	}

	status = store.StatusCompleted
	slog.Info("run completed", "run_id", run.ID, "pipelines", summary.Pipelines, "failures", len(summary.Failures))

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		printRunSummary(cmd, summary)
	}

	if opts.Strict && len(result.Failures) > 0 {
		return NewExitError(ExitFailure, failuresMessage(len(result.Failures)))
	}
	return nil
}

func printRunSummary(cmd *cobra.Command, s RunSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s [%s]\n", s.RunID, s.Environment)
	fmt.Fprintf(w, "  pipelines:   %d (%d failed)\n", s.Pipelines, len(s.Failures))
	fmt.Fprintf(w, "  connections: %d\n", s.Connections)
	fmt.Fprintf(w, "  diagram:     %s (%d systems, %d relations)\n", s.Diagram, s.Vertices, s.Edges)
	if s.Published != "" {
		fmt.Fprintf(w, "  published:   %s\n", s.Published)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  ✗ %s [%s] %s\n", f.File, f.Code, f.Error)
	}
}
