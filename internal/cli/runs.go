package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit int
}

// RunDetail is one run with its failed pipelines.
type RunDetail struct {
	store.Run
	FailedPipelines []extract.Failure `json:"failed_pipelines"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show the run history",
		Long: `List recorded runs, newest first, or show one run with its failed
pipelines. "latest" selects the most recent run.

Example:
  pipemap runs
  pipemap runs --limit 5 --format json
  pipemap runs latest`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runRuns(opts, id, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to list")

	return cmd
}

func runRuns(opts *RunsOptions, id string, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	// Opening would create an empty database.
	if !pathExists(cfg.Database) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", cfg.Database), nil)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if id == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s  %-6s  %-9s  %4d pipelines  %3d failed  %s\n",
				r.ID, r.Environment, r.Status, r.Pipelines, r.Failures, r.StartedAt)
		}
		return nil
	}

	var run store.Run
	if id == "latest" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, id)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	failures, err := st.ReadFailures(ctx, run.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read failures", err)
	}
	detail := RunDetail{Run: run, FailedPipelines: failures}

	if opts.Format == "json" {
		return formatter.Success(detail)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (#%d)\n", run.ID, run.Seq)
	fmt.Fprintf(w, "  environment: %s\n", run.Environment)
	fmt.Fprintf(w, "  status:      %s\n", run.Status)
	fmt.Fprintf(w, "  started:     %s\n", run.StartedAt)
	fmt.Fprintf(w, "  pipelines:   %d (%d failed)\n", run.Pipelines, run.Failures)
	if run.DiagramPath != "" {
		fmt.Fprintf(w, "  diagram:     %s\n", run.DiagramPath)
	}
	for _, f := range failures {
		fmt.Fprintf(w, "  ✗ %s [%s] %s\n", f.File, f.Code, f.Error)
	}
	return nil
}
