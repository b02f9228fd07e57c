package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/extract"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	Output string
	Strict bool
}

// ExtractSummary is the extract command's result.
type ExtractSummary struct {
	Environment string            `json:"environment"`
	Pipelines   int               `json:"pipelines"`
	Connections int               `json:"connections"`
	Failures    []extract.Failure `json:"failures"`
	Output      string            `json:"output"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract pipeline connections from flowspecs",
		Long: `Walk every substituted flowspec of the selected environment, resolve each
pipeline's project, and write the connection records to the extraction file.

Pipelines that cannot be traversed are reported and skipped. With --strict
any such failure makes the command exit with code 1.

Example:
  pipemap extract --env prod
  pipemap extract --output ./connections.json --strict`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "extraction file (default from config)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any pipeline fails extraction")

	return cmd
}

func runExtract(opts *ExtractOptions, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	output := opts.Output
	if output == "" {
		output = cfg.ExtractionFile
	}

	table, err := loadRules(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load connector rules", err)
	}
	extractor, err := newExtractor(cfg, table)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load projects", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	slog.Info("extracting", "environment", cfg.Environment, "dir", cfg.SpecDir())
	result, err := extractor.Run(ctx)
	if err != nil {
		if isCanceled(err) {
			return formatter.Fail(ExitCommandError, ErrCodeCanceled, "extraction interrupted", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to list flowspecs", err)
	}

	if err := extract.WriteRecords(output, result.Records); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write extraction", err)
	}

	summary := ExtractSummary{
		Environment: cfg.Environment,
		Pipelines:   len(result.Records),
		Failures:    result.Failures,
		Output:      output,
	}
	if summary.Failures == nil {
		summary.Failures = []extract.Failure{}
	}
	for _, rec := range result.Records {
		summary.Connections += len(rec.Connections)
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		printExtractSummary(cmd, summary)
	}

	if opts.Strict && len(result.Failures) > 0 {
		return NewExitError(ExitFailure, failuresMessage(len(result.Failures)))
	}
	return nil
}

func printExtractSummary(cmd *cobra.Command, s ExtractSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Extracted %d pipeline(s), %d connection(s) [%s] -> %s\n",
		s.Pipelines, s.Connections, s.Environment, s.Output)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  ✗ %s [%s] %s\n", f.File, f.Code, f.Error)
	}
}
