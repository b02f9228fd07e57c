package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/diagram"
	"github.com/roach88/pipemap/internal/extract"
)

// DiagramOptions holds flags for the diagram command.
type DiagramOptions struct {
	*RootOptions
	Input      string
	Output     string
	IncludeURL string
	Publish    bool
}

// DiagramSummary is the diagram command's result.
type DiagramSummary struct {
	Input      string `json:"input"`
	Output     string `json:"output"`
	Vertices   int    `json:"vertices"`
	Edges      int    `json:"edges"`
	Boundaries int    `json:"boundaries"`
	Published  string `json:"published,omitempty"`
}

// NewDiagramCommand creates the diagram command.
func NewDiagramCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagramOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Render the C4-PlantUML diagram from an extraction file",
		Long: `Build the connection graph from the extraction file and write it as a
C4-PlantUML container diagram. The previous diagram is only replaced once
the new one has been written completely.

Example:
  pipemap diagram
  pipemap diagram --input connections.json --output c4_src/container.puml
  pipemap diagram --publish`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagram(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "extraction file (default from config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "diagram file (default from config)")
	cmd.Flags().StringVar(&opts.IncludeURL, "include-url", "", "C4-PlantUML library to include")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "upload the diagram to the configured bucket")

	return cmd
}

func runDiagram(opts *DiagramOptions, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	input := opts.Input
	if input == "" {
		input = cfg.ExtractionFile
	}
	output := opts.Output
	if output == "" {
		output = cfg.Output
	}
	if opts.IncludeURL != "" {
		cfg.IncludeURL = opts.IncludeURL
	}

	if !pathExists(input) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("extraction file not found: %s", input), nil)
	}
	records, err := extract.ReadRecords(input)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to read extraction", err)
	}

	table, err := loadRules(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load connector rules", err)
	}
	g, err := buildGraph(table, records)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to build graph", err)
	}

	dopts := diagramOptions(cfg)
	if err := diagram.WriteFile(output, g, dopts); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write diagram", err)
	}

	summary := DiagramSummary{
		Input:      input,
		Output:     output,
		Vertices:   g.NumVertices(),
		Edges:      g.NumEdges(),
		Boundaries: len(g.Boundaries()),
	}

	if opts.Publish || cfg.Publish.Enabled {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		location, err := publishDiagram(ctx, cfg.Publish, cfg.Publish.Key, diagram.Render(g, dopts))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodePublish, "failed to publish diagram", err)
		}
		summary.Published = location
	}

	if opts.Format == "json" {
		return formatter.Success(summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Wrote %s (%d systems, %d relations, %d projects)\n",
		summary.Output, summary.Vertices, summary.Edges, summary.Boundaries)
	if summary.Published != "" {
		fmt.Fprintf(w, "Published to %s\n", summary.Published)
	}
	return nil
}
