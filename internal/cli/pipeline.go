package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/config"
	"github.com/roach88/pipemap/internal/diagram"
	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/graph"
	"github.com/roach88/pipemap/internal/publish"
	"github.com/roach88/pipemap/internal/rules"
	"github.com/roach88/pipemap/internal/traverse"
)

// loadRules returns the default connector table merged with the
// configured rules directory, if any.
func loadRules(cfg *config.Config) (*rules.Table, error) {
	table := rules.Default()
	if cfg.RulesDir == "" {
		return table, nil
	}
	custom, err := rules.LoadDir(cfg.RulesDir)
	if err != nil {
		return nil, err
	}
	slog.Debug("custom connector rules loaded", "dir", cfg.RulesDir, "rules", custom.Len())
	return table.Merge(custom), nil
}

// newExtractor wires the traversal engine and the project catalog for the
// configured environment.
func newExtractor(cfg *config.Config, table *rules.Table) (*extract.Extractor, error) {
	catalog, err := extract.LoadCatalog(cfg.ProjectsFile)
	if err != nil {
		return nil, err
	}
	engine := traverse.New(table, traverse.WithMaxVisits(cfg.MaxVisits))
	return extract.New(engine, catalog, cfg.SpecDir(), cfg.MetadataDir), nil
}

// buildGraph folds records into a finalized graph.
func buildGraph(table *rules.Table, records []graph.Record) (*graph.Graph, error) {
	builder := graph.NewBuilder(table)
	if err := builder.Build(records); err != nil {
		return nil, err
	}
	return builder.Finalize(), nil
}

func diagramOptions(cfg *config.Config) diagram.Options {
	return diagram.Options{IncludeURL: cfg.IncludeURL}
}

// publishDiagram uploads content when publishing is configured.
// Returns the object location.
func publishDiagram(ctx context.Context, cfg config.Publish, key string, content []byte) (string, error) {
	p, err := publish.NewS3Publisher(cfg)
	if err != nil {
		return "", err
	}
	location, err := p.Publish(ctx, key, content)
	if err != nil {
		return "", err
	}
	slog.Info("diagram published", "location", location)
	return location, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func failuresMessage(n int) string {
	return fmt.Sprintf("%d pipeline(s) failed extraction", n)
}
