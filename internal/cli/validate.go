package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/extract"
	"github.com/roach88/pipemap/internal/flowspec"
	"github.com/roach88/pipemap/internal/traverse"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// FileValidation is the outcome for one flowspec file.
type FileValidation struct {
	File   string             `json:"file"`
	Valid  bool               `json:"valid"`
	Events int                `json:"events"`
	Code   traverse.ErrorCode `json:"code,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [flowspec-file...]",
		Short: "Check that flowspecs decode and traverse",
		Long: `Decode and traverse flowspec documents without writing anything.

Without arguments every file of the selected environment is checked.
Reports, per file, the number of connections found or the reason the
document cannot be traversed (MALFORMED_DOCUMENT, TRAVERSAL_OVERFLOW).

Exit codes:
  0 - All documents valid
  1 - One or more documents invalid
  2 - Command error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	configureLogging(opts, cmd.ErrOrStderr())
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	table, err := loadRules(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load connector rules", err)
	}

	if len(files) == 0 {
		files, err = listFlowspecs(cfg.SpecDir())
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to list flowspecs", err)
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	engine := traverse.New(table, traverse.WithMaxVisits(cfg.MaxVisits))
	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		fv := validateFile(ctx, engine, file)
		if isCanceled(ctx.Err()) {
			return formatter.Fail(ExitCommandError, ErrCodeCanceled, "validation interrupted", ctx.Err())
		}
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, fv := range result.Files {
			if fv.Valid {
				formatter.VerboseLog("✓ %s (%d connections)", fv.File, fv.Events)
				continue
			}
			fmt.Fprintf(w, "✗ %s [%s] %s\n", fv.File, fv.Code, fv.Error)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %d flowspec(s) valid\n", len(result.Files))
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "flowspec validation failed")
	}
	return nil
}

func validateFile(ctx context.Context, engine *traverse.Engine, path string) FileValidation {
	name := extract.PipelineName(filepath.Base(path))
	fv := FileValidation{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		err = traverse.NewMalformedError(name, fmt.Sprintf("read flowspec: %v", err))
	}
	var events []traverse.Event
	if err == nil {
		var doc flowspec.Document
		if doc, err = flowspec.Decode(data); err != nil {
			err = traverse.NewMalformedError(name, err.Error())
		} else {
			events, err = engine.Traverse(ctx, doc, name, flowspec.StartBranch)
		}
	}

	if err != nil {
		f := extract.NewFailure(path, err)
		fv.Code = f.Code
		fv.Error = f.Error
		return fv
	}
	fv.Valid = true
	fv.Events = len(events)
	return fv
}

func listFlowspecs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
