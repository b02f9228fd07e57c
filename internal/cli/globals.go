package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/pipemap/internal/globals"
)

// GlobalsOptions holds flags for the globals command.
type GlobalsOptions struct {
	*RootOptions
	Environments []string
}

// NewGlobalsCommand creates the globals command.
func NewGlobalsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GlobalsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "globals",
		Short: "Substitute global placeholders in exported flowspecs",
		Long: `Replace every {{global.NAME}} placeholder in the exported flowspecs with
the value of NAME for each environment, writing one copy per environment:

  <replaced_dir>/<env>/<name>-replaced-globals.json

Placeholders without a value are left intact and reported.

Example:
  pipemap globals
  pipemap globals --environments test,prod`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGlobals(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Environments, "environments", nil, "environments to write (default from config)")

	return cmd
}

func runGlobals(opts *GlobalsOptions, cmd *cobra.Command) error {
	configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	envs := opts.Environments
	if len(envs) == 0 {
		envs = cfg.Environments
	}
	if len(envs) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "no environments configured", nil)
	}

	dict, err := globals.LoadFile(cfg.GlobalsFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to load globals", err)
	}

	report, err := dict.ApplyDir(cfg.FlowspecsDir, cfg.ReplacedDir, envs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to replace globals", err)
	}

	if opts.Format == "json" {
		return formatter.Success(report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replaced globals in %d file(s) for %v (%d written)\n", report.Files, envs, report.Written)
	keys := make([]string, 0, len(report.Unresolved))
	for k := range report.Unresolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  unresolved in %s: %v\n", k, report.Unresolved[k])
	}
	return nil
}
