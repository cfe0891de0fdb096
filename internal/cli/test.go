package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter   string // scenario filter (glob pattern on the file name)
	Parallel int
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <path>...",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios. Each scenario deploys its processes on a
fresh in-memory engine, executes its steps and checks its assertions. The
record log given by --db is not touched.

Paths may be scenario files or directories.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tokenflow test ./scenarios
  tokenflow test ./scenarios --filter "join-*"
  tokenflow test ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", runtime.GOMAXPROCS(0), "scenarios to run at once")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := harness.DiscoverScenarios(paths...)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %v", ErrCodeNotFound, err))
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return err
	}

	summary, err := harness.RunAll(ctx, files, opts.Parallel)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	f := newFormatter(cmd, opts.RootOptions)
	if opts.Format == "json" {
		if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		outputTestText(f, files, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total))
	}
	return nil
}

// filterScenarios keeps the files whose base name matches pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, f := range files {
		ok, err := filepath.Match(pattern, filepath.Base(f))
		if err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: invalid filter %q: %v", ErrCodeBadArgument, pattern, err))
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func outputTestText(f *OutputFormatter, files []string, summary *harness.Summary) {
	if summary.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return
	}

	failed := make(map[string]harness.ScenarioFailure, len(summary.Failures))
	for _, fail := range summary.Failures {
		failed[fail.Path] = fail
	}
	for _, file := range files {
		fail, ok := failed[file]
		if !ok {
			color.New(color.FgGreen).Fprintf(f.Writer, "✓ %s\n", file)
			continue
		}
		color.New(color.FgRed).Fprintf(f.Writer, "✗ %s\n", file)
		for _, msg := range fail.Errors {
			fmt.Fprintf(f.Writer, "    %s\n", msg)
		}
	}
	fmt.Fprintf(f.Writer, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}
