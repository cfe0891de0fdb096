package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/compiler"
	"github.com/roach88/tokenflow/internal/ir"
)

// ProcessReport holds the findings for one process definition.
type ProcessReport struct {
	ID       string                     `json:"id"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
	Loops    []compiler.LoopWarning     `json:"loops,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Files     int             `json:"files"`
	Processes []ProcessReport `json:"processes"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate process definitions without deploying them",
		Long: `Validate CUE process definitions without deploying them.

Compiles every process, runs the deployment checks and reports loops that
pass through synchronizing joins. Paths may be CUE files or directories.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	loaded, err := LoadProcesses(paths)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s), %d process(es)", loaded.FileCount, len(loaded.Graphs))

	result := validateGraphs(loaded)
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputValidationText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", countErrors(result)))
	}
	return nil
}

// validateGraphs runs the deployment checks and the loop analysis on every
// loaded graph.
func validateGraphs(loaded *LoadResult) ValidationResult {
	result := ValidationResult{Valid: true, Files: loaded.FileCount}
	for _, g := range loaded.Graphs {
		findings := compiler.ValidateGraph(g)
		report := ProcessReport{
			ID:       g.ID,
			Errors:   findings.Errors(),
			Warnings: findings.Warnings(),
			Loops:    compiler.AnalyzeLoops(g),
		}
		if len(report.Errors) > 0 {
			result.Valid = false
		}
		result.Processes = append(result.Processes, report)
	}
	return result
}

func countErrors(result ValidationResult) int {
	n := 0
	for _, p := range result.Processes {
		n += len(p.Errors)
	}
	return n
}

func outputValidationText(f *OutputFormatter, result ValidationResult) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	for _, p := range result.Processes {
		if len(p.Errors) == 0 {
			color.New(color.FgGreen).Fprintf(f.Writer, "✓ %s\n", p.ID)
		} else {
			red.Fprintf(f.Writer, "✗ %s\n", p.ID)
		}
		for _, e := range p.Errors {
			red.Fprintf(f.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
		}
		for _, w := range p.Warnings {
			yellow.Fprintf(f.Writer, "  %s %s: %s\n", w.Code, w.Field, w.Message)
		}
		for _, l := range p.Loops {
			if l.Level == "warning" || f.Verbose {
				yellow.Fprintf(f.Writer, "  loop: %s\n", l.Message)
			}
		}
	}
	if result.Valid {
		fmt.Fprintln(f.Writer, "All processes valid")
	}
}

// outputLoadError reports a load failure as a command error.
func outputLoadError(f *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Error()
	}
	_ = f.Error(code, message, nil)
	return WrapExitError(ExitCommandError, "failed to load processes", err)
}

// loadValidGraphs loads paths and fails when any graph has blocking
// findings.
func loadValidGraphs(f *OutputFormatter, paths []string) ([]*ir.ProcessGraph, error) {
	loaded, err := LoadProcesses(paths)
	if err != nil {
		return nil, outputLoadError(f, err)
	}
	result := validateGraphs(loaded)
	if !result.Valid {
		if f.Format == "json" {
			_ = f.Respond(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrCodeGeneric, Message: "validation failed"},
			})
		} else {
			outputValidationText(f, result)
		}
		return nil, NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", countErrors(result)))
	}
	return loaded.Graphs, nil
}
