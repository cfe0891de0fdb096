package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/partition"
)

// NewCompleteJobCommand creates the complete-job command.
func NewCompleteJobCommand(rootOpts *RootOptions) *cobra.Command {
	var variables string

	cmd := &cobra.Command{
		Use:   "complete-job <job-key>",
		Short: "Complete a job",
		Long: `Complete a job and continue the token past its service task. Variables
are merged into the process instance.

Examples:
  tokenflow complete-job 2251799813685262 --vars '{"shipped": true}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("job key", args[0])
			if err != nil {
				return err
			}
			vars, err := parseVariables(variables)
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(key, ir.IntentComplete, ir.JobRecord{Variables: vars}), nil
			})
			return err
		},
	}

	cmd.Flags().StringVar(&variables, "vars", "", "variables as a JSON object")

	return cmd
}

// NewFailJobCommand creates the fail-job command.
func NewFailJobCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		retries int32
		message string
	)

	cmd := &cobra.Command{
		Use:   "fail-job <job-key>",
		Short: "Report a job failure",
		Long: `Report that a job failed. The job keeps the given number of retries;
at zero retries an incident is raised on the service task.

Examples:
  tokenflow fail-job 2251799813685262 --retries 2 --message "timeout"
  tokenflow fail-job 2251799813685262 --retries 0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("job key", args[0])
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(key, ir.IntentFail, ir.JobRecord{Retries: retries, ErrorMessage: message}), nil
			})
			return err
		},
	}

	cmd.Flags().Int32Var(&retries, "retries", 0, "remaining retries")
	cmd.Flags().StringVar(&message, "message", "", "error message")

	return cmd
}

// NewUpdateRetriesCommand creates the update-retries command.
func NewUpdateRetriesCommand(rootOpts *RootOptions) *cobra.Command {
	var retries int32

	cmd := &cobra.Command{
		Use:           "update-retries <job-key>",
		Short:         "Set the retries of a job",
		Long:          `Set the remaining retries of a job, typically before resolving its incident.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("job key", args[0])
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(key, ir.IntentUpdateRetries, ir.JobRecord{Retries: retries}), nil
			})
			return err
		},
	}

	cmd.Flags().Int32Var(&retries, "retries", 1, "remaining retries")

	return cmd
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <incident-key>",
		Short: "Resolve an incident",
		Long: `Resolve an incident and retry the step that failed. Fix the cause first:
set the variables a condition needs, or give a failed job new retries.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("incident key", args[0])
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(key, ir.IntentResolve, ir.IncidentRecord{}), nil
			})
			return err
		},
	}

	return cmd
}
