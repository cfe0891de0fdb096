package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/partition"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		version   int32
		variables string
	)

	cmd := &cobra.Command{
		Use:   "create <process-id>",
		Short: "Create a process instance",
		Long: `Create an instance of a deployed process.

Without --version the latest deployed version is used. Variables are a JSON
object written to the root scope; numbers must be integers.

Examples:
  tokenflow create order --vars '{"orderId": 7}'
  tokenflow create order --version 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVariables(variables)
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.ProcessInstanceCreationRecord{
					BpmnProcessID: args[0],
					Version:       version,
					Variables:     vars,
				}), nil
			})
			return err
		},
	}

	cmd.Flags().Int32Var(&version, "version", 0, "process version (default latest)")
	cmd.Flags().StringVar(&variables, "vars", "", "variables as a JSON object")

	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cancel <process-instance-key>",
		Short:         "Cancel a process instance",
		Long:          `Terminate every active element of a process instance, cancel its jobs and resolve its incidents.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("process instance key", args[0])
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(key, ir.IntentCancel, ir.ProcessInstanceRecord{}), nil
			})
			return err
		},
	}

	return cmd
}

// NewSetVariablesCommand creates the set-variables command.
func NewSetVariablesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		variables string
		local     bool
	)

	cmd := &cobra.Command{
		Use:   "set-variables <scope-key>",
		Short: "Set variables on a scope",
		Long: `Merge a JSON object of variables into a scope.

The scope is a process instance or an active element instance. Without
--local every variable is written to the nearest scope that already defines
it, or to the process instance.

Examples:
  tokenflow set-variables 2251799813685249 --vars '{"approved": true}'
  tokenflow set-variables 2251799813685260 --vars '{"attempt": 2}' --local`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseKey("scope key", args[0])
			if err != nil {
				return err
			}
			vars, err := parseVariables(variables)
			if err != nil {
				return err
			}
			if len(vars) == 0 {
				return NewExitError(ExitCommandError, ErrCodeBadArgument+": --vars is required")
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				return ir.NewCommand(ir.NoKey, ir.IntentUpdate, ir.VariableDocumentRecord{
					ScopeKey:  scope,
					Local:     local,
					Variables: vars,
				}), nil
			})
			return err
		},
	}

	cmd.Flags().StringVar(&variables, "vars", "", "variables as a JSON object")
	cmd.Flags().BoolVar(&local, "local", false, "write into the scope itself")

	return cmd
}

// NewCompleteElementCommand creates the complete-element command.
func NewCompleteElementCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete-element <element-instance-key>",
		Short: "Complete a waiting element instance",
		Long: `Complete an ACTIVATED element instance that waits for an external signal,
such as a manual task. Service tasks complete through their job instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("element instance key", args[0])
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(_ context.Context, m *partition.Manager) (ir.Record, error) {
				e, err := engineFor(m, key)
				if err != nil {
					return ir.Record{}, err
				}
				inst, ok := e.State().ElementInstance(key)
				if !ok {
					return ir.Record{}, NewExitError(ExitFailure,
						fmt.Sprintf("%s: element instance %d not found", ErrCodeRejected, key))
				}
				return ir.NewCommand(key, ir.IntentCompleteElement, inst.Record()), nil
			})
			return err
		},
	}

	return cmd
}
