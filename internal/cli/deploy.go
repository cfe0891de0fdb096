package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/partition"
)

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <path>...",
		Short: "Deploy process definitions",
		Long: `Compile and validate CUE process definitions and deploy them.

A definition whose checksum matches the latest deployed version keeps that
version; any change creates a new version. With several partitions every
partition receives the deployment.

Examples:
  tokenflow deploy ./processes
  tokenflow deploy order.cue --db ./tokenflow.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			graphs, err := loadValidGraphs(newFormatter(cmd, rootOpts), args)
			if err != nil {
				return err
			}
			_, err = executeCommand(cmd, rootOpts, func(context.Context, *partition.Manager) (ir.Record, error) {
				var dep ir.DeploymentRecord
				for _, g := range graphs {
					dep.Processes = append(dep.Processes, ir.ProcessMetadata{Graph: g})
				}
				return ir.NewCommand(ir.NoKey, ir.IntentCreate, dep), nil
			})
			return err
		},
	}

	return cmd
}
