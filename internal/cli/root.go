package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string
	Backend    string // "sqlite" | "bolt"
	Partitions int
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidBackends defines the allowed record log backends.
var ValidBackends = []string{BackendSQLite, BackendBolt}

// Record log backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// NewRootCommand creates the root command for the tokenflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tokenflow",
		Short: "tokenflow - a token-flow process engine",
		Long: `A stream-processing engine that executes process definitions by moving
tokens through an element graph and writing every state change to an
append-only record log.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidBackends, opts.Backend) {
				return fmt.Errorf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends)
			}
			if opts.Partitions < 1 {
				return fmt.Errorf("invalid partition count %d: must be at least 1", opts.Partitions)
			}
			setupLogging(opts, cmd.ErrOrStderr())
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "tokenflow.db", "path to the record log")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", BackendSQLite, "record log backend (sqlite|bolt)")
	cmd.PersistentFlags().IntVar(&opts.Partitions, "partitions", 1, "number of partitions")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewSetVariablesCommand(opts))
	cmd.AddCommand(NewCompleteElementCommand(opts))
	cmd.AddCommand(NewCompleteJobCommand(opts))
	cmd.AddCommand(NewFailJobCommand(opts))
	cmd.AddCommand(NewUpdateRetriesCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}
