package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/engine"
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
)

// ReplayPartitionResult holds the replay result for one partition.
type ReplayPartitionResult struct {
	Partition     int32  `json:"partition"`
	Records       int    `json:"records"`
	Commands      int    `json:"commands"`
	Deterministic bool   `json:"deterministic"`
	Divergence    string `json:"divergence,omitempty"`
	StateDiff     string `json:"state_diff,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Partitions       []ReplayPartitionResult `json:"partitions"`
	AllDeterministic bool                    `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-process the record log and verify determinism",
		Long: `Re-process every external command of the record log on a fresh engine and
verify that it writes the same records and reaches the same state.

For each partition the state recovered from the stored events is compared
with the state of the fresh engine, and every re-written record is compared
with the stored record at the same position. Timestamps are ignored.

Exit codes:
  0 - All partitions are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (log not found, etc.)

Examples:
  tokenflow replay --db ./tokenflow.db
  tokenflow replay --db ./tokenflow.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts)

	result := ReplayResult{AllDeterministic: true}
	for id := int32(1); int(id) <= opts.Partitions; id++ {
		recordLog, err := openLog(ctx, opts, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to open partition %d", id), err)
		}
		part, err := replayPartition(ctx, recordLog, id)
		_ = recordLog.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay partition %d", id), err)
		}
		formatter.VerboseLog("Partition %d: %d records, %d external commands", id, part.Records, part.Commands)
		result.Partitions = append(result.Partitions, part)
		if !part.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayPartition recovers the stored state, re-executes the external
// commands on a fresh in-memory engine and compares both.
func replayPartition(ctx context.Context, stored logstream.Log, id int32) (ReplayPartitionResult, error) {
	result := ReplayPartitionResult{Partition: id, Deterministic: true}

	recovered := engine.New(stored, engine.WithPartitionID(id))
	if err := recovered.Recover(ctx); err != nil {
		return result, fmt.Errorf("recover: %w", err)
	}

	records, err := logstream.ReadAll(ctx, stored)
	if err != nil {
		return result, err
	}
	result.Records = len(records)

	fresh := engine.New(logstream.NewMemoryLog(), engine.WithPartitionID(id))
	for _, r := range records {
		if !r.IsCommand() || r.SourceRecordPosition != ir.NoPosition {
			continue
		}
		result.Commands++
		cmd := ir.NewCommand(r.Key, r.Intent, r.Value)
		cmd.RequestID = r.RequestID
		if _, err := fresh.Execute(ctx, cmd); err != nil && !engine.IsStepLimit(err) {
			return result, fmt.Errorf("re-execute position %d: %w", r.Position, err)
		}
	}

	replayed, err := logstream.ReadAll(ctx, fresh.Log())
	if err != nil {
		return result, err
	}
	if divergence, err := firstDivergence(records, replayed); err != nil {
		return result, err
	} else if divergence != "" {
		result.Deterministic = false
		result.Divergence = divergence
	}

	if diff := cmp.Diff(recovered.Snapshot(), fresh.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		result.Deterministic = false
		result.StateDiff = diff
	}
	return result, nil
}

// firstDivergence describes the first position at which the two logs
// differ, or returns "" when they are identical apart from timestamps.
func firstDivergence(stored, replayed []ir.Record) (string, error) {
	for i := range max(len(stored), len(replayed)) {
		if i >= len(stored) {
			return fmt.Sprintf("replay wrote extra record at position %d: %s", replayed[i].Position, replayed[i]), nil
		}
		if i >= len(replayed) {
			return fmt.Sprintf("replay stopped before position %d: %s", stored[i].Position, stored[i]), nil
		}
		a, err := normalized(stored[i])
		if err != nil {
			return "", err
		}
		b, err := normalized(replayed[i])
		if err != nil {
			return "", err
		}
		if a != b {
			return fmt.Sprintf("position %d: stored %s, replayed %s", stored[i].Position, stored[i], replayed[i]), nil
		}
	}
	return "", nil
}

// normalized renders a record as JSON without its timestamp.
func normalized(r ir.Record) (string, error) {
	r.Timestamp = 0
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal position %d: %w", r.Position, err)
	}
	return string(data), nil
}

func outputReplayText(f *OutputFormatter, result ReplayResult) {
	for _, p := range result.Partitions {
		if p.Deterministic {
			color.New(color.FgGreen).Fprintf(f.Writer, "✓ partition %d: %d records, %d commands replayed\n", p.Partition, p.Records, p.Commands)
			continue
		}
		color.New(color.FgRed).Fprintf(f.Writer, "✗ partition %d: non-deterministic\n", p.Partition)
		if p.Divergence != "" {
			fmt.Fprintf(f.Writer, "  %s\n", p.Divergence)
		}
		if p.StateDiff != "" {
			fmt.Fprintf(f.Writer, "  state differs (-recovered +replayed):\n%s\n", p.StateDiff)
		}
	}
	if result.AllDeterministic {
		fmt.Fprintln(f.Writer, "All partitions deterministic")
	}
}
