package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/partition"
)

// CommandResult is the outcome of one external command.
type CommandResult struct {
	ValueType       string       `json:"value_type"`
	Intent          string       `json:"intent"`
	Key             int64        `json:"key"`
	Position        int64        `json:"position"`
	RequestID       string       `json:"request_id"`
	Accepted        bool         `json:"accepted"`
	RejectionType   string       `json:"rejection_type,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	Records         []RecordLine `json:"records"`
}

// commandBuilder builds the command to write once the partitions are
// recovered, so that it can look up keys in the current state.
type commandBuilder func(ctx context.Context, m *partition.Manager) (ir.Record, error)

// executeCommand opens the record log, writes the built command, processes
// it with all its follow-ups and reports the outcome. A rejected command
// exits with ExitFailure.
func executeCommand(cmd *cobra.Command, opts *RootOptions, build commandBuilder) (*CommandResult, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts)

	m, err := openSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	record, err := build(ctx, m)
	if err != nil {
		return nil, err
	}
	formatter.VerboseLog("Writing %s %s (key %d)", record.ValueType, record.Intent, record.Key)

	res, err := m.Execute(ctx, record)
	if err != nil && res.Command.Position == 0 {
		return nil, WrapExitError(ExitCommandError, "failed to execute command", err)
	}

	result := &CommandResult{
		ValueType: string(res.Command.ValueType),
		Intent:    string(res.Command.Intent),
		Key:       res.Command.Key,
		Position:  res.Command.Position,
		RequestID: res.Command.RequestID,
		Accepted:  true,
		Records:   make([]RecordLine, 0, len(res.Records)),
	}
	for _, r := range res.Records {
		result.Records = append(result.Records, newRecordLine(r))
	}
	if rej, ok := res.Rejection(); ok {
		result.Accepted = false
		result.RejectionType = string(rej.RejectionType)
		result.RejectionReason = rej.RejectionReason
	} else if result.Key == ir.NoKey {
		result.Key = createdKey(res.Command, res.Records)
	}

	if outErr := outputCommandResult(formatter, result); outErr != nil {
		return nil, outErr
	}
	if err != nil {
		return result, WrapExitError(ExitCommandError, "processing stopped", err)
	}
	if !result.Accepted {
		return result, NewExitError(ExitFailure,
			fmt.Sprintf("%s: command rejected: %s: %s", ErrCodeRejected, result.RejectionType, result.RejectionReason))
	}
	return result, nil
}

// createdKey returns the key the engine assigned to a command written
// without one: the key of its first event of the same value type.
func createdKey(cmd ir.Record, records []ir.Record) int64 {
	for _, r := range records {
		if r.IsEvent() && r.SourceRecordPosition == cmd.Position && r.ValueType == cmd.ValueType {
			return r.Key
		}
	}
	return ir.NoKey
}

func outputCommandResult(f *OutputFormatter, result *CommandResult) error {
	if f.Format == "json" {
		if !result.Accepted {
			return f.Respond(CLIResponse{
				Status:    "error",
				Data:      result,
				RequestID: result.RequestID,
				Error: &CLIError{
					Code:    ErrCodeRejected,
					Message: result.RejectionReason,
					Details: result.RejectionType,
				},
			})
		}
		return f.Respond(CLIResponse{
			Status:    "ok",
			Data:      result,
			RequestID: result.RequestID,
		})
	}

	if !result.Accepted {
		color.New(color.FgRed).Fprintf(f.Writer, "✗ %s %s rejected: %s\n", result.ValueType, result.Intent, result.RejectionType)
		fmt.Fprintf(f.Writer, "  %s\n", result.RejectionReason)
		return nil
	}
	color.New(color.FgGreen).Fprintf(f.Writer, "✓ %s %s accepted (key %d)\n", result.ValueType, result.Intent, result.Key)
	if f.Verbose {
		for _, line := range result.Records {
			writeRecordLine(f, line)
		}
	}
	return nil
}

// parseKey parses a record key argument.
func parseKey(name, arg string) (int64, error) {
	key, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || key <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("%s: invalid %s %q", ErrCodeBadArgument, name, arg))
	}
	return key, nil
}

// parseVariables parses a JSON object of variables. Numbers must be
// integers.
func parseVariables(doc string) (ir.IRObject, error) {
	if doc == "" {
		return ir.IRObject{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.UseNumber()
	var native map[string]any
	if err := dec.Decode(&native); err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeBadArgument+": variables must be a JSON object", err)
	}
	vars, err := ir.ObjectFromNative(native)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeBadArgument+": invalid variables", err)
	}
	return vars, nil
}
