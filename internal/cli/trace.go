package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/queryir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	EventsOnly bool
	Element    string // optional - filter to one element id
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	ProcessInstanceKey int64        `json:"process_instance_key"`
	Records            []RecordLine `json:"records"`
	Stats              TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total      int  `json:"total"`
	Commands   int  `json:"commands"`
	Events     int  `json:"events"`
	Rejections int  `json:"rejections"`
	Completed  bool `json:"completed"`
	Terminated bool `json:"terminated"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <process-instance-key>",
		Short: "Show the records of a process instance",
		Long: `Show every record of one process instance in log order: element
lifecycle events, taken sequence flows, jobs, incidents and variables.

Examples:
  tokenflow trace 2251799813685249
  tokenflow trace 2251799813685249 --events --element task
  tokenflow trace 2251799813685249 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("process instance key", args[0])
			if err != nil {
				return err
			}
			return runTrace(opts, key, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.EventsOnly, "events", false, "show events only")
	cmd.Flags().StringVar(&opts.Element, "element", "", "filter to one element id")

	return cmd
}

func runTrace(opts *TraceOptions, piKey int64, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id := ir.PartitionOf(piKey)
	if id < 1 || int(id) > opts.Partitions {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("key %d belongs to partition %d, which is not configured", piKey, id))
	}
	records, err := findRecords(ctx, opts.RootOptions, id, queryir.Select{
		Filter: queryir.Equals{Field: queryir.FieldInstanceKey, Value: ir.IRInt(piKey)},
	})
	if err != nil {
		return err
	}

	result := buildTrace(piKey, records, opts.EventsOnly, opts.Element)
	f := newFormatter(cmd, opts.RootOptions)
	if opts.Format == "json" {
		return f.Success(result)
	}
	return outputTraceText(f, result)
}

// buildTrace filters the records of an instance and computes statistics
// over the unfiltered set.
func buildTrace(piKey int64, records []ir.Record, eventsOnly bool, element string) TraceResult {
	result := TraceResult{ProcessInstanceKey: piKey, Records: []RecordLine{}}
	for _, r := range records {
		result.Stats.Total++
		switch {
		case r.IsCommand():
			result.Stats.Commands++
		case r.IsRejection():
			result.Stats.Rejections++
		case r.IsEvent():
			result.Stats.Events++
			if r.Key == piKey && r.Intent == ir.IntentElementCompleted {
				result.Stats.Completed = true
			}
			if r.Key == piKey && r.Intent == ir.IntentElementTerminated {
				result.Stats.Terminated = true
			}
		}

		if eventsOnly && !r.IsEvent() {
			continue
		}
		line := newRecordLine(r)
		if element != "" && line.Element != element {
			continue
		}
		result.Records = append(result.Records, line)
	}
	return result
}

// outputTraceText outputs the trace as a timeline.
func outputTraceText(f *OutputFormatter, result TraceResult) error {
	if result.Stats.Total == 0 {
		fmt.Fprintf(f.Writer, "No records found for process instance %d\n", result.ProcessInstanceKey)
		return nil
	}

	status := "active"
	switch {
	case result.Stats.Completed:
		status = "completed"
	case result.Stats.Terminated:
		status = "terminated"
	}
	fmt.Fprintf(f.Writer, "Process instance %d (%s)\n", result.ProcessInstanceKey, status)
	fmt.Fprintf(f.Writer, "%d records: %d commands, %d events, %d rejections\n\n",
		result.Stats.Total, result.Stats.Commands, result.Stats.Events, result.Stats.Rejections)
	for _, line := range result.Records {
		writeRecordLine(f, line)
	}
	return nil
}
