package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/queryir"
)

// RecordsOptions holds flags for the records command.
type RecordsOptions struct {
	*RootOptions
	Partition  int32
	RecordType string
	ValueType  string
	Intents    []string
	Key        int64
	Instance   int64
	From       int64
	To         int64
	Limit      int
	Descending bool
}

// RecordsResult holds the matching records of one partition.
type RecordsResult struct {
	Partition int32        `json:"partition"`
	Records   []RecordLine `json:"records"`
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Query the record log of a partition",
		Long: `Query the record log of one partition by record header fields. All
given filters must match; --intent may be repeated to accept any of several
intents.

Examples:
  tokenflow records --value-type JOB --intent CREATED
  tokenflow records --instance 2251799813685249 --type EVENT
  tokenflow records --limit 20 --desc --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(opts, cmd)
		},
	}

	cmd.Flags().Int32Var(&opts.Partition, "partition", 1, "partition to query")
	cmd.Flags().StringVar(&opts.RecordType, "type", "", "record type (COMMAND|EVENT|COMMAND_REJECTION)")
	cmd.Flags().StringVar(&opts.ValueType, "value-type", "", "value type, e.g. JOB")
	cmd.Flags().StringSliceVar(&opts.Intents, "intent", nil, "intent, e.g. CREATED (repeatable)")
	cmd.Flags().Int64Var(&opts.Key, "key", 0, "record key")
	cmd.Flags().Int64Var(&opts.Instance, "instance", 0, "process instance key")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first position")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last position")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = all)")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "newest records first")

	return cmd
}

// recordsQuery builds the query for the given flags.
func recordsQuery(opts *RecordsOptions) queryir.Select {
	var preds []queryir.Predicate
	if opts.RecordType != "" {
		preds = append(preds, queryir.Equals{Field: queryir.FieldRecordType, Value: ir.IRString(opts.RecordType)})
	}
	if opts.ValueType != "" {
		preds = append(preds, queryir.Equals{Field: queryir.FieldValueType, Value: ir.IRString(opts.ValueType)})
	}
	if len(opts.Intents) > 0 {
		intents := make([]ir.IRValue, len(opts.Intents))
		for i, intent := range opts.Intents {
			intents[i] = ir.IRString(intent)
		}
		preds = append(preds, queryir.AnyOf(queryir.FieldIntent, intents...))
	}
	if opts.Key > 0 {
		preds = append(preds, queryir.Equals{Field: queryir.FieldKey, Value: ir.IRInt(opts.Key)})
	}
	if opts.Instance > 0 {
		preds = append(preds, queryir.Equals{Field: queryir.FieldInstanceKey, Value: ir.IRInt(opts.Instance)})
	}
	if opts.From > 0 {
		preds = append(preds, queryir.AtLeast{Field: queryir.FieldPosition, Value: opts.From})
	}
	if opts.To > 0 {
		preds = append(preds, queryir.AtMost{Field: queryir.FieldPosition, Value: opts.To})
	}
	return queryir.Select{
		Filter:     queryir.AllOf(preds...),
		Limit:      opts.Limit,
		Descending: opts.Descending,
	}
}

func runRecords(opts *RecordsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: invalid limit %d", ErrCodeBadArgument, opts.Limit))
	}

	records, err := findRecords(ctx, opts.RootOptions, opts.Partition, recordsQuery(opts))
	if err != nil {
		return err
	}

	result := RecordsResult{Partition: opts.Partition, Records: make([]RecordLine, 0, len(records))}
	for _, r := range records {
		result.Records = append(result.Records, newRecordLine(r))
	}

	f := newFormatter(cmd, opts.RootOptions)
	if opts.Format == "json" {
		return f.Success(result)
	}
	if len(result.Records) == 0 {
		fmt.Fprintf(f.Writer, "No matching records in partition %d\n", opts.Partition)
		return nil
	}
	for _, line := range result.Records {
		writeRecordLine(f, line)
	}
	return nil
}
