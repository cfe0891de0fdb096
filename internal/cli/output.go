package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/tokenflow/internal/ir"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rejected command, failed scenario, invalid process, replay divergence
	ExitCommandError = 2 // the command could not run: bad arguments, unreadable paths or logs
)

// ExitError carries the exit code a command failure should end the process
// with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that carry no
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every JSON document a command prints.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"` // set when a command was written to the log
}

// CLIError describes a failure in a JSON response.
type CLIError struct {
	Code    string `json:"code"` // one of the ErrCode* constants
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter prints command results as JSON envelopes or as text.
// Diagnostics go to ErrWriter, or to Writer when it is nil.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Respond writes resp as one line of JSON regardless of the format.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success prints data: wrapped in an "ok" envelope for JSON, with its
// default formatting otherwise.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.Respond(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints a failure. Text output shows details only in verbose mode.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.Respond(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a diagnostic line when verbose output is on. It never
// writes to Writer while ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the writer for diagnostics.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}

// RecordLine is the printed form of one log record.
type RecordLine struct {
	Position   int64  `json:"position"`
	Source     int64  `json:"source"`
	RecordType string `json:"record_type"`
	ValueType  string `json:"value_type"`
	Intent     string `json:"intent"`
	Key        int64  `json:"key"`
	Element    string `json:"element,omitempty"`
	Rejection  string `json:"rejection,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func newRecordLine(r ir.Record) RecordLine {
	line := RecordLine{
		Position:   r.Position,
		Source:     r.SourceRecordPosition,
		RecordType: string(r.RecordType),
		ValueType:  string(r.ValueType),
		Intent:     string(r.Intent),
		Key:        r.Key,
		Rejection:  string(r.RejectionType),
		Reason:     r.RejectionReason,
	}
	if pi, ok := r.ProcessInstance(); ok {
		line.Element = pi.ElementID
	}
	return line
}

var recordColors = map[ir.RecordType]*color.Color{
	ir.RecordEvent:            color.New(color.FgGreen),
	ir.RecordCommand:          color.New(color.FgCyan),
	ir.RecordCommandRejection: color.New(color.FgRed),
}

// writeRecordLine prints one record, coloured by record type. Process
// instance records show their element instead of the value type.
func writeRecordLine(f *OutputFormatter, line RecordLine) {
	c, ok := recordColors[ir.RecordType(line.RecordType)]
	if !ok {
		c = color.New(color.FgWhite)
	}
	subject := line.ValueType
	if line.Element != "" {
		subject = line.Element
	}
	c.Fprintf(f.Writer, "  %6d  %-17s %-26s %-24s key=%d", line.Position, line.RecordType, subject, line.Intent, line.Key)
	if line.Rejection != "" {
		fmt.Fprintf(f.Writer, " %s: %s", line.Rejection, line.Reason)
	}
	fmt.Fprintln(f.Writer)
}
