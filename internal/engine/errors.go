package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
)

// RejectionError is returned by a command processor that refuses a
// command. The engine turns it into a COMMAND_REJECTION record; nothing
// else is written for the command.
type RejectionError struct {
	Type   ir.RejectionType
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

func reject(t ir.RejectionType, format string, args ...any) *RejectionError {
	return &RejectionError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a RejectionError.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// FatalError halts processing of a partition. The state no longer matches
// the log, so neither live processing nor replay can continue past
// Position.
type FatalError struct {
	Position int64
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("partition halted at position %d: %v", e.Position, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// StepLimitError stops a drain whose causal chains keep producing
// commands. The remaining commands stay in the log unprocessed.
type StepLimitError struct {
	Steps    int
	Limit    int
	Position int64
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("processed %d commands without reaching quiescence (limit %d), stopped before position %d",
		e.Steps, e.Limit, e.Position)
}

// IsStepLimit reports whether err is a StepLimitError.
func IsStepLimit(err error) bool {
	var se *StepLimitError
	return errors.As(err, &se)
}
