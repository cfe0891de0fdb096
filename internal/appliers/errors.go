package appliers

import (
	"errors"
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
)

// MissingEntityError reports an event referring to an entity absent from
// the state.
type MissingEntityError struct {
	Entity   string
	Key      int64
	Position int64
	Intent   ir.Intent
	Err      error
}

func (e *MissingEntityError) Error() string {
	msg := fmt.Sprintf("apply %s at position %d: %s %d not found", e.Intent, e.Position, e.Entity, e.Key)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingEntityError) Unwrap() error { return e.Err }

// IsMissingEntity reports whether err is a MissingEntityError.
func IsMissingEntity(err error) bool {
	var me *MissingEntityError
	return errors.As(err, &me)
}

// UnknownEventError reports an event with no registered applier.
type UnknownEventError struct {
	ValueType ir.ValueType
	Intent    ir.Intent
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("no applier for %s %s", e.ValueType, e.Intent)
}
