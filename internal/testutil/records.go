package testutil

import (
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
)

// Filter selects records.
type Filter func(ir.Record) bool

// Select returns the records matching every filter, in log order.
func Select(records []ir.Record, filters ...Filter) []ir.Record {
	var out []ir.Record
next:
	for _, r := range records {
		for _, f := range filters {
			if !f(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// Events keeps events only.
func Events(r ir.Record) bool { return r.IsEvent() }

// Rejections keeps command rejections only.
func Rejections(r ir.Record) bool { return r.IsRejection() }

// WithValueType keeps records of a value type.
func WithValueType(vt ir.ValueType) Filter {
	return func(r ir.Record) bool { return r.ValueType == vt }
}

// WithIntent keeps records with an intent.
func WithIntent(intent ir.Intent) Filter {
	return func(r ir.Record) bool { return r.Intent == intent }
}

// WithElement keeps process instance records about elementID (or a flow id
// for SEQUENCE_FLOW_TAKEN).
func WithElement(elementID string) Filter {
	return func(r ir.Record) bool {
		pi, ok := r.ProcessInstance()
		return ok && pi.ElementID == elementID
	}
}

// WithProcessInstance keeps process instance records of one instance.
func WithProcessInstance(processInstanceKey int64) Filter {
	return func(r ir.Record) bool {
		pi, ok := r.ProcessInstance()
		return ok && pi.ProcessInstanceKey == processInstanceKey
	}
}

// ElementTrace renders process instance events as "element:INTENT" lines.
func ElementTrace(records []ir.Record) []string {
	var out []string
	for _, r := range Select(records, Events, WithValueType(ir.ValueProcessInstance)) {
		pi, _ := r.ProcessInstance()
		out = append(out, fmt.Sprintf("%s:%s", pi.ElementID, r.Intent))
	}
	return out
}

// Count returns how many records match the filters.
func Count(records []ir.Record, filters ...Filter) int {
	return len(Select(records, filters...))
}
