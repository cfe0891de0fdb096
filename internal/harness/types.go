package harness

import (
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
)

// TraceEvent is one record of the scenario log in a compact, comparable
// form.
type TraceEvent struct {
	Position   int64  `json:"position"`
	Source     int64  `json:"source"`
	RecordType string `json:"record_type"`
	ValueType  string `json:"value_type"`
	Intent     string `json:"intent"`
	Key        int64  `json:"key"`
	Element    string `json:"element,omitempty"`
	Rejection  string `json:"rejection,omitempty"`
}

// String renders the event as "element:INTENT" for process instance events
// and "VALUE_TYPE:INTENT" otherwise.
func (e TraceEvent) String() string {
	if e.Element != "" {
		return fmt.Sprintf("%s:%s", e.Element, e.Intent)
	}
	return fmt.Sprintf("%s:%s", e.ValueType, e.Intent)
}

func newTraceEvent(r ir.Record) TraceEvent {
	ev := TraceEvent{
		Position:   r.Position,
		Source:     r.SourceRecordPosition,
		RecordType: string(r.RecordType),
		ValueType:  string(r.ValueType),
		Intent:     string(r.Intent),
		Key:        r.Key,
		Rejection:  string(r.RejectionType),
	}
	if pi, ok := r.ProcessInstance(); ok {
		ev.Element = pi.ElementID
	}
	return ev
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains every record of the log in position order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Instances maps instance names to process instance keys.
	Instances map[string]int64 `json:"instances,omitempty"`

	records []ir.Record
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Instances: make(map[string]int64),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Records returns the raw log of the scenario.
func (r *Result) Records() []ir.Record {
	return r.records
}

// ElementTrace returns the process instance events as "element:INTENT"
// lines, the form golden files use.
func (r *Result) ElementTrace() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.RecordType == string(ir.RecordEvent) && ev.ValueType == string(ir.ValueProcessInstance) {
			out = append(out, ev.String())
		}
	}
	return out
}
