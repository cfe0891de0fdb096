package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []string // element trace for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "expected %s, got %s", e.Expected, e.Actual)
	if len(e.Trace) > 0 {
		buf.WriteString("\nelement trace:\n")
		for i, line := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}
	return buf.String()
}

func (h *Harness) check(a Assertion, result *Result) error {
	piKey, err := h.instance(a.Instance)
	if err != nil {
		return err
	}
	events := instanceEvents(result.records, piKey)

	switch a.Type {
	case AssertTraceContains:
		if countEvents(events, a.Element, a.Intent) == 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: describeEvent(a.Element, a.Intent),
				Actual:   "no such event",
				Trace:    result.ElementTrace(),
			}
		}
		return nil

	case AssertTraceCount:
		if got := countEvents(events, a.Element, a.Intent); got != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d x %s", *a.Count, describeEvent(a.Element, a.Intent)),
				Actual:   fmt.Sprintf("%d", got),
				Trace:    result.ElementTrace(),
			}
		}
		return nil

	case AssertTraceOrder:
		return assertOrder(a, events, result)

	case AssertInstanceCompleted:
		if n := len(h.engine.State().ElementInstances(piKey)); n > 0 {
			return &AssertionError{Type: a.Type, Expected: "no element instances left", Actual: fmt.Sprintf("%d", n)}
		}
		for _, r := range events {
			if r.Key == piKey && r.Intent == ir.IntentElementCompleted {
				return nil
			}
		}
		return &AssertionError{Type: a.Type, Expected: "process instance ELEMENT_COMPLETED", Actual: "not completed", Trace: result.ElementTrace()}

	case AssertElementActive:
		inst, err := findElement(h.engine.State(), piKey, a.Element)
		if err != nil {
			return err
		}
		want := ir.StateActivated
		if a.State != "" {
			want = ir.ElementState(a.State)
		}
		if inst.State != want {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s in state %s", a.Element, want), Actual: string(inst.State)}
		}
		return nil

	case AssertJobOpen:
		var n int
		for _, job := range h.engine.State().Jobs(a.JobType) {
			if job.ProcessInstanceKey == piKey {
				n++
			}
		}
		return expectCount(a, "open jobs of type "+a.JobType, n)

	case AssertIncidentOpen:
		var n int
		for _, inc := range h.engine.State().Incidents() {
			if matchIncident(inc, piKey, a) {
				n++
			}
		}
		return expectCount(a, "open incidents", n)

	case AssertVariable:
		return h.assertVariable(a, piKey)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func expectCount(a Assertion, what string, got int) error {
	if a.Count != nil {
		if got != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d %s", *a.Count, what), Actual: fmt.Sprintf("%d", got)}
		}
		return nil
	}
	if got == 0 {
		return &AssertionError{Type: a.Type, Expected: "at least one of " + what, Actual: "none"}
	}
	return nil
}

func matchIncident(inc state.Incident, piKey int64, a Assertion) bool {
	if inc.ProcessInstanceKey != piKey {
		return false
	}
	if a.Element != "" && inc.ElementID != a.Element {
		return false
	}
	return a.ErrorType == "" || string(inc.ErrorType) == a.ErrorType
}

func (h *Harness) assertVariable(a Assertion, piKey int64) error {
	scope := piKey
	if a.Element != "" {
		inst, err := findElement(h.engine.State(), piKey, a.Element)
		if err != nil {
			return err
		}
		scope = inst.Key
	}
	got, ok := h.engine.State().VisibleVariables(scope)[a.Name]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("variable %q", a.Name), Actual: "not set"}
	}
	want, err := ir.FromNative(a.Value)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Name, ir.ToNative(want)),
			Actual:   fmt.Sprintf("%v", ir.ToNative(got)),
		}
	}
	return nil
}

// assertOrder checks that the events appear as a subsequence of the
// instance's element trace. Intervening events are allowed.
func assertOrder(a Assertion, events []ir.Record, result *Result) error {
	trace := make([]string, 0, len(events))
	for _, r := range events {
		trace = append(trace, newTraceEvent(r).String())
	}
	next := 0
	for _, line := range trace {
		if next < len(a.Events) && line == a.Events[next] {
			next++
		}
	}
	if next < len(a.Events) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%q in this order", a.Events),
			Actual:   fmt.Sprintf("missing %q after %d matches", a.Events[next], next),
			Trace:    trace,
		}
	}
	return nil
}

// instanceEvents returns the process instance events of one instance.
func instanceEvents(records []ir.Record, piKey int64) []ir.Record {
	var out []ir.Record
	for _, r := range records {
		pi, ok := r.ProcessInstance()
		if ok && r.IsEvent() && pi.ProcessInstanceKey == piKey {
			out = append(out, r)
		}
	}
	return out
}

func countEvents(events []ir.Record, element, intent string) int {
	n := 0
	for _, r := range events {
		pi, _ := r.ProcessInstance()
		if pi.ElementID == element && (intent == "" || string(r.Intent) == intent) {
			n++
		}
	}
	return n
}

func describeEvent(element, intent string) string {
	if intent == "" {
		return element + ":*"
	}
	return element + ":" + intent
}
