package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

// runOrder creates an order instance and leaves its ship job open.
func runOrder(t *testing.T, assertions ...Assertion) *Result {
	t.Helper()
	result, err := Run(&Scenario{
		Name:        "order",
		Description: "an order waiting for shipment",
		Processes:   []string{orderProcess},
		Steps: []Step{
			{Action: ActionCreate, Process: "order", As: "o", Variables: map[string]any{"orderId": 7}},
		},
		Assertions: assertions,
	})
	require.NoError(t, err)
	return result
}

func TestAssertions_Pass(t *testing.T) {
	result := runOrder(t,
		Assertion{Type: AssertTraceContains, Element: "task", Intent: "ELEMENT_ACTIVATED"},
		Assertion{Type: AssertTraceContains, Instance: "o", Element: "f1"},
		Assertion{Type: AssertTraceCount, Element: "start", Count: intPtr(4)},
		Assertion{Type: AssertTraceCount, Element: "end", Count: intPtr(0)},
		Assertion{Type: AssertTraceOrder, Events: []string{"order:ELEMENT_ACTIVATED", "f1:SEQUENCE_FLOW_TAKEN", "task:ELEMENT_ACTIVATED"}},
		Assertion{Type: AssertElementActive, Element: "task"},
		Assertion{Type: AssertElementActive, Element: "task", State: "ACTIVATED"},
		Assertion{Type: AssertJobOpen, JobType: "ship"},
		Assertion{Type: AssertJobOpen, JobType: "ship", Count: intPtr(1)},
		Assertion{Type: AssertIncidentOpen, Count: intPtr(0)},
		Assertion{Type: AssertVariable, Name: "orderId", Value: 7},
		Assertion{Type: AssertVariable, Element: "task", Name: "orderId", Value: 7},
	)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]int64{"o": result.Instances["o"]}, result.Instances)
}

func TestAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "missing event",
			assertion: Assertion{Type: AssertTraceContains, Element: "end"},
			want:      "expected end:*, got no such event",
		},
		{
			name:      "wrong count",
			assertion: Assertion{Type: AssertTraceCount, Element: "task", Intent: "ELEMENT_ACTIVATED", Count: intPtr(2)},
			want:      "expected 2 x task:ELEMENT_ACTIVATED, got 1",
		},
		{
			name:      "wrong order",
			assertion: Assertion{Type: AssertTraceOrder, Events: []string{"task:ELEMENT_ACTIVATED", "start:ELEMENT_ACTIVATED"}},
			want:      `missing "start:ELEMENT_ACTIVATED" after 1 matches`,
		},
		{
			name:      "not completed",
			assertion: Assertion{Type: AssertInstanceCompleted},
			want:      "expected no element instances left",
		},
		{
			name:      "element state",
			assertion: Assertion{Type: AssertElementActive, Element: "task", State: "COMPLETED"},
			want:      "expected task in state COMPLETED, got ACTIVATED",
		},
		{
			name:      "no such element",
			assertion: Assertion{Type: AssertElementActive, Element: "end"},
			want:      `no instance of element "end"`,
		},
		{
			name:      "no job",
			assertion: Assertion{Type: AssertJobOpen, JobType: "pack"},
			want:      "expected at least one of open jobs of type pack, got none",
		},
		{
			name:      "incident count",
			assertion: Assertion{Type: AssertIncidentOpen},
			want:      "expected at least one of open incidents, got none",
		},
		{
			name:      "variable missing",
			assertion: Assertion{Type: AssertVariable, Name: "shipped", Value: true},
			want:      `expected variable "shipped", got not set`,
		},
		{
			name:      "variable value",
			assertion: Assertion{Type: AssertVariable, Name: "orderId", Value: 8},
			want:      "expected orderId = 8, got 7",
		},
		{
			name:      "unknown instance",
			assertion: Assertion{Type: AssertTraceContains, Instance: "other", Element: "task"},
			want:      `unknown instance "other"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runOrder(t, tt.assertion)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceContains,
		Expected: "end:ELEMENT_COMPLETED",
		Actual:   "no such event",
		Trace:    []string{"order:ELEMENT_ACTIVATING", "order:ELEMENT_ACTIVATED"},
	}
	assert.Equal(t,
		"expected end:ELEMENT_COMPLETED, got no such event\n"+
			"element trace:\n"+
			"  [1] order:ELEMENT_ACTIVATING\n"+
			"  [2] order:ELEMENT_ACTIVATED\n",
		err.Error())

	bare := &AssertionError{Expected: "1", Actual: "0"}
	assert.Equal(t, "expected 1, got 0", bare.Error())
}

func TestTraceEvent_String(t *testing.T) {
	assert.Equal(t, "task:ELEMENT_ACTIVATED", TraceEvent{Element: "task", Intent: "ELEMENT_ACTIVATED"}.String())
	assert.Equal(t, "JOB:CREATED", TraceEvent{ValueType: "JOB", Intent: "CREATED"}.String())
}
