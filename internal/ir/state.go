package ir

// ElementState is the lifecycle state of an element instance.
type ElementState string

const (
	StateActivating  ElementState = "ACTIVATING"
	StateActivated   ElementState = "ACTIVATED"
	StateCompleting  ElementState = "COMPLETING"
	StateCompleted   ElementState = "COMPLETED"
	StateTerminating ElementState = "TERMINATING"
	StateTerminated  ElementState = "TERMINATED"
)

// IsTerminal reports whether no further transition is possible.
func (s ElementState) IsTerminal() bool {
	return s == StateCompleted || s == StateTerminated
}

// lifecycleIntents maps the element lifecycle events to the state they
// move an instance into.
var lifecycleIntents = map[Intent]ElementState{
	IntentElementActivating:  StateActivating,
	IntentElementActivated:   StateActivated,
	IntentElementCompleting:  StateCompleting,
	IntentElementCompleted:   StateCompleted,
	IntentElementTerminating: StateTerminating,
	IntentElementTerminated:  StateTerminated,
}

// StateForIntent returns the state an element lifecycle event transitions to.
func StateForIntent(intent Intent) (ElementState, bool) {
	s, ok := lifecycleIntents[intent]
	return s, ok
}

// ErrorType classifies incidents.
type ErrorType string

const (
	ErrorCondition    ErrorType = "CONDITION_ERROR"
	ErrorExtractValue ErrorType = "EXTRACT_VALUE_ERROR"
	ErrorJobNoRetries ErrorType = "JOB_NO_RETRIES"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobStateCreated JobState = "CREATED"
	JobStateFailed  JobState = "FAILED"
)
