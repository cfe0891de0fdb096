package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Processes lists CUE files or directories holding the process
	// definitions to deploy. Paths are relative to the scenario file.
	Processes []string `yaml:"processes"`

	// Steps are executed in order, each as one external command.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final log and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one external command.
//
// Instance-scoped actions address the instance named by Instance, or the
// most recently created one when Instance is empty.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Process and Version select the definition for create.
	Process string `yaml:"process,omitempty"`
	Version int32  `yaml:"version,omitempty"`

	// As names the instance created by this step.
	As string `yaml:"as,omitempty"`

	// Instance names a previously created instance.
	Instance string `yaml:"instance,omitempty"`

	// JobType selects the open job of the instance for job actions.
	JobType string `yaml:"job_type,omitempty"`

	// Element selects an element instance (complete_element, set_variables)
	// or the incident's element (resolve_incident).
	Element string `yaml:"element,omitempty"`

	// Variables for create, complete_job and set_variables.
	Variables map[string]any `yaml:"variables,omitempty"`

	// Local writes set_variables into the addressed scope only.
	Local bool `yaml:"local,omitempty"`

	// Retries for fail_job and update_retries.
	Retries int32 `yaml:"retries,omitempty"`

	// Message is the error message of fail_job.
	Message string `yaml:"message,omitempty"`

	// Expect optionally asserts the outcome of the step. Without it the
	// step must be accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Rejection is the expected rejection type, e.g. "NOT_FOUND".
	// Empty means the command must be accepted.
	Rejection string `yaml:"rejection,omitempty"`
}

// Step actions.
const (
	ActionCreate          = "create"
	ActionCompleteJob     = "complete_job"
	ActionFailJob         = "fail_job"
	ActionUpdateRetries   = "update_retries"
	ActionResolveIncident = "resolve_incident"
	ActionSetVariables    = "set_variables"
	ActionCompleteElement = "complete_element"
	ActionCancel          = "cancel"
)

var validActions = map[string]bool{
	ActionCreate:          true,
	ActionCompleteJob:     true,
	ActionFailJob:         true,
	ActionUpdateRetries:   true,
	ActionResolveIncident: true,
	ActionSetVariables:    true,
	ActionCompleteElement: true,
	ActionCancel:          true,
}

// Assertion validates the record log or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Instance names the instance the assertion is about. Empty means the
	// most recently created one.
	Instance string `yaml:"instance,omitempty"`

	// Element and Intent select process instance events
	// (trace_contains, trace_count) or state entries.
	Element string `yaml:"element,omitempty"`
	Intent  string `yaml:"intent,omitempty"`

	// State is the expected element state (element_active); it defaults to
	// ACTIVATED.
	State string `yaml:"state,omitempty"`

	// Events is the expected subsequence of "element:INTENT" lines
	// (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of matches (trace_count, job_open,
	// incident_open).
	Count *int `yaml:"count,omitempty"`

	// JobType selects jobs (job_open).
	JobType string `yaml:"job_type,omitempty"`

	// ErrorType filters incidents (incident_open).
	ErrorType string `yaml:"error_type,omitempty"`

	// Name and Value describe a variable (variable).
	Name  string `yaml:"name,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains     = "trace_contains"
	AssertTraceOrder        = "trace_order"
	AssertTraceCount        = "trace_count"
	AssertInstanceCompleted = "instance_completed"
	AssertElementActive     = "element_active"
	AssertJobOpen           = "job_open"
	AssertIncidentOpen      = "incident_open"
	AssertVariable          = "variable"
)

var validAssertions = map[string]bool{
	AssertTraceContains:     true,
	AssertTraceOrder:        true,
	AssertTraceCount:        true,
	AssertInstanceCompleted: true,
	AssertElementActive:     true,
	AssertJobOpen:           true,
	AssertIncidentOpen:      true,
	AssertVariable:          true,
}

// LoadScenario reads and parses a scenario YAML file. Process paths are
// resolved relative to the scenario file.
//
// Unknown fields are rejected so that typos like "assertion:" fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Processes {
		if !filepath.IsAbs(p) {
			scenario.Processes[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Processes) == 0 {
		return fmt.Errorf("processes list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !validActions[step.Action] {
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
		switch step.Action {
		case ActionCreate:
			if step.Process == "" {
				return fmt.Errorf("step %d: create requires process", i)
			}
		case ActionCompleteJob, ActionFailJob, ActionUpdateRetries:
			if step.JobType == "" {
				return fmt.Errorf("step %d: %s requires job_type", i, step.Action)
			}
		case ActionCompleteElement:
			if step.Element == "" {
				return fmt.Errorf("step %d: complete_element requires element", i)
			}
		}
	}

	for i, a := range s.Assertions {
		if !validAssertions[a.Type] {
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
		switch a.Type {
		case AssertTraceContains, AssertElementActive:
			if a.Element == "" {
				return fmt.Errorf("assertion %d: %s requires element", i, a.Type)
			}
		case AssertTraceOrder:
			if len(a.Events) == 0 {
				return fmt.Errorf("assertion %d: trace_order requires events", i)
			}
		case AssertTraceCount:
			if a.Element == "" || a.Count == nil {
				return fmt.Errorf("assertion %d: trace_count requires element and count", i)
			}
		case AssertJobOpen:
			if a.JobType == "" {
				return fmt.Errorf("assertion %d: job_open requires job_type", i)
			}
		case AssertVariable:
			if a.Name == "" {
				return fmt.Errorf("assertion %d: variable requires name", i)
			}
		}
	}
	return nil
}
