package ir

import (
	"encoding/json"
	"fmt"
)

// ProcessMetadata describes one deployed process definition version.
type ProcessMetadata struct {
	BpmnProcessID        string        `json:"bpmn_process_id"`
	Version              int32         `json:"version"`
	ProcessDefinitionKey int64         `json:"process_definition_key"`
	Checksum             string        `json:"checksum"`
	Graph                *ProcessGraph `json:"graph"`
}

// DeploymentRecord carries compiled graphs. The command holds graphs only;
// the event adds keys, versions and checksums.
type DeploymentRecord struct {
	Processes []ProcessMetadata `json:"processes"`
}

func (DeploymentRecord) ValueType() ValueType { return ValueDeployment }

// LatestVersion asks for the newest deployed version of a process.
const LatestVersion int32 = -1

// ProcessInstanceCreationRecord requests and reports a new process instance.
type ProcessInstanceCreationRecord struct {
	BpmnProcessID        string   `json:"bpmn_process_id"`
	Version              int32    `json:"version"`
	ProcessDefinitionKey int64    `json:"process_definition_key"`
	ProcessInstanceKey   int64    `json:"process_instance_key"`
	Variables            IRObject `json:"variables,omitempty"`
}

func (ProcessInstanceCreationRecord) ValueType() ValueType { return ValueProcessInstanceCreation }

// ProcessInstanceRecord describes one element instance (or a taken sequence
// flow, where ElementID is the flow id).
type ProcessInstanceRecord struct {
	BpmnProcessID        string      `json:"bpmn_process_id"`
	Version              int32       `json:"version"`
	ProcessDefinitionKey int64       `json:"process_definition_key"`
	ProcessInstanceKey   int64       `json:"process_instance_key"`
	ElementID            string      `json:"element_id"`
	BpmnElementType      ElementType `json:"bpmn_element_type"`
	FlowScopeKey         int64       `json:"flow_scope_key"`
	SourceFlowID         string      `json:"source_flow_id,omitempty"`
}

func (ProcessInstanceRecord) ValueType() ValueType { return ValueProcessInstance }

// JobRecord describes a unit of external work for a service task.
type JobRecord struct {
	Type                     string            `json:"type"`
	Retries                  int32             `json:"retries"`
	ErrorMessage             string            `json:"error_message,omitempty"`
	CustomHeaders            map[string]string `json:"custom_headers,omitempty"`
	Variables                IRObject          `json:"variables,omitempty"`
	ElementID                string            `json:"element_id"`
	ElementInstanceKey       int64             `json:"element_instance_key"`
	ProcessInstanceKey       int64             `json:"process_instance_key"`
	BpmnProcessID            string            `json:"bpmn_process_id"`
	ProcessDefinitionVersion int32             `json:"process_definition_version"`
	ProcessDefinitionKey     int64             `json:"process_definition_key"`
}

func (JobRecord) ValueType() ValueType { return ValueJob }

// IncidentRecord describes a runtime failure blocking an element instance.
type IncidentRecord struct {
	ErrorType            ErrorType `json:"error_type"`
	ErrorMessage         string    `json:"error_message"`
	BpmnProcessID        string    `json:"bpmn_process_id"`
	ProcessDefinitionKey int64     `json:"process_definition_key"`
	ProcessInstanceKey   int64     `json:"process_instance_key"`
	ElementID            string    `json:"element_id"`
	ElementInstanceKey   int64     `json:"element_instance_key"`
	JobKey               int64     `json:"job_key,omitempty"`
	VariableScopeKey     int64     `json:"variable_scope_key"`
}

func (IncidentRecord) ValueType() ValueType { return ValueIncident }

// VariableRecord reports a single variable written to a scope.
type VariableRecord struct {
	Name                 string  `json:"name"`
	Value                IRValue `json:"value"`
	ScopeKey             int64   `json:"scope_key"`
	ProcessInstanceKey   int64   `json:"process_instance_key"`
	ProcessDefinitionKey int64   `json:"process_definition_key"`
	BpmnProcessID        string  `json:"bpmn_process_id"`
}

func (VariableRecord) ValueType() ValueType { return ValueVariable }

// UnmarshalJSON decodes Value through DecodeIRValue.
func (v *VariableRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name                 string          `json:"name"`
		Value                json.RawMessage `json:"value"`
		ScopeKey             int64           `json:"scope_key"`
		ProcessInstanceKey   int64           `json:"process_instance_key"`
		ProcessDefinitionKey int64           `json:"process_definition_key"`
		BpmnProcessID        string          `json:"bpmn_process_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var value IRValue = IRNull{}
	if len(raw.Value) > 0 {
		decoded, err := DecodeIRValue(raw.Value)
		if err != nil {
			return fmt.Errorf("variable %q: %w", raw.Name, err)
		}
		value = decoded
	}
	*v = VariableRecord{
		Name:                 raw.Name,
		Value:                value,
		ScopeKey:             raw.ScopeKey,
		ProcessInstanceKey:   raw.ProcessInstanceKey,
		ProcessDefinitionKey: raw.ProcessDefinitionKey,
		BpmnProcessID:        raw.BpmnProcessID,
	}
	return nil
}

// VariableDocumentRecord merges a document of variables into a scope. With
// Local unset, each variable is written to the nearest enclosing scope that
// already defines it, or to the process scope.
type VariableDocumentRecord struct {
	ScopeKey  int64    `json:"scope_key"`
	Local     bool     `json:"local,omitempty"`
	Variables IRObject `json:"variables"`
}

func (VariableDocumentRecord) ValueType() ValueType { return ValueVariableDocument }
