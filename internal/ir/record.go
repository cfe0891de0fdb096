package ir

import (
	"encoding/json"
	"fmt"
)

// RecordType distinguishes commands from the events and rejections they
// produce.
type RecordType string

const (
	RecordCommand          RecordType = "COMMAND"
	RecordEvent            RecordType = "EVENT"
	RecordCommandRejection RecordType = "COMMAND_REJECTION"
)

// ValueType names the kind of payload a record carries.
type ValueType string

const (
	ValueDeployment              ValueType = "DEPLOYMENT"
	ValueProcessInstanceCreation ValueType = "PROCESS_INSTANCE_CREATION"
	ValueProcessInstance         ValueType = "PROCESS_INSTANCE"
	ValueJob                     ValueType = "JOB"
	ValueIncident                ValueType = "INCIDENT"
	ValueVariable                ValueType = "VARIABLE"
	ValueVariableDocument        ValueType = "VARIABLE_DOCUMENT"
)

// Intent is the operation a record requests (commands) or reports (events).
// Intents are interpreted together with the record's ValueType.
type Intent string

// Process instance intents.
const (
	IntentActivateElement    Intent = "ACTIVATE_ELEMENT"
	IntentCompleteElement    Intent = "COMPLETE_ELEMENT"
	IntentTerminateElement   Intent = "TERMINATE_ELEMENT"
	IntentCancel             Intent = "CANCEL"
	IntentElementActivating  Intent = "ELEMENT_ACTIVATING"
	IntentElementActivated   Intent = "ELEMENT_ACTIVATED"
	IntentElementCompleting  Intent = "ELEMENT_COMPLETING"
	IntentElementCompleted   Intent = "ELEMENT_COMPLETED"
	IntentElementTerminating Intent = "ELEMENT_TERMINATING"
	IntentElementTerminated  Intent = "ELEMENT_TERMINATED"
	IntentSequenceFlowTaken  Intent = "SEQUENCE_FLOW_TAKEN"
)

// Intents shared by the other value types.
const (
	IntentCreate         Intent = "CREATE"
	IntentCreated        Intent = "CREATED"
	IntentComplete       Intent = "COMPLETE"
	IntentCompleted      Intent = "COMPLETED"
	IntentFail           Intent = "FAIL"
	IntentFailed         Intent = "FAILED"
	IntentUpdateRetries  Intent = "UPDATE_RETRIES"
	IntentRetriesUpdated Intent = "RETRIES_UPDATED"
	IntentCanceled       Intent = "CANCELED"
	IntentResolve        Intent = "RESOLVE"
	IntentResolved       Intent = "RESOLVED"
	IntentUpdate         Intent = "UPDATE"
	IntentUpdated        Intent = "UPDATED"
)

// RejectionType classifies why a command was rejected.
type RejectionType string

const (
	RejectionInvalidArgument RejectionType = "INVALID_ARGUMENT"
	RejectionNotFound        RejectionType = "NOT_FOUND"
	RejectionInvalidState    RejectionType = "INVALID_STATE"
	RejectionAlreadyExists   RejectionType = "ALREADY_EXISTS"
)

// NoPosition marks a record that has no source (an external command).
const NoPosition int64 = -1

// Record is the unit written to the log.
//
// Position is assigned by the log on append. SourceRecordPosition links
// every follow-up record to the command whose processing produced it.
type Record struct {
	Position             int64         `json:"position"`
	SourceRecordPosition int64         `json:"source_record_position"`
	Key                  int64         `json:"key"`
	Timestamp            int64         `json:"timestamp"`
	PartitionID          int32         `json:"partition_id"`
	RecordType           RecordType    `json:"record_type"`
	ValueType            ValueType     `json:"value_type"`
	Intent               Intent        `json:"intent"`
	RejectionType        RejectionType `json:"rejection_type,omitempty"`
	RejectionReason      string        `json:"rejection_reason,omitempty"`
	RequestID            string        `json:"request_id,omitempty"`
	Value                RecordValue   `json:"value"`
}

// RecordValue is implemented by every record payload type.
type RecordValue interface {
	ValueType() ValueType
}

// NewCommand builds an external command with no source position.
func NewCommand(key int64, intent Intent, value RecordValue) Record {
	return Record{
		Position:             NoPosition,
		SourceRecordPosition: NoPosition,
		Key:                  key,
		RecordType:           RecordCommand,
		ValueType:            value.ValueType(),
		Intent:               intent,
		Value:                value,
	}
}

// IsCommand reports whether r is a command.
func (r Record) IsCommand() bool { return r.RecordType == RecordCommand }

// IsEvent reports whether r is an event.
func (r Record) IsEvent() bool { return r.RecordType == RecordEvent }

// IsRejection reports whether r is a command rejection.
func (r Record) IsRejection() bool { return r.RecordType == RecordCommandRejection }

// ProcessInstance returns the value as a process instance record.
func (r Record) ProcessInstance() (ProcessInstanceRecord, bool) {
	v, ok := r.Value.(ProcessInstanceRecord)
	return v, ok
}

// InstanceKey returns the process instance the record belongs to, or NoKey
// for deployments and records that carry no instance yet.
func (r Record) InstanceKey() int64 {
	var key int64
	switch v := r.Value.(type) {
	case ProcessInstanceRecord:
		key = v.ProcessInstanceKey
	case ProcessInstanceCreationRecord:
		key = v.ProcessInstanceKey
	case JobRecord:
		key = v.ProcessInstanceKey
	case IncidentRecord:
		key = v.ProcessInstanceKey
	case VariableRecord:
		key = v.ProcessInstanceKey
	}
	if key <= 0 {
		return NoKey
	}
	return key
}

// String renders the record for logs and CLI text output.
func (r Record) String() string {
	s := fmt.Sprintf("%d %s %s %s key=%d src=%d", r.Position, r.RecordType, r.ValueType, r.Intent, r.Key, r.SourceRecordPosition)
	if pi, ok := r.ProcessInstance(); ok {
		s += fmt.Sprintf(" element=%s", pi.ElementID)
	}
	if r.IsRejection() {
		s += fmt.Sprintf(" rejection=%s %q", r.RejectionType, r.RejectionReason)
	}
	return s
}

type recordJSON struct {
	Position             int64           `json:"position"`
	SourceRecordPosition int64           `json:"source_record_position"`
	Key                  int64           `json:"key"`
	Timestamp            int64           `json:"timestamp"`
	PartitionID          int32           `json:"partition_id"`
	RecordType           RecordType      `json:"record_type"`
	ValueType            ValueType       `json:"value_type"`
	Intent               Intent          `json:"intent"`
	RejectionType        RejectionType   `json:"rejection_type,omitempty"`
	RejectionReason      string          `json:"rejection_reason,omitempty"`
	RequestID            string          `json:"request_id,omitempty"`
	Value                json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes the value into the concrete type named by
// value_type.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := DecodeValue(raw.ValueType, raw.Value)
	if err != nil {
		return fmt.Errorf("record at position %d: %w", raw.Position, err)
	}
	*r = Record{
		Position:             raw.Position,
		SourceRecordPosition: raw.SourceRecordPosition,
		Key:                  raw.Key,
		Timestamp:            raw.Timestamp,
		PartitionID:          raw.PartitionID,
		RecordType:           raw.RecordType,
		ValueType:            raw.ValueType,
		Intent:               raw.Intent,
		RejectionType:        raw.RejectionType,
		RejectionReason:      raw.RejectionReason,
		RequestID:            raw.RequestID,
		Value:                value,
	}
	return nil
}

// DecodeValue decodes a JSON payload of the given value type.
func DecodeValue(vt ValueType, data json.RawMessage) (RecordValue, error) {
	switch vt {
	case ValueDeployment:
		var v DeploymentRecord
		if err := json.Unmarshal(data, &v); err != nil {
			return v, err
		}
		for _, p := range v.Processes {
			if p.Graph != nil {
				p.Graph.Index()
			}
		}
		return v, nil
	case ValueProcessInstanceCreation:
		var v ProcessInstanceCreationRecord
		err := json.Unmarshal(data, &v)
		return v, err
	case ValueProcessInstance:
		var v ProcessInstanceRecord
		err := json.Unmarshal(data, &v)
		return v, err
	case ValueJob:
		var v JobRecord
		err := json.Unmarshal(data, &v)
		return v, err
	case ValueIncident:
		var v IncidentRecord
		err := json.Unmarshal(data, &v)
		return v, err
	case ValueVariable:
		var v VariableRecord
		err := json.Unmarshal(data, &v)
		return v, err
	case ValueVariableDocument:
		var v VariableDocumentRecord
		err := json.Unmarshal(data, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown value type %q", vt)
	}
}
