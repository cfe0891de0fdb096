package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONDecodesConcreteValue(t *testing.T) {
	rec := Record{
		Position:             12,
		SourceRecordPosition: 10,
		Key:                  EncodeKey(1, 5),
		RecordType:           RecordEvent,
		ValueType:            ValueVariable,
		Intent:               IntentCreated,
		Value: VariableRecord{
			Name:     "items",
			Value:    IRArray{IRString("a"), IRInt(2)},
			ScopeKey: EncodeKey(1, 1),
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestRecordJSONUnknownValueType(t *testing.T) {
	var decoded Record
	err := json.Unmarshal([]byte(`{"position":1,"value_type":"TIMER","value":{}}`), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown value type")
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand(NoKey, IntentCreate, ProcessInstanceCreationRecord{BpmnProcessID: "p", Version: LatestVersion})
	assert.True(t, cmd.IsCommand())
	assert.Equal(t, ValueProcessInstanceCreation, cmd.ValueType)
	assert.Equal(t, NoPosition, cmd.SourceRecordPosition)
}

func TestStateForIntent(t *testing.T) {
	s, ok := StateForIntent(IntentElementTerminating)
	require.True(t, ok)
	assert.Equal(t, StateTerminating, s)
	assert.False(t, s.IsTerminal())

	_, ok = StateForIntent(IntentSequenceFlowTaken)
	assert.False(t, ok)
}

func TestKeyEncoding(t *testing.T) {
	key := EncodeKey(3, 42)
	assert.Equal(t, int32(3), PartitionOf(key))
	assert.Equal(t, int64(42), KeyCounter(key))
	assert.Equal(t, int32(0), PartitionOf(NoKey))
}
