package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
)

func TestGraphBuilderIndexes(t *testing.T) {
	g := ParallelJoinGraph("p")

	join, ok := g.Node("join")
	require.True(t, ok)
	assert.Equal(t, []string{"j1", "j2"}, join.IncomingFlowIDs)

	fork, _ := g.Node("fork")
	assert.Equal(t, []string{"f1", "f2"}, fork.OutgoingFlowIDs)
}

func TestGraphBuilderSubProcess(t *testing.T) {
	g := SubProcessGraph("p")

	assert.Equal(t, "sub", g.ContainerOf("subTask"))
	assert.Equal(t, "p", g.ContainerOf("sub"))

	start, ok := g.StartEvent("sub")
	require.True(t, ok)
	assert.Equal(t, "subStart", start.ID)
}

func TestInclusiveSplitGraphDefault(t *testing.T) {
	g := InclusiveSplitGraph("p")
	f, ok := g.Flow("s3")
	require.True(t, ok)
	assert.True(t, f.IsDefault)
	assert.NotEmpty(t, f.Condition)
}

func TestSelectAndTrace(t *testing.T) {
	records := []ir.Record{
		{RecordType: ir.RecordCommand, ValueType: ir.ValueProcessInstance, Intent: ir.IntentActivateElement,
			Value: ir.ProcessInstanceRecord{ElementID: "start"}},
		{RecordType: ir.RecordEvent, ValueType: ir.ValueProcessInstance, Intent: ir.IntentElementActivating,
			Value: ir.ProcessInstanceRecord{ElementID: "start", ProcessInstanceKey: 1}},
		{RecordType: ir.RecordEvent, ValueType: ir.ValueJob, Intent: ir.IntentCreated, Value: ir.JobRecord{}},
	}

	assert.Equal(t, []string{"start:ELEMENT_ACTIVATING"}, ElementTrace(records))
	assert.Equal(t, 2, Count(records, Events))
	assert.Equal(t, 1, Count(records, WithElement("start"), WithProcessInstance(1)))
	assert.Empty(t, Select(records, Rejections))
}
