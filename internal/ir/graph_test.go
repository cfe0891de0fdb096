package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinGraph() *ProcessGraph {
	return (&ProcessGraph{
		ID: "proc",
		Nodes: []Node{
			{ID: "start", Type: ElementStartEvent},
			{ID: "fork", Type: ElementParallelGateway},
			{ID: "a", Type: ElementServiceTask, JobType: "a"},
			{ID: "b", Type: ElementServiceTask, JobType: "b"},
			{ID: "join", Type: ElementParallelGateway},
			{ID: "sub", Type: ElementSubProcess},
			{ID: "sub_start", Type: ElementStartEvent, ParentID: "sub"},
		},
		Flows: []SequenceFlow{
			{ID: "f1", SourceID: "start", TargetID: "fork"},
			{ID: "f2", SourceID: "fork", TargetID: "a"},
			{ID: "f3", SourceID: "fork", TargetID: "b"},
			{ID: "f4", SourceID: "a", TargetID: "join"},
			{ID: "f5", SourceID: "b", TargetID: "join"},
		},
	}).Index()
}

func TestProcessGraphIndex(t *testing.T) {
	g := joinGraph()

	join, ok := g.Node("join")
	require.True(t, ok)
	assert.Equal(t, []string{"f4", "f5"}, join.IncomingFlowIDs)

	fork, ok := g.Node("fork")
	require.True(t, ok)
	assert.Equal(t, []string{"f2", "f3"}, fork.OutgoingFlowIDs)

	out := g.OutgoingFlows("fork")
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].TargetID)
	assert.Equal(t, "b", out[1].TargetID)

	_, ok = g.Node("missing")
	assert.False(t, ok)
}

func TestProcessGraphRootAndContainers(t *testing.T) {
	g := joinGraph()

	root, ok := g.Node("proc")
	require.True(t, ok)
	assert.Equal(t, ElementProcess, root.Type)

	start, ok := g.StartEvent("proc")
	require.True(t, ok)
	assert.Equal(t, "start", start.ID)

	subStart, ok := g.StartEvent("sub")
	require.True(t, ok)
	assert.Equal(t, "sub_start", subStart.ID)

	assert.Equal(t, "sub", g.ContainerOf("sub_start"))
	assert.Equal(t, "proc", g.ContainerOf("fork"))
	assert.Len(t, g.Children("proc"), 6)
}

func TestProcessGraphIndexAfterDecode(t *testing.T) {
	data, err := json.Marshal(joinGraph())
	require.NoError(t, err)

	var decoded ProcessGraph
	require.NoError(t, json.Unmarshal(data, &decoded))

	join, ok := decoded.Node("join")
	require.True(t, ok)
	assert.Equal(t, []string{"f4", "f5"}, join.IncomingFlowIDs, "incoming flows are derived, never decoded")
}

func TestElementTypePredicates(t *testing.T) {
	assert.True(t, ElementInclusiveGateway.IsSynchronizing())
	assert.True(t, ElementParallelGateway.IsSynchronizing())
	assert.False(t, ElementExclusiveGateway.IsSynchronizing())
	assert.True(t, ElementExclusiveGateway.IsGateway())
	assert.False(t, ElementServiceTask.IsGateway())
	assert.True(t, ElementSubProcess.IsContainer())
	assert.True(t, ElementProcess.IsContainer())
}

func TestGraphChecksumStable(t *testing.T) {
	a, err := GraphChecksum(joinGraph())
	require.NoError(t, err)
	b, err := GraphChecksum(joinGraph())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := joinGraph()
	changed.Flows[0].Condition = "= x > 1"
	c, err := GraphChecksum(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
