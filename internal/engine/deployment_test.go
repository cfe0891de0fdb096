package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/testutil"
)

func TestDeployAssignsVersions(t *testing.T) {
	h := newHarness(t)

	first := h.deploy(testutil.LinearGraph("order", "work"), testutil.ParallelJoinGraph("parallel"))
	require.Len(t, first.Processes, 2)
	order := first.Processes[0]
	assert.Equal(t, "order", order.BpmnProcessID)
	assert.Equal(t, int32(1), order.Version)
	assert.NotEmpty(t, order.Checksum)
	assert.Positive(t, order.ProcessDefinitionKey)
	assert.NotEqual(t, order.ProcessDefinitionKey, first.Processes[1].ProcessDefinitionKey)

	// The same graph again is not a new version.
	again := h.deploy(testutil.LinearGraph("order", "work"))
	assert.Equal(t, order.ProcessDefinitionKey, again.Processes[0].ProcessDefinitionKey)
	assert.Equal(t, int32(1), again.Processes[0].Version)

	changed := h.deploy(testutil.LinearGraph("order", "other-work"))
	assert.Equal(t, int32(2), changed.Processes[0].Version)
	assert.NotEqual(t, order.Checksum, changed.Processes[0].Checksum)

	latest, ok := h.e.State().LatestDefinition("order")
	require.True(t, ok)
	assert.Equal(t, int32(2), latest.Version)
	assert.Len(t, h.e.State().Definitions(), 3)
}

func TestDeployRejections(t *testing.T) {
	h := newHarness(t)

	rej := h.rejected(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.DeploymentRecord{}))
	assert.Equal(t, ir.RejectionInvalidArgument, rej.RejectionType)

	rej = h.rejected(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.DeploymentRecord{
		Processes: []ir.ProcessMetadata{{BpmnProcessID: "ghost"}},
	}))
	assert.Equal(t, ir.RejectionInvalidArgument, rej.RejectionType)

	rej = h.rejected(deployCommand(testutil.LinearGraph("order", "a"), testutil.LinearGraph("order", "b")))
	assert.Equal(t, ir.RejectionInvalidArgument, rej.RejectionType)
	assert.Contains(t, rej.RejectionReason, "deployed twice")

	invalid := testutil.NewGraph("broken").
		Start("start").
		ServiceTask("task", "").
		Flow("f1", "start", "task").
		Build()
	rej = h.rejected(deployCommand(invalid))
	assert.Equal(t, ir.RejectionInvalidArgument, rej.RejectionType)
	assert.Contains(t, rej.RejectionReason, "E207")

	assert.Empty(t, h.e.State().Definitions())
}

func TestCreateInstanceByVersionAndKey(t *testing.T) {
	h := newHarness(t)
	v1 := h.deploy(testutil.LinearGraph("order", "v1-work")).Processes[0]
	h.deploy(testutil.LinearGraph("order", "v2-work"))

	h.create("order", nil)
	assert.Len(t, h.e.State().Jobs("v2-work"), 1, "latest version by default")

	h.accept(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.ProcessInstanceCreationRecord{BpmnProcessID: "order", Version: 1}))
	assert.Len(t, h.e.State().Jobs("v1-work"), 1)

	h.accept(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.ProcessInstanceCreationRecord{ProcessDefinitionKey: v1.ProcessDefinitionKey}))
	assert.Len(t, h.e.State().Jobs("v1-work"), 2)
}

func TestCreateInstanceRejections(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))

	tests := []struct {
		name string
		req  ir.ProcessInstanceCreationRecord
		want ir.RejectionType
	}{
		{"unknown process", ir.ProcessInstanceCreationRecord{BpmnProcessID: "missing"}, ir.RejectionNotFound},
		{"unknown version", ir.ProcessInstanceCreationRecord{BpmnProcessID: "order", Version: 9}, ir.RejectionNotFound},
		{"unknown key", ir.ProcessInstanceCreationRecord{ProcessDefinitionKey: 123456}, ir.RejectionNotFound},
		{"no reference", ir.ProcessInstanceCreationRecord{}, ir.RejectionInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := h.rejected(ir.NewCommand(ir.NoKey, ir.IntentCreate, tt.req))
			assert.Equal(t, tt.want, rej.RejectionType)
		})
	}
	assert.Empty(t, h.e.State().ProcessInstanceKeys())
}

func TestCreateInstanceWritesVariablesInOrder(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))

	res := h.accept(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.ProcessInstanceCreationRecord{
		BpmnProcessID: "order",
		Variables:     h.object(map[string]any{"zeta": 1, "alpha": "a", "mid": []any{1, 2}}),
	}))

	var names []string
	for _, r := range testutil.Select(res.Records, testutil.Events, testutil.WithValueType(ir.ValueVariable)) {
		names = append(names, r.Value.(ir.VariableRecord).Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}
