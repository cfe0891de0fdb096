package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/testutil"
)

func approvalGraph() *ir.ProcessGraph {
	return testutil.NewGraph("approval").
		Start("start").
		Node("xor", ir.ElementExclusiveGateway).
		End("approved").
		Flow("f0", "start", "xor").
		Conditional("yes", "xor", "approved", "= approved").
		Build()
}

func TestConditionIncidentResolvedAfterVariableFix(t *testing.T) {
	h := newHarness(t)
	h.deploy(approvalGraph())
	piKey := h.create("approval", map[string]any{"approved": false})

	incidents := h.e.State().Incidents()
	require.Len(t, incidents, 1)
	inc := incidents[0]
	assert.Equal(t, ir.ErrorCondition, inc.ErrorType)
	assert.Contains(t, inc.ErrorMessage, `at gateway "xor"`)
	assert.Equal(t, "xor", inc.ElementID)
	assert.Equal(t, piKey, inc.ProcessInstanceKey)

	xor := h.element(piKey, "xor")
	assert.Equal(t, ir.StateActivated, xor.State)
	assert.Equal(t, xor.Key, inc.ElementInstanceKey)
	assert.Equal(t, xor.Key, inc.VariableScopeKey)

	// Completing the gateway by hand is refused while the incident is open.
	rej := h.rejected(ir.NewCommand(xor.Key, ir.IntentCompleteElement, xor.Record()))
	assert.Equal(t, ir.RejectionInvalidState, rej.RejectionType)

	// Resolving without fixing the cause raises a new incident.
	h.accept(ir.NewCommand(inc.Key, ir.IntentResolve, ir.IncidentRecord{}))
	incidents = h.e.State().Incidents()
	require.Len(t, incidents, 1)
	assert.NotEqual(t, inc.Key, incidents[0].Key)
	inc = incidents[0]

	res := h.accept(ir.NewCommand(piKey, ir.IntentUpdate, ir.VariableDocumentRecord{
		ScopeKey:  piKey,
		Variables: h.object(map[string]any{"approved": true}),
	}))
	updated := testutil.Select(res.Records, testutil.Events, testutil.WithValueType(ir.ValueVariable))
	require.Len(t, updated, 1)
	assert.Equal(t, ir.IntentUpdated, updated[0].Intent)

	h.accept(ir.NewCommand(inc.Key, ir.IntentResolve, ir.IncidentRecord{}))
	assert.Empty(t, h.e.State().Incidents())
	assert.Equal(t, 1, h.count(testutil.Events, testutil.WithElement("approved"), testutil.WithIntent(ir.IntentElementCompleted)))
	h.requireCompleted(piKey)
}

func TestConditionEvaluationErrorIsExtractValueIncident(t *testing.T) {
	h := newHarness(t)
	h.deploy(approvalGraph())
	h.create("approval", map[string]any{"approved": "yes"})

	incidents := h.e.State().Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, ir.ErrorExtractValue, incidents[0].ErrorType)
	assert.Contains(t, incidents[0].ErrorMessage, `sequence flow "yes"`)
	assert.Contains(t, incidents[0].ErrorMessage, "boolean")
}

func TestJobWithoutRetriesRaisesIncident(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))
	piKey := h.create("order", nil)
	job := h.job("work")

	// A failure with retries left keeps the job available.
	h.accept(ir.NewCommand(job.Key, ir.IntentFail, ir.JobRecord{Retries: 2, ErrorMessage: "flaky"}))
	job = h.job("work")
	assert.Equal(t, ir.JobStateCreated, job.State)
	assert.Equal(t, int32(2), job.Retries)
	assert.Empty(t, h.e.State().Incidents())

	h.accept(ir.NewCommand(job.Key, ir.IntentFail, ir.JobRecord{Retries: 0}))
	job = h.job("work")
	assert.Equal(t, ir.JobStateFailed, job.State)

	incidents := h.e.State().Incidents()
	require.Len(t, incidents, 1)
	inc := incidents[0]
	assert.Equal(t, ir.ErrorJobNoRetries, inc.ErrorType)
	assert.Equal(t, "No more retries left.", inc.ErrorMessage)
	assert.Equal(t, job.Key, inc.JobKey)

	rej := h.rejected(ir.NewCommand(job.Key, ir.IntentComplete, ir.JobRecord{}))
	assert.Equal(t, ir.RejectionInvalidState, rej.RejectionType)

	rej = h.rejected(ir.NewCommand(inc.Key, ir.IntentResolve, ir.IncidentRecord{}))
	assert.Equal(t, ir.RejectionInvalidState, rej.RejectionType)
	assert.Contains(t, rej.RejectionReason, "retries")

	rej = h.rejected(ir.NewCommand(job.Key, ir.IntentUpdateRetries, ir.JobRecord{Retries: 0}))
	assert.Equal(t, ir.RejectionInvalidArgument, rej.RejectionType)

	h.accept(ir.NewCommand(job.Key, ir.IntentUpdateRetries, ir.JobRecord{Retries: 1}))
	h.accept(ir.NewCommand(inc.Key, ir.IntentResolve, ir.IncidentRecord{}))

	job = h.job("work")
	assert.Equal(t, ir.JobStateCreated, job.State)
	assert.Equal(t, int32(1), job.Retries)
	assert.Equal(t, 1, h.count(testutil.Events, testutil.WithValueType(ir.ValueJob), testutil.WithIntent(ir.IntentCreated)),
		"resolving a job incident reuses the job")

	h.completeJob("work", nil)
	h.requireCompleted(piKey)
}

func TestJobFailMessageBecomesIncidentMessage(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))
	h.create("order", nil)
	job := h.job("work")

	h.accept(ir.NewCommand(job.Key, ir.IntentFail, ir.JobRecord{ErrorMessage: "connection refused"}))

	incidents := h.e.State().Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, "connection refused", incidents[0].ErrorMessage)
}

func TestJobRejections(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))
	piKey := h.create("order", nil)

	for _, intent := range []ir.Intent{ir.IntentComplete, ir.IntentFail, ir.IntentUpdateRetries} {
		rej := h.rejected(ir.NewCommand(999, intent, ir.JobRecord{Retries: 1}))
		assert.Equal(t, ir.RejectionNotFound, rej.RejectionType, "intent %s", intent)
	}

	task := h.element(piKey, "task")
	rej := h.rejected(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.JobRecord{Type: "work", ElementInstanceKey: task.Key}))
	assert.Equal(t, ir.RejectionAlreadyExists, rej.RejectionType)

	rej = h.rejected(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.JobRecord{Type: "work", ElementInstanceKey: piKey}))
	assert.Equal(t, ir.RejectionInvalidState, rej.RejectionType)

	rej = h.rejected(ir.NewCommand(1, ir.IntentComplete, ir.IncidentRecord{}))
	assert.Equal(t, ir.RejectionInvalidArgument, rej.RejectionType)
}

func TestIncidentRejections(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))
	piKey := h.create("order", nil)

	rej := h.rejected(ir.NewCommand(999, ir.IntentResolve, ir.IncidentRecord{}))
	assert.Equal(t, ir.RejectionNotFound, rej.RejectionType)

	start := h.element(piKey, "start")
	rej = h.rejected(ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.IncidentRecord{
		ErrorType:          ir.ErrorCondition,
		ElementInstanceKey: start.Key,
	}))
	assert.Equal(t, ir.RejectionInvalidState, rej.RejectionType)
}

func TestCancelResolvesIncidents(t *testing.T) {
	h := newHarness(t)
	h.deploy(approvalGraph())
	piKey := h.create("approval", map[string]any{"approved": false})
	require.Len(t, h.e.State().Incidents(), 1)

	res := h.accept(ir.NewCommand(piKey, ir.IntentCancel, ir.ProcessInstanceRecord{}))

	assert.Equal(t, 1, testutil.Count(res.Records, testutil.Events,
		testutil.WithValueType(ir.ValueIncident), testutil.WithIntent(ir.IntentResolved)))
	assert.Empty(t, h.e.State().Incidents())
	assert.Empty(t, h.e.State().ElementInstances(piKey))
}

func TestVariableDocumentUpdate(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.SubProcessGraph("with-sub"))
	piKey := h.create("with-sub", map[string]any{"shared": 1})
	sub := h.element(piKey, "sub")

	// Local writes stay in the scope.
	h.accept(ir.NewCommand(sub.Key, ir.IntentUpdate, ir.VariableDocumentRecord{
		ScopeKey:  sub.Key,
		Local:     true,
		Variables: h.object(map[string]any{"inner": "x"}),
	}))
	v, ok := h.e.State().Variable(sub.Key, "inner")
	require.True(t, ok)
	assert.Equal(t, ir.IRString("x"), v)

	// Propagated writes go to the defining scope, or to the process.
	res := h.accept(ir.NewCommand(sub.Key, ir.IntentUpdate, ir.VariableDocumentRecord{
		ScopeKey:  sub.Key,
		Variables: h.object(map[string]any{"inner": "y", "shared": 2, "fresh": true}),
	}))
	vars := testutil.Select(res.Records, testutil.Events, testutil.WithValueType(ir.ValueVariable))
	require.Len(t, vars, 3)
	var names []string
	scopes := map[string]int64{}
	for _, r := range vars {
		rec := r.Value.(ir.VariableRecord)
		names = append(names, rec.Name)
		scopes[rec.Name] = rec.ScopeKey
	}
	assert.Equal(t, []string{"fresh", "inner", "shared"}, names, "written in name order")
	assert.Equal(t, map[string]int64{"fresh": piKey, "inner": sub.Key, "shared": piKey}, scopes)

	// Unchanged values produce no variable events.
	res = h.accept(ir.NewCommand(piKey, ir.IntentUpdate, ir.VariableDocumentRecord{
		ScopeKey:  piKey,
		Variables: h.object(map[string]any{"shared": 2}),
	}))
	assert.Zero(t, testutil.Count(res.Records, testutil.WithValueType(ir.ValueVariable)))
	assert.Equal(t, 1, testutil.Count(res.Records, testutil.Events, testutil.WithValueType(ir.ValueVariableDocument)))

	task := h.element(piKey, "subTask")
	visible := h.e.State().VisibleVariables(task.Key)
	assert.Equal(t, ir.IRString("y"), visible["inner"])
	assert.Equal(t, ir.IRInt(2), visible["shared"])
}

func TestVariableDocumentRejections(t *testing.T) {
	h := newHarness(t)
	h.deploy(testutil.LinearGraph("order", "work"))
	piKey := h.create("order", nil)

	rej := h.rejected(ir.NewCommand(999, ir.IntentUpdate, ir.VariableDocumentRecord{ScopeKey: 999}))
	assert.Equal(t, ir.RejectionNotFound, rej.RejectionType)

	start := h.element(piKey, "start")
	rej = h.rejected(ir.NewCommand(start.Key, ir.IntentUpdate, ir.VariableDocumentRecord{ScopeKey: start.Key}))
	assert.Equal(t, ir.RejectionInvalidState, rej.RejectionType)
}
