package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
)

var orderProcess = filepath.Join("testdata", "processes", "order.cue")

func TestScenarios(t *testing.T) {
	paths, err := DiscoverScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "approval.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Instances, second.Instances)
	assert.Len(t, first.Instances, 2)
}

func TestRun_RecordsCarryScenarioRequestIDs(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "ids",
		Description: "request ids",
		Processes:   []string{orderProcess},
		Steps:       []Step{{Action: ActionCreate, Process: "order"}},
	})
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	records := result.Records()
	require.NotEmpty(t, records)
	for _, r := range records {
		assert.NotEmpty(t, r.RequestID)
	}
	assert.Equal(t, ir.ValueDeployment, records[0].ValueType)
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "unexpected",
		Description: "complete a task that has an open job",
		Processes:   []string{orderProcess},
		Steps: []Step{
			{Action: ActionCreate, Process: "order"},
			{Action: ActionCompleteElement, Element: "task"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (complete_element): rejected: INVALID_STATE")
}

func TestRun_ExpectedRejectionNotRaised(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "accepted",
		Description: "a valid create expected to fail",
		Processes:   []string{orderProcess},
		Steps: []Step{
			{Action: ActionCreate, Process: "order", Expect: &ExpectClause{Rejection: "NOT_FOUND"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected rejection NOT_FOUND, but the command was accepted")
}

func TestRun_WrongRejectionType(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "wrong",
		Description: "unknown process is NOT_FOUND",
		Processes:   []string{orderProcess},
		Steps: []Step{
			{Action: ActionCreate, Process: "missing", Expect: &ExpectClause{Rejection: "INVALID_STATE"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected rejection INVALID_STATE, got NOT_FOUND")
}

func TestRun_StepWithoutInstance(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "no-instance",
		Description: "a job step before any create",
		Processes:   []string{orderProcess},
		Steps:       []Step{{Action: ActionCompleteJob, JobType: "ship"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "no process instance has been created")
}

func TestRun_ProcessErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.cue")
	require.NoError(t, os.WriteFile(invalid, []byte(`process: broken: {
	nodes: {
		start: type: "START_EVENT"
		task: type: "SERVICE_TASK"
	}
	flows: [{id: "f1", source: "start", target: "task"}]
}`), 0o644))

	_, err := Run(&Scenario{
		Name:        "invalid",
		Description: "service task without a job type",
		Processes:   []string{invalid},
		Steps:       []Step{{Action: ActionCreate, Process: "broken"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `process "broken"`)

	_, err = Run(&Scenario{
		Name:        "missing",
		Description: "missing process file",
		Processes:   []string{filepath.Join(dir, "missing.cue")},
		Steps:       []Step{{Action: ActionCreate, Process: "order"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load processes")
}

func TestRunContext_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunContext(ctx, &Scenario{
		Name:        "canceled",
		Description: "canceled before deployment",
		Processes:   []string{orderProcess},
		Steps:       []Step{{Action: ActionCreate, Process: "order"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
