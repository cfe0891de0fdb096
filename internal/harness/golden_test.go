package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"linear-order", "subprocess"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "golden files are named after the scenario")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "linear-order.yaml"))
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	AssertGolden(t, "linear-order", result)
}

func TestGoldenBytes(t *testing.T) {
	result := NewResult()
	assert.Nil(t, goldenBytes(result))

	result.Trace = []TraceEvent{
		{RecordType: "COMMAND", ValueType: "PROCESS_INSTANCE_CREATION", Intent: "CREATE"},
		{RecordType: "EVENT", ValueType: "PROCESS_INSTANCE", Intent: "ELEMENT_ACTIVATING", Element: "p"},
		{RecordType: "EVENT", ValueType: "JOB", Intent: "CREATED"},
		{RecordType: "EVENT", ValueType: "PROCESS_INSTANCE", Intent: "ELEMENT_ACTIVATED", Element: "p"},
	}
	assert.Equal(t, "p:ELEMENT_ACTIVATING\np:ELEMENT_ACTIVATED\n", string(goldenBytes(result)))
}
