package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/harness"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// failingScenario writes a scenario whose assertion cannot hold: the order
// instance waits for its job.
func failingScenario(t *testing.T) string {
	t.Helper()
	order, err := filepath.Abs(orderCUE)
	require.NoError(t, err)

	content := fmt.Sprintf(`name: never-completes
description: The job is never completed.
processes: [%q]
steps:
  - action: create
    process: order
assertions:
  - type: instance_completed
`, order)
	path := filepath.Join(t.TempDir(), "never-completes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommandPasses(t *testing.T) {
	out, err := runTestCmd(t, "text", scenariosDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ "+filepath.Join(scenariosDir, "linear-order.yaml"))
	assert.Contains(t, out, "7 passed, 0 failed, 7 total")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := runTestCmd(t, "json", scenariosDir, "--parallel", "2")
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   harness.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, resp.Data.Total)
	assert.Equal(t, 7, resp.Data.Passed)
	assert.Empty(t, resp.Data.Failures)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runTestCmd(t, "text", scenariosDir, "--filter", "linear-*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	out, err = runTestCmd(t, "text", scenariosDir, "--filter", "nothing-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = runTestCmd(t, "text", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailure(t *testing.T) {
	path := failingScenario(t)

	out, err := runTestCmd(t, "text", path, filepath.Join(scenariosDir, "linear-order.yaml"))
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 scenario(s) failed")
	assert.Contains(t, out, "✗ "+path)
	assert.Contains(t, out, "instance_completed")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := runTestCmd(t, "text", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}
