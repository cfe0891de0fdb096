package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var processesDir = filepath.Join("..", "harness", "testdata", "processes")

const defaultOnStartEvent = `
package test

process: bad: {
	nodes: {
		start: type: "START_EVENT"
		end: type: "END_EVENT"
	}
	flows: [{id: "f1", source: "start", target: "end", default: true}]
}
`

func writeCUE(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runValidateCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidProcesses(t *testing.T) {
	out, err := runValidateCmd(t, "text", processesDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ order")
	assert.Contains(t, out, "✓ approval")
	assert.Contains(t, out, "All processes valid")
}

func TestValidateValidProcessesJSON(t *testing.T) {
	out, err := runValidateCmd(t, "json", filepath.Join(processesDir, "order.cue"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Files)
	require.Len(t, resp.Data.Processes, 1)
	assert.Equal(t, "order", resp.Data.Processes[0].ID)
	assert.Empty(t, resp.Data.Processes[0].Errors)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := runValidateCmd(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := runValidateCmd(t, "text", t.TempDir())
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateNoProcessDefinitions(t *testing.T) {
	path := writeCUE(t, "empty.cue", "package test\n\nfoo: 1\n")

	out, err := runValidateCmd(t, "json", path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoProcess, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no process definitions found")
}

func TestValidateInvalidProcess(t *testing.T) {
	path := writeCUE(t, "bad.cue", defaultOnStartEvent)

	out, err := runValidateCmd(t, "text", path)
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, "E205")
	assert.NotContains(t, out, "All processes valid")
}

func TestValidateInvalidProcessJSON(t *testing.T) {
	path := writeCUE(t, "bad.cue", defaultOnStartEvent)

	out, err := runValidateCmd(t, "json", path)
	require.Error(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Processes, 1)
	require.Len(t, resp.Data.Processes[0].Errors, 1)
	assert.Equal(t, "E205", resp.Data.Processes[0].Errors[0].Code)
	assert.Equal(t, "flows[0]", resp.Data.Processes[0].Errors[0].Field)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"process", ErrCodeNoProcess},
		{"id", ErrCodeProcessID},
		{"cue", ErrCodeCUESyntax},
		{"nodes", ErrCodeNodes},
		{"nodes.task.type", ErrCodeNodes},
		{"flows[2].source", ErrCodeFlows},
		{"other", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())
}
