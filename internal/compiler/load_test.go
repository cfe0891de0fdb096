package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderCUE = `
process: order: {
	nodes: {
		start: type: "START_EVENT"
		ship: {type: "SERVICE_TASK", job_type: "ship"}
		done: type: "END_EVENT"
	}
	flows: [
		{id: "f1", source: "start", target: "ship"},
		{id: "f2", source: "ship", target: "done"},
	]
}
process: empty: {
	nodes: {
		start: type: "START_EVENT"
		done: type: "END_EVENT"
	}
	flows: [{id: "f1", source: "start", target: "done"}]
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "order.cue", orderCUE)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.FileCount)
	require.Len(t, loaded.Graphs, 2)
	assert.Equal(t, "order", loaded.Graphs[0].ID)
	assert.Equal(t, "empty", loaded.Graphs[1].ID)
	assert.Empty(t, ValidateGraph(loaded.Graphs[0]).Errors())
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package processes\n"+orderCUE)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.FileCount)
	assert.Len(t, loaded.Graphs, 2)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.cue", orderCUE)
	b := writeFile(t, dir, "b.cue", `process: other: {nodes: {s: type: "START_EVENT"}}`)

	graphs, err := LoadAll(a, b)
	require.NoError(t, err)
	require.Len(t, graphs, 3)
	assert.Equal(t, "other", graphs[2].ID)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(dir)
	assert.ErrorContains(t, err, "no CUE files")

	_, err = Load(writeFile(t, dir, "none.cue", `other: 1`))
	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "process", compileErr.Field)

	_, err = Load(writeFile(t, dir, "syntax.cue", `process: {`))
	require.Error(t, err)

	_, err = Load(writeFile(t, dir, "notype.cue", `process: p: nodes: s: name: "x"`))
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "nodes.s.type", compileErr.Field)
}
