package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/tokenflow/internal/ir"
)

// Loaded is the result of loading process definitions from CUE sources.
type Loaded struct {
	Graphs    []*ir.ProcessGraph
	FileCount int
}

// Load reads process definitions from a CUE file or a directory holding a
// CUE package. Every field below the top-level "process" struct becomes one
// graph, in declaration order.
//
// Compile errors are returned with their CUE position; validation is left to
// ValidateGraph.
func Load(path string) (*Loaded, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		value cue.Value
		count int
	)
	ctx := cuecontext.New()
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no CUE files found in %s", path)
		}
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("no CUE instances loaded from %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, formatCUEError(err)
		}
		value = ctx.BuildInstance(instances[0])
		count = len(files)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
		count = 1
	}
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	graphs, err := CompileProcesses(value)
	if err != nil {
		return nil, err
	}
	return &Loaded{Graphs: graphs, FileCount: count}, nil
}

// LoadAll loads several sources and concatenates their graphs.
func LoadAll(paths ...string) ([]*ir.ProcessGraph, error) {
	var graphs []*ir.ProcessGraph
	for _, p := range paths {
		loaded, err := Load(p)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, loaded.Graphs...)
	}
	return graphs, nil
}

// CompileProcesses compiles every field of the top-level "process" struct.
func CompileProcesses(v cue.Value) ([]*ir.ProcessGraph, error) {
	processes := v.LookupPath(cue.ParsePath("process"))
	if !processes.Exists() {
		return nil, &CompileError{Field: "process", Message: "no process definitions found", Pos: v.Pos()}
	}
	iter, err := processes.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var graphs []*ir.ProcessGraph
	for iter.Next() {
		g, err := CompileProcess(iter.Value())
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	if len(graphs) == 0 {
		return nil, &CompileError{Field: "process", Message: "no process definitions found", Pos: processes.Pos()}
	}
	return graphs, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
