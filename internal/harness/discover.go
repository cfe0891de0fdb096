package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ScenarioNotFoundError is returned when a requested scenario path doesn't
// exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// DiscoverScenarios expands paths into scenario files. A file is taken as
// is; a directory contributes every *.yaml and *.yml file below it. The
// result is sorted and free of duplicates.
func DiscoverScenarios(paths ...string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Summary contains the results of running a set of scenarios.
type Summary struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents one scenario that did not pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// RunAll loads and runs every scenario file, at most parallel at a time.
// Scenarios share nothing, so their order only affects the order of
// Failures, which follows paths.
//
// Load and execution errors count as failures; RunAll itself only fails
// when ctx is canceled.
func RunAll(ctx context.Context, paths []string, parallel int) (*Summary, error) {
	failures := make([]*ScenarioFailure, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			failures[i] = runOne(ctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(paths)}
	for _, f := range failures {
		if f == nil {
			summary.Passed++
			continue
		}
		summary.Failed++
		summary.Failures = append(summary.Failures, *f)
	}
	return summary, nil
}

func runOne(ctx context.Context, path string) *ScenarioFailure {
	scenario, err := LoadScenario(path)
	if err != nil {
		return &ScenarioFailure{Path: path, Errors: []string{err.Error()}}
	}
	result, err := RunContext(ctx, scenario)
	if err != nil {
		return &ScenarioFailure{Path: path, Name: scenario.Name, Errors: []string{err.Error()}}
	}
	if !result.Pass {
		return &ScenarioFailure{Path: path, Name: scenario.Name, Errors: result.Errors}
	}
	return nil
}
