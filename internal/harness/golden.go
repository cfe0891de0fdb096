package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs scenario and checks its element trace against
// testdata/golden/<name>.golden, one "element:INTENT" line per process
// instance event. Keys and positions are left out, so the file changes only
// when the token flow does. Regenerate with
//
//	go test ./internal/harness -update
//
// A scenario that cannot run is returned as an error; a trace mismatch fails
// t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the element trace of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, goldenBytes(result))
}

func goldenBytes(result *Result) []byte {
	lines := result.ElementTrace()
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
