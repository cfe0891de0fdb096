package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tokenflow/internal/compiler"
	"github.com/roach88/tokenflow/internal/engine"
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
	"github.com/roach88/tokenflow/internal/state"
	"github.com/roach88/tokenflow/internal/testutil"
)

// Harness executes one scenario on a fresh engine.
type Harness struct {
	log    *logstream.MemoryLog
	engine *engine.Engine
	logger *slog.Logger

	instances map[string]int64
	last      int64
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load and validate the CUE process definitions
//  2. Deploy them on a fresh in-memory engine
//  3. Execute every step, checking its expected outcome
//  4. Evaluate the assertions against the log and the final state
//
// The returned error reports problems running the scenario at all (bad
// process files, a halted engine). Failed expectations are recorded in the
// result instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h := newHarness()
	result := NewResult()

	graphs, err := compiler.LoadAll(scenario.Processes...)
	if err != nil {
		return nil, fmt.Errorf("load processes: %w", err)
	}
	for _, g := range graphs {
		if err := compiler.ValidateGraph(g).Err(); err != nil {
			return nil, fmt.Errorf("process %q: %w", g.ID, err)
		}
	}

	if err := h.deploy(ctx, graphs); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, step, result); err != nil {
			if engine.IsFatal(err) {
				return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
			}
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Action, err))
		}
	}

	result.records = h.log.Records()
	for _, r := range result.records {
		result.Trace = append(result.Trace, newTraceEvent(r))
	}
	for name, key := range h.instances {
		result.Instances[name] = key
	}

	for i, a := range scenario.Assertions {
		if err := h.check(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"records", len(result.records),
		"pass", result.Pass,
	)
	return result, nil
}

func newHarness() *Harness {
	log := logstream.NewMemoryLog()
	return &Harness{
		log: log,
		engine: engine.New(log,
			engine.WithClock(testutil.NewMockClock()),
			engine.WithRequestIDGenerator(testutil.NewSequenceIDs("scenario")),
		),
		logger:    slog.Default(),
		instances: make(map[string]int64),
	}
}

func (h *Harness) deploy(ctx context.Context, graphs []*ir.ProcessGraph) error {
	var dep ir.DeploymentRecord
	for _, g := range graphs {
		dep.Processes = append(dep.Processes, ir.ProcessMetadata{Graph: g})
	}
	res, err := h.engine.Execute(ctx, ir.NewCommand(ir.NoKey, ir.IntentCreate, dep))
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}
	if rej, ok := res.Rejection(); ok {
		return fmt.Errorf("deploy rejected: %s: %s", rej.RejectionType, rej.RejectionReason)
	}
	return nil
}

// runStep builds the command for a step, executes it and compares the
// outcome with the step's expectation.
func (h *Harness) runStep(ctx context.Context, step Step, result *Result) error {
	cmd, err := h.command(step)
	if err != nil {
		return err
	}
	res, err := h.engine.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	want := ""
	if step.Expect != nil {
		want = step.Expect.Rejection
	}
	rej, rejected := res.Rejection()
	switch {
	case rejected && want == "":
		return fmt.Errorf("rejected: %s: %s", rej.RejectionType, rej.RejectionReason)
	case rejected && string(rej.RejectionType) != want:
		return fmt.Errorf("expected rejection %s, got %s: %s", want, rej.RejectionType, rej.RejectionReason)
	case !rejected && want != "":
		return fmt.Errorf("expected rejection %s, but the command was accepted", want)
	}

	if step.Action == ActionCreate && !rejected {
		for _, r := range res.Records {
			if r.IsEvent() && r.ValueType == ir.ValueProcessInstanceCreation {
				h.last = r.Key
				if step.As != "" {
					h.instances[step.As] = r.Key
				}
			}
		}
	}
	return nil
}

// command translates a step into an external command, looking up the
// keys it addresses in the current state.
func (h *Harness) command(step Step) (ir.Record, error) {
	vars, err := ir.ObjectFromNative(step.Variables)
	if err != nil {
		return ir.Record{}, fmt.Errorf("variables: %w", err)
	}

	if step.Action == ActionCreate {
		return ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.ProcessInstanceCreationRecord{
			BpmnProcessID: step.Process,
			Version:       step.Version,
			Variables:     vars,
		}), nil
	}

	piKey, err := h.instance(step.Instance)
	if err != nil {
		return ir.Record{}, err
	}
	st := h.engine.State()

	switch step.Action {
	case ActionCompleteJob, ActionFailJob, ActionUpdateRetries:
		job, err := findJob(st, piKey, step.JobType)
		if err != nil {
			return ir.Record{}, err
		}
		switch step.Action {
		case ActionCompleteJob:
			return ir.NewCommand(job.Key, ir.IntentComplete, ir.JobRecord{Variables: vars}), nil
		case ActionFailJob:
			return ir.NewCommand(job.Key, ir.IntentFail, ir.JobRecord{Retries: step.Retries, ErrorMessage: step.Message}), nil
		default:
			return ir.NewCommand(job.Key, ir.IntentUpdateRetries, ir.JobRecord{Retries: step.Retries}), nil
		}

	case ActionResolveIncident:
		for _, inc := range st.Incidents() {
			if inc.ProcessInstanceKey == piKey && (step.Element == "" || inc.ElementID == step.Element) {
				return ir.NewCommand(inc.Key, ir.IntentResolve, ir.IncidentRecord{}), nil
			}
		}
		return ir.Record{}, fmt.Errorf("no open incident for element %q", step.Element)

	case ActionSetVariables:
		scope := piKey
		if step.Element != "" {
			inst, err := findElement(st, piKey, step.Element)
			if err != nil {
				return ir.Record{}, err
			}
			scope = inst.Key
		}
		return ir.NewCommand(ir.NoKey, ir.IntentUpdate, ir.VariableDocumentRecord{
			ScopeKey:  scope,
			Local:     step.Local,
			Variables: vars,
		}), nil

	case ActionCompleteElement:
		inst, err := findElement(st, piKey, step.Element)
		if err != nil {
			return ir.Record{}, err
		}
		return ir.NewCommand(inst.Key, ir.IntentCompleteElement, inst.Record()), nil

	case ActionCancel:
		return ir.NewCommand(piKey, ir.IntentCancel, ir.ProcessInstanceRecord{}), nil
	}
	return ir.Record{}, fmt.Errorf("unknown action %q", step.Action)
}

// instance resolves an instance name; empty means the last created one.
func (h *Harness) instance(name string) (int64, error) {
	if name == "" {
		if h.last == 0 {
			return 0, fmt.Errorf("no process instance has been created")
		}
		return h.last, nil
	}
	key, ok := h.instances[name]
	if !ok {
		return 0, fmt.Errorf("unknown instance %q", name)
	}
	return key, nil
}

func findJob(st state.Reader, piKey int64, jobType string) (state.Job, error) {
	for _, job := range st.Jobs(jobType) {
		if job.ProcessInstanceKey == piKey {
			return job, nil
		}
	}
	return state.Job{}, fmt.Errorf("no job of type %q in instance %d", jobType, piKey)
}

// findElement returns the newest instance of elementID.
func findElement(st state.Reader, piKey int64, elementID string) (state.ElementInstance, error) {
	var (
		found state.ElementInstance
		ok    bool
	)
	for _, inst := range st.ElementInstances(piKey) {
		if inst.ElementID == elementID {
			found, ok = inst, true
		}
	}
	if !ok {
		return found, fmt.Errorf("no instance of element %q in instance %d", elementID, piKey)
	}
	return found, nil
}
