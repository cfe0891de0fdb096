package appliers

import (
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

// Applier mutates the state for one committed event.
type Applier func(s *state.State, rec ir.Record) error

type registryKey struct {
	valueType ir.ValueType
	intent    ir.Intent
}

// Registry maps (value type, intent) pairs to appliers.
type Registry struct {
	appliers map[registryKey]Applier
}

// New returns a registry holding every event applier.
func New() *Registry {
	r := &Registry{appliers: make(map[registryKey]Applier)}

	r.register(ir.ValueDeployment, ir.IntentCreated, applyDeploymentCreated)
	r.register(ir.ValueProcessInstanceCreation, ir.IntentCreated, noop)

	r.register(ir.ValueProcessInstance, ir.IntentElementActivating, applyElementActivating)
	r.register(ir.ValueProcessInstance, ir.IntentElementActivated, applyElementState)
	r.register(ir.ValueProcessInstance, ir.IntentElementCompleting, applyElementState)
	r.register(ir.ValueProcessInstance, ir.IntentElementTerminating, applyElementState)
	r.register(ir.ValueProcessInstance, ir.IntentElementCompleted, applyElementFinished)
	r.register(ir.ValueProcessInstance, ir.IntentElementTerminated, applyElementFinished)
	r.register(ir.ValueProcessInstance, ir.IntentSequenceFlowTaken, applySequenceFlowTaken)

	r.register(ir.ValueJob, ir.IntentCreated, applyJobCreated)
	r.register(ir.ValueJob, ir.IntentCompleted, applyJobRemoved)
	r.register(ir.ValueJob, ir.IntentCanceled, applyJobRemoved)
	r.register(ir.ValueJob, ir.IntentFailed, applyJobFailed)
	r.register(ir.ValueJob, ir.IntentRetriesUpdated, applyJobRetriesUpdated)

	r.register(ir.ValueIncident, ir.IntentCreated, applyIncidentCreated)
	r.register(ir.ValueIncident, ir.IntentResolved, applyIncidentResolved)

	r.register(ir.ValueVariable, ir.IntentCreated, applyVariable)
	r.register(ir.ValueVariable, ir.IntentUpdated, applyVariable)
	r.register(ir.ValueVariableDocument, ir.IntentUpdated, noop)

	return r
}

func (r *Registry) register(vt ir.ValueType, intent ir.Intent, fn Applier) {
	r.appliers[registryKey{vt, intent}] = fn
}

// Apply observes the record's key and, for events, runs the matching
// applier. Commands and rejections only advance the key generator.
func (r *Registry) Apply(s *state.State, rec ir.Record) error {
	s.Keys().Observe(rec.Key)
	if !rec.IsEvent() {
		return nil
	}
	fn, ok := r.appliers[registryKey{rec.ValueType, rec.Intent}]
	if !ok {
		return &UnknownEventError{ValueType: rec.ValueType, Intent: rec.Intent}
	}
	return fn(s, rec)
}

// Handles reports whether an applier is registered for the event.
func (r *Registry) Handles(vt ir.ValueType, intent ir.Intent) bool {
	_, ok := r.appliers[registryKey{vt, intent}]
	return ok
}

func noop(*state.State, ir.Record) error { return nil }

func missing(rec ir.Record, entity string, key int64, err error) error {
	return &MissingEntityError{Entity: entity, Key: key, Position: rec.Position, Intent: rec.Intent, Err: err}
}

func valueOf[T ir.RecordValue](rec ir.Record) (T, error) {
	v, ok := rec.Value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s at position %d: unexpected value %T", rec.ValueType, rec.Intent, rec.Position, rec.Value)
	}
	return v, nil
}
