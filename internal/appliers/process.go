package appliers

import (
	"errors"
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

func applyDeploymentCreated(s *state.State, rec ir.Record) error {
	dep, err := valueOf[ir.DeploymentRecord](rec)
	if err != nil {
		return err
	}
	for _, p := range dep.Processes {
		if _, exists := s.Definition(p.ProcessDefinitionKey); exists {
			continue
		}
		s.PutDefinition(state.Definition{
			Key:           p.ProcessDefinitionKey,
			BpmnProcessID: p.BpmnProcessID,
			Version:       p.Version,
			Checksum:      p.Checksum,
			Graph:         p.Graph,
		})
		s.Keys().Observe(p.ProcessDefinitionKey)
	}
	return nil
}

// applyElementActivating creates the instance. A token that arrived over a
// sequence flow stops being in flight once its target activates.
func applyElementActivating(s *state.State, rec ir.Record) error {
	pi, err := valueOf[ir.ProcessInstanceRecord](rec)
	if err != nil {
		return err
	}
	if _, exists := s.ElementInstance(rec.Key); exists {
		return nil
	}
	if pi.SourceFlowID != "" && pi.FlowScopeKey > 0 {
		if err := s.AddActiveSequenceFlows(pi.FlowScopeKey, -1); err != nil {
			return tokenError(rec, pi.FlowScopeKey, err)
		}
	}
	if err := s.CreateInstance(rec.Key, pi); err != nil {
		return missing(rec, "flow scope", pi.FlowScopeKey, err)
	}
	return nil
}

func applyElementState(s *state.State, rec ir.Record) error {
	to, _ := ir.StateForIntent(rec.Intent)
	if err := s.SetInstanceState(rec.Key, to); err != nil {
		return missing(rec, "element instance", rec.Key, err)
	}
	return nil
}

// applyElementFinished moves the instance into its terminal state, drops
// the merge records it owned as a scope and, for the process root, the
// whole process instance.
func applyElementFinished(s *state.State, rec ir.Record) error {
	pi, err := valueOf[ir.ProcessInstanceRecord](rec)
	if err != nil {
		return err
	}
	if err := applyElementState(s, rec); err != nil {
		return err
	}
	s.ClearScopeMerges(rec.Key)
	if pi.BpmnElementType == ir.ElementProcess && pi.FlowScopeKey <= 0 {
		s.RemoveProcessInstance(pi.ProcessInstanceKey)
	}
	return nil
}

// applySequenceFlowTaken puts a token in flight inside the flow scope. A
// token arriving at a synchronizing gateway is held in the merge record;
// when the record covers every incoming flow it is cleared and all but one
// of the held tokens are released, the last one being consumed when the
// gateway activates.
func applySequenceFlowTaken(s *state.State, rec ir.Record) error {
	pi, err := valueOf[ir.ProcessInstanceRecord](rec)
	if err != nil {
		return err
	}
	def, ok := s.Definition(pi.ProcessDefinitionKey)
	if !ok {
		return missing(rec, "process definition", pi.ProcessDefinitionKey, nil)
	}
	flow, ok := def.Graph.Flow(pi.ElementID)
	if !ok {
		return missing(rec, "sequence flow "+pi.ElementID+" in definition", pi.ProcessDefinitionKey, nil)
	}
	target, ok := def.Graph.Node(flow.TargetID)
	if !ok {
		return missing(rec, "element "+flow.TargetID+" in definition", pi.ProcessDefinitionKey, nil)
	}
	scope := pi.FlowScopeKey

	if !target.Type.IsSynchronizing() {
		if err := s.AddActiveSequenceFlows(scope, 1); err != nil {
			return tokenError(rec, scope, err)
		}
		return nil
	}

	if s.HasArrived(scope, target.ID, flow.ID) {
		return nil
	}
	if err := s.AddActiveSequenceFlows(scope, 1); err != nil {
		return tokenError(rec, scope, err)
	}
	s.AddArrival(scope, target.ID, flow.ID)

	arrived := s.ArrivedFlows(scope, target.ID)
	if Covers(arrived, target.IncomingFlowIDs) {
		s.ClearMerge(scope, target.ID)
		if err := s.AddActiveSequenceFlows(scope, -(len(arrived) - 1)); err != nil {
			return tokenError(rec, scope, err)
		}
	}
	return nil
}

// Covers reports whether arrived is a superset of incoming. The engine
// uses the same rule to decide whether a join fires before writing the
// event that makes it fire.
func Covers(arrived, incoming []string) bool {
	set := make(map[string]struct{}, len(arrived))
	for _, id := range arrived {
		set[id] = struct{}{}
	}
	for _, id := range incoming {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// tokenError reports a failed token count update: the scope is missing, or
// the event releases a token that was never in flight.
func tokenError(rec ir.Record, scope int64, err error) error {
	if errors.Is(err, state.ErrTokenUnderflow) {
		return fmt.Errorf("apply %s %s at position %d: %w", rec.ValueType, rec.Intent, rec.Position, err)
	}
	return missing(rec, "flow scope", scope, err)
}
