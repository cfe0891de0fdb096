package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/tokenflow/internal/ir"
)

// CreateInstance adds a new element instance in state ACTIVATING under its
// flow scope. Creating an instance that already exists is a no-op.
func (s *State) CreateInstance(key int64, rec ir.ProcessInstanceRecord) error {
	if _, exists := s.instances[key]; exists {
		return nil
	}

	if rec.FlowScopeKey > 0 {
		parent, ok := s.instances[rec.FlowScopeKey]
		if !ok {
			return fmt.Errorf("flow scope %d of element %q not found", rec.FlowScopeKey, rec.ElementID)
		}
		parent.ActiveChildren++
		s.children[rec.FlowScopeKey] = append(s.children[rec.FlowScopeKey], key)
	}

	s.instances[key] = &ElementInstance{
		Key:                  key,
		ProcessInstanceKey:   rec.ProcessInstanceKey,
		FlowScopeKey:         rec.FlowScopeKey,
		ProcessDefinitionKey: rec.ProcessDefinitionKey,
		BpmnProcessID:        rec.BpmnProcessID,
		Version:              rec.Version,
		ElementID:            rec.ElementID,
		ElementType:          rec.BpmnElementType,
		State:                ir.StateActivating,
	}
	s.instancesByPI[rec.ProcessInstanceKey] = append(s.instancesByPI[rec.ProcessInstanceKey], key)
	return nil
}

// SetInstanceState moves an element instance to a new state. Entering a
// terminal state releases the instance's slot in its flow scope.
func (s *State) SetInstanceState(key int64, to ir.ElementState) error {
	inst, ok := s.instances[key]
	if !ok {
		return fmt.Errorf("element instance %d not found", key)
	}
	if inst.State == to {
		return nil
	}
	wasActive := !inst.State.IsTerminal()
	inst.State = to
	if wasActive && to.IsTerminal() && inst.FlowScopeKey > 0 {
		if parent, ok := s.instances[inst.FlowScopeKey]; ok {
			parent.ActiveChildren--
		}
	}
	return nil
}

// ErrTokenUnderflow is returned when a scope would release more sequence
// flow tokens than it holds.
var ErrTokenUnderflow = errors.New("sequence flow count below zero")

// AddActiveSequenceFlows adjusts the in-flight token count of a scope. The
// count is left unchanged when it would drop below zero.
func (s *State) AddActiveSequenceFlows(scopeKey int64, delta int) error {
	inst, ok := s.instances[scopeKey]
	if !ok {
		return fmt.Errorf("flow scope %d not found", scopeKey)
	}
	if inst.ActiveSequenceFlows+delta < 0 {
		return fmt.Errorf("flow scope %d holds %d tokens, cannot release %d: %w",
			scopeKey, inst.ActiveSequenceFlows, -delta, ErrTokenUnderflow)
	}
	inst.ActiveSequenceFlows += delta
	return nil
}

// SetJobKey records the open job of an element instance.
func (s *State) SetJobKey(elementInstanceKey, jobKey int64) error {
	inst, ok := s.instances[elementInstanceKey]
	if !ok {
		return fmt.Errorf("element instance %d not found", elementInstanceKey)
	}
	inst.JobKey = jobKey
	return nil
}

// RemoveProcessInstance drops every element instance, merge record and
// variable belonging to a process instance.
func (s *State) RemoveProcessInstance(processInstanceKey int64) {
	for _, key := range s.instancesByPI[processInstanceKey] {
		delete(s.instances, key)
		delete(s.children, key)
		delete(s.variables, key)
		s.ClearScopeMerges(key)
	}
	delete(s.instancesByPI, processInstanceKey)
}

// ElementInstance returns a copy of an element instance.
func (s *State) ElementInstance(key int64) (ElementInstance, bool) {
	inst, ok := s.instances[key]
	if !ok {
		return ElementInstance{}, false
	}
	return *inst, true
}

// Children returns the child instances of a scope in creation order.
func (s *State) Children(scopeKey int64) []ElementInstance {
	keys := s.children[scopeKey]
	out := make([]ElementInstance, 0, len(keys))
	for _, k := range keys {
		if inst, ok := s.instances[k]; ok {
			out = append(out, *inst)
		}
	}
	return out
}

// ActiveChildren returns the non-terminal child instances of a scope.
func (s *State) ActiveChildren(scopeKey int64) []ElementInstance {
	var out []ElementInstance
	for _, child := range s.Children(scopeKey) {
		if child.IsActive() {
			out = append(out, child)
		}
	}
	return out
}

// ProcessInstanceKeys returns the keys of all live process instances.
func (s *State) ProcessInstanceKeys() []int64 {
	keys := make([]int64, 0, len(s.instancesByPI))
	for k := range s.instancesByPI {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ElementInstances returns every instance of a process instance ordered by
// key.
func (s *State) ElementInstances(processInstanceKey int64) []ElementInstance {
	keys := s.instancesByPI[processInstanceKey]
	out := make([]ElementInstance, 0, len(keys))
	for _, k := range keys {
		if inst, ok := s.instances[k]; ok {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
