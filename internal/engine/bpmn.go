package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tokenflow/internal/appliers"
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

// element bundles what the lifecycle steps need about one element
// instance.
type element struct {
	key  int64
	pi   ir.ProcessInstanceRecord
	def  state.Definition
	node *ir.Node
}

// lookupElement resolves the definition and node a process instance record
// refers to.
func (e *Engine) lookupElement(key int64, pi ir.ProcessInstanceRecord) (element, error) {
	def, ok := e.state.Definition(pi.ProcessDefinitionKey)
	if !ok {
		return element{}, reject(ir.RejectionNotFound,
			"expected process definition %d to exist, but it was not found", pi.ProcessDefinitionKey)
	}
	node, ok := def.Graph.Node(pi.ElementID)
	if !ok {
		return element{}, reject(ir.RejectionNotFound,
			"expected element %q to exist in process %q version %d, but it was not found",
			pi.ElementID, def.BpmnProcessID, def.Version)
	}
	pi.BpmnProcessID = def.BpmnProcessID
	pi.Version = def.Version
	pi.BpmnElementType = node.Type
	return element{key: key, pi: pi, def: def, node: node}, nil
}

// loadElement resolves a stored element instance.
func (e *Engine) loadElement(key int64) (state.ElementInstance, element, error) {
	inst, ok := e.state.ElementInstance(key)
	if !ok {
		return inst, element{}, reject(ir.RejectionNotFound,
			"expected element instance %d to exist, but it was not found", key)
	}
	el, err := e.lookupElement(key, inst.Record())
	return inst, el, err
}

func (e *Engine) processActivateElement(_ context.Context, w *writers, cmd ir.Record) error {
	pi, ok := cmd.ProcessInstance()
	if !ok {
		return reject(ir.RejectionInvalidArgument, "expected a process instance record, got %T", cmd.Value)
	}
	if pi.SourceFlowID != "" && cmd.SourceRecordPosition == ir.NoPosition {
		return reject(ir.RejectionInvalidArgument,
			"expected an external activation of element %q without a source sequence flow, but it names %q",
			pi.ElementID, pi.SourceFlowID)
	}
	key := cmd.Key
	if key <= 0 {
		key = w.nextKey()
	}
	if _, exists := e.state.ElementInstance(key); exists {
		return reject(ir.RejectionAlreadyExists, "element instance %d already exists", key)
	}
	el, err := e.lookupElement(key, pi)
	if err != nil {
		return err
	}

	if el.node.Type == ir.ElementProcess {
		if pi.FlowScopeKey > 0 {
			return reject(ir.RejectionInvalidArgument, "the process element %q cannot have a flow scope", pi.ElementID)
		}
	} else {
		scope, ok := e.state.ElementInstance(pi.FlowScopeKey)
		if !ok {
			return reject(ir.RejectionNotFound,
				"expected flow scope %d of element %q to exist, but it was not found", pi.FlowScopeKey, pi.ElementID)
		}
		if scope.State != ir.StateActivated {
			return reject(ir.RejectionInvalidState,
				"expected flow scope %d of element %q to be ACTIVATED, but it was %s", pi.FlowScopeKey, pi.ElementID, scope.State)
		}
	}

	if err := w.event(key, ir.IntentElementActivating, el.pi); err != nil {
		return err
	}
	el.pi.SourceFlowID = ""
	if err := w.event(key, ir.IntentElementActivated, el.pi); err != nil {
		return err
	}
	return e.onActivated(w, el)
}

// onActivated runs the element-type specific behaviour of a freshly
// activated element.
func (e *Engine) onActivated(w *writers, el element) error {
	switch t := el.node.Type; {
	case t.IsContainer():
		start, ok := el.def.Graph.StartEvent(el.node.ID)
		if !ok {
			w.command(el.key, ir.IntentCompleteElement, el.pi)
			return nil
		}
		child := el.pi
		child.ElementID = start.ID
		child.BpmnElementType = start.Type
		child.FlowScopeKey = el.key
		w.command(w.nextKey(), ir.IntentActivateElement, child)
		return nil

	case t.IsGateway():
		return e.completeGateway(w, el)

	case t == ir.ElementServiceTask:
		return e.createJob(w, el)

	case t == ir.ElementManualTask:
		return nil

	default:
		return e.completeElement(w, el, el.def.Graph.OutgoingFlows(el.node.ID))
	}
}

func (e *Engine) processCompleteElement(_ context.Context, w *writers, cmd ir.Record) error {
	inst, el, err := e.loadElement(cmd.Key)
	if err != nil {
		return err
	}
	if inst.State != ir.StateActivated {
		return reject(ir.RejectionInvalidState,
			"expected element instance %d to be ACTIVATED, but it was %s", inst.Key, inst.State)
	}
	if n := len(e.state.IncidentsOf(inst.Key)); n > 0 {
		return reject(ir.RejectionInvalidState,
			"expected element instance %d to have no open incidents, but it has %d", inst.Key, n)
	}

	switch t := el.node.Type; {
	case t.IsContainer():
		if inst.ActiveChildren > 0 || inst.ActiveSequenceFlows > 0 {
			return reject(ir.RejectionInvalidState,
				"expected element instance %d to have no active children, but it has %d children and %d tokens in flight",
				inst.Key, inst.ActiveChildren, inst.ActiveSequenceFlows)
		}
	case t.IsGateway():
		return e.completeGateway(w, el)
	case t == ir.ElementServiceTask && inst.JobKey != 0:
		return reject(ir.RejectionInvalidState,
			"expected element instance %d to have no open job, but job %d is open", inst.Key, inst.JobKey)
	}
	return e.completeElement(w, el, el.def.Graph.OutgoingFlows(el.node.ID))
}

// completeGateway decides the fork while the gateway is ACTIVATED. A
// failed decision leaves the gateway ACTIVATED with an incident.
func (e *Engine) completeGateway(w *writers, el element) error {
	kind := gatewayKinds[el.node.Type]
	flows, ferr := selectFlows(e.eval, kind.fork, el.node.ID,
		el.def.Graph.OutgoingFlows(el.node.ID), e.state.VisibleVariables(el.key))
	if ferr != nil {
		slog.Debug("fork decision failed",
			"element", el.node.ID,
			"element_instance", el.key,
			"error_type", ferr.errorType,
		)
		e.raiseIncident(w, el, ferr.errorType, ferr.message, 0)
		return nil
	}
	return e.completeElement(w, el, flows)
}

// completeElement completes el and then takes flows. The process root
// takes no flows.
func (e *Engine) completeElement(w *writers, el element, flows []*ir.SequenceFlow) error {
	if err := w.event(el.key, ir.IntentElementCompleting, el.pi); err != nil {
		return err
	}
	if err := w.event(el.key, ir.IntentElementCompleted, el.pi); err != nil {
		return err
	}
	if el.node.Type == ir.ElementProcess {
		return nil
	}
	if err := e.takeFlows(w, el, flows); err != nil {
		return err
	}
	e.completeScopeIfDone(w, el.pi.FlowScopeKey)
	return nil
}

// takeFlows writes SEQUENCE_FLOW_TAKEN for each flow and activates the
// targets. A token arriving at a synchronizing join activates it only when
// the arrivals cover every incoming flow; otherwise the join absorbs it.
func (e *Engine) takeFlows(w *writers, el element, flows []*ir.SequenceFlow) error {
	scope := el.pi.FlowScopeKey
	for _, f := range flows {
		target, ok := el.def.Graph.Node(f.TargetID)
		if !ok {
			return fmt.Errorf("sequence flow %q targets unknown element %q", f.ID, f.TargetID)
		}

		fires := true
		if joinPolicyOf(target.Type) == joinSynchronize {
			arrived := e.state.ArrivedFlows(scope, target.ID)
			if e.state.HasArrived(scope, target.ID, f.ID) {
				fires = false
			} else {
				fires = appliers.Covers(append(arrived, f.ID), target.IncomingFlowIDs)
			}
		}

		taken := el.pi
		taken.ElementID = f.ID
		taken.BpmnElementType = ir.ElementSequenceFlow
		taken.SourceFlowID = ""
		if err := w.event(el.key, ir.IntentSequenceFlowTaken, taken); err != nil {
			return err
		}
		if !fires {
			slog.Debug("token held at join",
				"flow", f.ID,
				"join", target.ID,
				"scope", scope,
			)
			continue
		}

		next := el.pi
		next.ElementID = target.ID
		next.BpmnElementType = target.Type
		next.SourceFlowID = f.ID
		w.command(w.nextKey(), ir.IntentActivateElement, next)
	}
	return nil
}

// completeScopeIfDone asks a flow scope to complete once it has no active
// children and no tokens in flight.
func (e *Engine) completeScopeIfDone(w *writers, scopeKey int64) {
	if scopeKey <= 0 {
		return
	}
	scope, ok := e.state.ElementInstance(scopeKey)
	if !ok || scope.State != ir.StateActivated {
		return
	}
	if scope.ActiveChildren > 0 || scope.ActiveSequenceFlows > 0 {
		return
	}
	w.command(scopeKey, ir.IntentCompleteElement, scope.Record())
}

func (e *Engine) processTerminateElement(_ context.Context, w *writers, cmd ir.Record) error {
	inst, ok := e.state.ElementInstance(cmd.Key)
	if !ok {
		return reject(ir.RejectionNotFound,
			"expected element instance %d to exist, but it was not found", cmd.Key)
	}
	if !inst.IsActive() || inst.State == ir.StateTerminating {
		return reject(ir.RejectionInvalidState,
			"expected element instance %d to be active, but it was %s", inst.Key, inst.State)
	}
	if err := e.terminate(w, inst); err != nil {
		return err
	}
	e.completeScopeIfDone(w, inst.FlowScopeKey)
	return nil
}

// processCancel terminates a whole process instance.
func (e *Engine) processCancel(_ context.Context, w *writers, cmd ir.Record) error {
	inst, ok := e.state.ElementInstance(cmd.Key)
	if !ok || inst.ElementType != ir.ElementProcess {
		return reject(ir.RejectionNotFound,
			"expected to cancel process instance %d, but no such process instance was found", cmd.Key)
	}
	if !inst.IsActive() || inst.State == ir.StateTerminating {
		return reject(ir.RejectionInvalidState,
			"expected process instance %d to be active, but it was %s", inst.Key, inst.State)
	}
	return e.terminate(w, inst)
}

// terminate ends the subtree rooted at inst depth-first. Open incidents
// are resolved and an open job is canceled before the element itself
// terminates.
func (e *Engine) terminate(w *writers, inst state.ElementInstance) error {
	rec := inst.Record()
	if err := w.event(inst.Key, ir.IntentElementTerminating, rec); err != nil {
		return err
	}
	for _, inc := range e.state.IncidentsOf(inst.Key) {
		if err := w.event(inc.Key, ir.IntentResolved, inc.IncidentRecord); err != nil {
			return err
		}
	}
	if inst.JobKey != 0 {
		if job, ok := e.state.Job(inst.JobKey); ok {
			if err := w.event(job.Key, ir.IntentCanceled, job.JobRecord); err != nil {
				return err
			}
		}
	}
	for _, child := range e.state.ActiveChildren(inst.Key) {
		if err := e.terminate(w, child); err != nil {
			return err
		}
	}
	return w.event(inst.Key, ir.IntentElementTerminated, rec)
}

// raiseIncident requests an incident for el. The element stays where it
// is until the incident is resolved.
func (e *Engine) raiseIncident(w *writers, el element, errorType ir.ErrorType, message string, jobKey int64) {
	w.command(ir.NoKey, ir.IntentCreate, ir.IncidentRecord{
		ErrorType:            errorType,
		ErrorMessage:         message,
		BpmnProcessID:        el.pi.BpmnProcessID,
		ProcessDefinitionKey: el.pi.ProcessDefinitionKey,
		ProcessInstanceKey:   el.pi.ProcessInstanceKey,
		ElementID:            el.pi.ElementID,
		ElementInstanceKey:   el.key,
		JobKey:               jobKey,
		VariableScopeKey:     el.key,
	})
}
