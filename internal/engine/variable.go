package engine

import (
	"context"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

func (e *Engine) processVariableDocumentUpdate(_ context.Context, w *writers, cmd ir.Record) error {
	doc, ok := cmd.Value.(ir.VariableDocumentRecord)
	if !ok {
		return reject(ir.RejectionInvalidArgument, "expected a variable document, got %T", cmd.Value)
	}
	inst, ok := e.state.ElementInstance(doc.ScopeKey)
	if !ok {
		return reject(ir.RejectionNotFound,
			"expected to update variables of scope %d, but no such scope was found", doc.ScopeKey)
	}
	if !inst.IsActive() {
		return reject(ir.RejectionInvalidState,
			"expected scope %d to be active, but it was %s", doc.ScopeKey, inst.State)
	}
	if err := e.writeVariables(w, inst, doc.Variables, doc.Local); err != nil {
		return err
	}
	return w.event(w.nextKey(), ir.IntentUpdated, doc)
}

// writeVariables merges vars into the scope of inst in name order. Local
// writes go to the scope itself. Otherwise each variable goes to the
// nearest enclosing scope that already defines it, or to the process
// instance. Unchanged values are skipped.
func (e *Engine) writeVariables(w *writers, inst state.ElementInstance, vars ir.IRObject, local bool) error {
	for _, name := range vars.SortedKeys() {
		value := vars[name]
		target := inst.Key
		if !local {
			target = inst.ProcessInstanceKey
			if scope, ok := e.state.DefiningScope(inst.Key, name); ok {
				target = scope
			}
		}

		intent := ir.IntentCreated
		if current, exists := e.state.Variable(target, name); exists {
			if cmp.Equal(current, value) {
				continue
			}
			intent = ir.IntentUpdated
		}
		err := w.event(w.nextKey(), intent, ir.VariableRecord{
			Name:                 name,
			Value:                value,
			ScopeKey:             target,
			ProcessInstanceKey:   inst.ProcessInstanceKey,
			ProcessDefinitionKey: inst.ProcessDefinitionKey,
			BpmnProcessID:        inst.BpmnProcessID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
