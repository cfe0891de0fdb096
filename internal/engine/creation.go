package engine

import (
	"context"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

// processCreateInstance creates a process instance of a deployed
// definition, writes its initial variables and activates the process
// element.
func (e *Engine) processCreateInstance(_ context.Context, w *writers, cmd ir.Record) error {
	req, ok := cmd.Value.(ir.ProcessInstanceCreationRecord)
	if !ok {
		return reject(ir.RejectionInvalidArgument, "expected a process instance creation record, got %T", cmd.Value)
	}

	var def state.Definition
	switch {
	case req.ProcessDefinitionKey > 0:
		def, ok = e.state.Definition(req.ProcessDefinitionKey)
		if !ok {
			return reject(ir.RejectionNotFound,
				"expected to find process definition with key %d, but none found", req.ProcessDefinitionKey)
		}
	case req.BpmnProcessID != "":
		version := req.Version
		if version == 0 {
			version = ir.LatestVersion
		}
		def, ok = e.state.DefinitionByVersion(req.BpmnProcessID, version)
		if !ok {
			if version == ir.LatestVersion {
				return reject(ir.RejectionNotFound,
					"expected to find process definition with process id %q, but none found", req.BpmnProcessID)
			}
			return reject(ir.RejectionNotFound,
				"expected to find process definition with process id %q and version %d, but none found",
				req.BpmnProcessID, version)
		}
	default:
		return reject(ir.RejectionInvalidArgument, "expected either a process definition key or a process id")
	}

	piKey := w.nextKey()
	created := req
	created.BpmnProcessID = def.BpmnProcessID
	created.Version = def.Version
	created.ProcessDefinitionKey = def.Key
	created.ProcessInstanceKey = piKey
	if err := w.event(piKey, ir.IntentCreated, created); err != nil {
		return err
	}

	for _, name := range req.Variables.SortedKeys() {
		err := w.event(w.nextKey(), ir.IntentCreated, ir.VariableRecord{
			Name:                 name,
			Value:                req.Variables[name],
			ScopeKey:             piKey,
			ProcessInstanceKey:   piKey,
			ProcessDefinitionKey: def.Key,
			BpmnProcessID:        def.BpmnProcessID,
		})
		if err != nil {
			return err
		}
	}

	w.command(piKey, ir.IntentActivateElement, ir.ProcessInstanceRecord{
		BpmnProcessID:        def.BpmnProcessID,
		Version:              def.Version,
		ProcessDefinitionKey: def.Key,
		ProcessInstanceKey:   piKey,
		ElementID:            def.Graph.ID,
		BpmnElementType:      ir.ElementProcess,
		FlowScopeKey:         ir.NoKey,
	})
	return nil
}
