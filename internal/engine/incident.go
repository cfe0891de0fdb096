package engine

import (
	"context"

	"github.com/roach88/tokenflow/internal/ir"
)

func (e *Engine) processIncidentCreate(_ context.Context, w *writers, cmd ir.Record) error {
	inc, ok := cmd.Value.(ir.IncidentRecord)
	if !ok {
		return reject(ir.RejectionInvalidArgument, "expected an incident record, got %T", cmd.Value)
	}
	inst, ok := e.state.ElementInstance(inc.ElementInstanceKey)
	if !ok || inst.State != ir.StateActivated {
		return reject(ir.RejectionInvalidState,
			"expected element instance %d to be ACTIVATED to raise an incident on it", inc.ElementInstanceKey)
	}
	return w.event(w.nextKey(), ir.IntentCreated, inc)
}

// processIncidentResolve resolves an incident and retries the step that
// failed: a gateway decides its fork again, a service task without a job
// evaluates its job type again. A job incident needs retries on the job.
func (e *Engine) processIncidentResolve(_ context.Context, w *writers, cmd ir.Record) error {
	inc, ok := e.state.Incident(cmd.Key)
	if !ok {
		return reject(ir.RejectionNotFound, "expected to resolve incident %d, but no such incident was found", cmd.Key)
	}
	if inc.ErrorType == ir.ErrorJobNoRetries {
		if job, ok := e.state.Job(inc.JobKey); ok && job.Retries <= 0 {
			return reject(ir.RejectionInvalidState,
				"expected job %d to have retries left before resolving incident %d, but it has %d",
				inc.JobKey, cmd.Key, job.Retries)
		}
	}

	if err := w.event(cmd.Key, ir.IntentResolved, inc.IncidentRecord); err != nil {
		return err
	}

	inst, el, err := e.loadElement(inc.ElementInstanceKey)
	if err != nil || inst.State != ir.StateActivated {
		// The element is gone or moved on; nothing to retry.
		return nil
	}
	if len(e.state.IncidentsOf(inst.Key)) > 0 {
		return nil
	}
	switch {
	case inst.ElementType.IsGateway():
		w.command(inst.Key, ir.IntentCompleteElement, inst.Record())
	case inst.ElementType == ir.ElementServiceTask && inst.JobKey == 0:
		return e.createJob(w, el)
	}
	return nil
}
