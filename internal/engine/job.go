package engine

import (
	"context"
	"maps"

	"github.com/roach88/tokenflow/internal/ir"
)

// createJob evaluates the job type of a service task and requests a job.
// An evaluation failure raises an incident instead; the task stays
// ACTIVATED without a job either way.
func (e *Engine) createJob(w *writers, el element) error {
	vars := e.state.VisibleVariables(el.key)
	jobType, err := e.eval.EvaluateString(el.node.JobType, vars)
	if err != nil {
		e.raiseIncident(w, el, ir.ErrorExtractValue, err.Error(), 0)
		return nil
	}

	retries := el.node.Retries
	if retries <= 0 {
		retries = ir.DefaultJobRetries
	}
	w.command(ir.NoKey, ir.IntentCreate, ir.JobRecord{
		Type:                     jobType,
		Retries:                  int32(retries),
		CustomHeaders:            maps.Clone(el.node.Headers),
		Variables:                vars,
		ElementID:                el.node.ID,
		ElementInstanceKey:       el.key,
		ProcessInstanceKey:       el.pi.ProcessInstanceKey,
		BpmnProcessID:            el.pi.BpmnProcessID,
		ProcessDefinitionVersion: el.pi.Version,
		ProcessDefinitionKey:     el.pi.ProcessDefinitionKey,
	})
	return nil
}

func jobValue(cmd ir.Record) (ir.JobRecord, error) {
	v, ok := cmd.Value.(ir.JobRecord)
	if !ok {
		return ir.JobRecord{}, reject(ir.RejectionInvalidArgument, "expected a job record, got %T", cmd.Value)
	}
	return v, nil
}

func (e *Engine) processJobCreate(_ context.Context, w *writers, cmd ir.Record) error {
	job, err := jobValue(cmd)
	if err != nil {
		return err
	}
	inst, ok := e.state.ElementInstance(job.ElementInstanceKey)
	if !ok {
		return reject(ir.RejectionNotFound,
			"expected element instance %d of the job to exist, but it was not found", job.ElementInstanceKey)
	}
	if inst.State != ir.StateActivated || inst.ElementType != ir.ElementServiceTask {
		return reject(ir.RejectionInvalidState,
			"expected element instance %d to be an ACTIVATED service task, but it was a %s in state %s",
			inst.Key, inst.ElementType, inst.State)
	}
	if inst.JobKey != 0 {
		return reject(ir.RejectionAlreadyExists,
			"expected element instance %d to have no job, but job %d is open", inst.Key, inst.JobKey)
	}
	return w.event(w.nextKey(), ir.IntentCreated, job)
}

// processJobComplete completes the job, propagates its variables and asks
// the service task to complete.
func (e *Engine) processJobComplete(_ context.Context, w *writers, cmd ir.Record) error {
	in, err := jobValue(cmd)
	if err != nil {
		return err
	}
	job, ok := e.state.Job(cmd.Key)
	if !ok {
		return reject(ir.RejectionNotFound, "expected to complete job %d, but no such job was found", cmd.Key)
	}
	if job.State != ir.JobStateCreated {
		return reject(ir.RejectionInvalidState,
			"expected to complete job %d, but it is in state %s", cmd.Key, job.State)
	}
	inst, ok := e.state.ElementInstance(job.ElementInstanceKey)
	if !ok || inst.State != ir.StateActivated {
		return reject(ir.RejectionInvalidState,
			"expected element instance %d of job %d to be ACTIVATED", job.ElementInstanceKey, cmd.Key)
	}

	done := job.JobRecord
	done.Variables = in.Variables
	if err := w.event(cmd.Key, ir.IntentCompleted, done); err != nil {
		return err
	}
	if err := e.writeVariables(w, inst, in.Variables, false); err != nil {
		return err
	}
	w.command(inst.Key, ir.IntentCompleteElement, inst.Record())
	return nil
}

// processJobFail records a failed attempt. A job without retries left
// raises an incident.
func (e *Engine) processJobFail(_ context.Context, w *writers, cmd ir.Record) error {
	in, err := jobValue(cmd)
	if err != nil {
		return err
	}
	job, ok := e.state.Job(cmd.Key)
	if !ok {
		return reject(ir.RejectionNotFound, "expected to fail job %d, but no such job was found", cmd.Key)
	}
	if job.State != ir.JobStateCreated {
		return reject(ir.RejectionInvalidState,
			"expected to fail job %d, but it is in state %s", cmd.Key, job.State)
	}

	failed := job.JobRecord
	failed.Retries = in.Retries
	failed.ErrorMessage = in.ErrorMessage
	if err := w.event(cmd.Key, ir.IntentFailed, failed); err != nil {
		return err
	}
	if in.Retries > 0 {
		return nil
	}

	message := in.ErrorMessage
	if message == "" {
		message = "No more retries left."
	}
	_, el, err := e.loadElement(job.ElementInstanceKey)
	if err != nil {
		return err
	}
	e.raiseIncident(w, el, ir.ErrorJobNoRetries, message, cmd.Key)
	return nil
}

func (e *Engine) processJobUpdateRetries(_ context.Context, w *writers, cmd ir.Record) error {
	in, err := jobValue(cmd)
	if err != nil {
		return err
	}
	if in.Retries < 1 {
		return reject(ir.RejectionInvalidArgument,
			"expected retries of job %d to be greater than zero, but it was %d", cmd.Key, in.Retries)
	}
	job, ok := e.state.Job(cmd.Key)
	if !ok {
		return reject(ir.RejectionNotFound, "expected to update retries of job %d, but no such job was found", cmd.Key)
	}
	updated := job.JobRecord
	updated.Retries = in.Retries
	return w.event(cmd.Key, ir.IntentRetriesUpdated, updated)
}
