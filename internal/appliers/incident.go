package appliers

import (
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

func applyIncidentCreated(s *state.State, rec ir.Record) error {
	inc, err := valueOf[ir.IncidentRecord](rec)
	if err != nil {
		return err
	}
	if _, ok := s.ElementInstance(inc.ElementInstanceKey); !ok {
		return missing(rec, "element instance", inc.ElementInstanceKey, nil)
	}
	if inc.JobKey > 0 {
		if _, ok := s.Job(inc.JobKey); !ok {
			return missing(rec, "job", inc.JobKey, nil)
		}
	}
	s.PutIncident(rec.Key, inc)
	return nil
}

// applyIncidentResolved removes the incident. Resolving a job incident
// makes the job available again.
func applyIncidentResolved(s *state.State, rec ir.Record) error {
	inc, err := valueOf[ir.IncidentRecord](rec)
	if err != nil {
		return err
	}
	if err := s.RemoveIncident(rec.Key); err != nil {
		return missing(rec, "incident", rec.Key, err)
	}
	if inc.ErrorType != ir.ErrorJobNoRetries || inc.JobKey <= 0 {
		return nil
	}
	if err := s.UpdateJob(inc.JobKey, func(j *state.Job) { j.State = ir.JobStateCreated }); err != nil {
		return missing(rec, "job", inc.JobKey, err)
	}
	return nil
}
