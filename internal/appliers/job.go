package appliers

import (
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

func applyJobCreated(s *state.State, rec ir.Record) error {
	job, err := valueOf[ir.JobRecord](rec)
	if err != nil {
		return err
	}
	if err := s.SetJobKey(job.ElementInstanceKey, rec.Key); err != nil {
		return missing(rec, "element instance", job.ElementInstanceKey, err)
	}
	s.PutJob(rec.Key, ir.JobStateCreated, job)
	return nil
}

// applyJobRemoved handles COMPLETED and CANCELED: the job leaves the state.
func applyJobRemoved(s *state.State, rec ir.Record) error {
	if err := s.RemoveJob(rec.Key); err != nil {
		return missing(rec, "job", rec.Key, err)
	}
	return nil
}

// applyJobFailed keeps a job with retries left available to workers. A job
// out of retries stays FAILED until an incident resolution revives it.
func applyJobFailed(s *state.State, rec ir.Record) error {
	job, err := valueOf[ir.JobRecord](rec)
	if err != nil {
		return err
	}
	err = s.UpdateJob(rec.Key, func(j *state.Job) {
		j.Retries = job.Retries
		j.ErrorMessage = job.ErrorMessage
		j.State = ir.JobStateCreated
		if job.Retries <= 0 {
			j.State = ir.JobStateFailed
		}
	})
	if err != nil {
		return missing(rec, "job", rec.Key, err)
	}
	return nil
}

func applyJobRetriesUpdated(s *state.State, rec ir.Record) error {
	job, err := valueOf[ir.JobRecord](rec)
	if err != nil {
		return err
	}
	if err := s.UpdateJob(rec.Key, func(j *state.Job) { j.Retries = job.Retries }); err != nil {
		return missing(rec, "job", rec.Key, err)
	}
	return nil
}
