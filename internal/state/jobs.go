package state

import (
	"fmt"
	"sort"

	"github.com/roach88/tokenflow/internal/ir"
)

// PutJob inserts or replaces a job.
func (s *State) PutJob(key int64, st ir.JobState, rec ir.JobRecord) {
	s.jobs[key] = &Job{Key: key, State: st, JobRecord: rec}
}

// UpdateJob applies fn to a stored job.
func (s *State) UpdateJob(key int64, fn func(*Job)) error {
	j, ok := s.jobs[key]
	if !ok {
		return fmt.Errorf("job %d not found", key)
	}
	fn(j)
	return nil
}

// RemoveJob deletes a job and unlinks it from its element instance.
func (s *State) RemoveJob(key int64) error {
	j, ok := s.jobs[key]
	if !ok {
		return fmt.Errorf("job %d not found", key)
	}
	if inst, ok := s.instances[j.ElementInstanceKey]; ok && inst.JobKey == key {
		inst.JobKey = 0
	}
	delete(s.jobs, key)
	return nil
}

// Job returns a copy of a job.
func (s *State) Job(key int64) (Job, bool) {
	j, ok := s.jobs[key]
	if !ok {
		return Job{}, false
	}
	out := *j
	out.Variables = j.Variables.Clone()
	return out, true
}

// Jobs returns all open jobs ordered by key. A non-empty jobType filters
// by type.
func (s *State) Jobs(jobType string) []Job {
	var out []Job
	for key, j := range s.jobs {
		if jobType != "" && j.Type != jobType {
			continue
		}
		job, _ := s.Job(key)
		out = append(out, job)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Key < out[k].Key })
	return out
}
