package state

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/tokenflow/internal/ir"
)

// PutIncident stores an incident and indexes it by element instance.
func (s *State) PutIncident(key int64, rec ir.IncidentRecord) {
	if _, exists := s.incidents[key]; !exists {
		s.incidentsByElement[rec.ElementInstanceKey] = append(s.incidentsByElement[rec.ElementInstanceKey], key)
	}
	s.incidents[key] = &Incident{Key: key, IncidentRecord: rec}
}

// RemoveIncident deletes a resolved incident.
func (s *State) RemoveIncident(key int64) error {
	inc, ok := s.incidents[key]
	if !ok {
		return fmt.Errorf("incident %d not found", key)
	}
	elem := inc.ElementInstanceKey
	keys := slices.DeleteFunc(s.incidentsByElement[elem], func(k int64) bool { return k == key })
	if len(keys) == 0 {
		delete(s.incidentsByElement, elem)
	} else {
		s.incidentsByElement[elem] = keys
	}
	delete(s.incidents, key)
	return nil
}

// Incident returns a copy of an incident.
func (s *State) Incident(key int64) (Incident, bool) {
	inc, ok := s.incidents[key]
	if !ok {
		return Incident{}, false
	}
	return *inc, true
}

// IncidentsOf returns the open incidents of an element instance.
func (s *State) IncidentsOf(elementInstanceKey int64) []Incident {
	keys := s.incidentsByElement[elementInstanceKey]
	out := make([]Incident, 0, len(keys))
	for _, k := range keys {
		out = append(out, *s.incidents[k])
	}
	return out
}

// Incidents returns all open incidents ordered by key.
func (s *State) Incidents() []Incident {
	out := make([]Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
