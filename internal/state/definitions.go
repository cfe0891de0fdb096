package state

import (
	"sort"

	"github.com/roach88/tokenflow/internal/ir"
)

// PutDefinition stores a deployed definition and makes it the latest
// version of its process id when its version is the highest seen.
func (s *State) PutDefinition(d Definition) {
	d.Graph.Index()
	stored := d
	s.definitions[d.Key] = &stored
	if d.Version >= s.versions[d.BpmnProcessID] {
		s.versions[d.BpmnProcessID] = d.Version
		s.latestDefinition[d.BpmnProcessID] = d.Key
	}
}

// Definition looks up a definition by key.
func (s *State) Definition(key int64) (Definition, bool) {
	d, ok := s.definitions[key]
	if !ok {
		return Definition{}, false
	}
	return *d, true
}

// LatestDefinition returns the newest version of a process id.
func (s *State) LatestDefinition(bpmnProcessID string) (Definition, bool) {
	key, ok := s.latestDefinition[bpmnProcessID]
	if !ok {
		return Definition{}, false
	}
	return s.Definition(key)
}

// DefinitionByVersion returns a specific version of a process id.
func (s *State) DefinitionByVersion(bpmnProcessID string, version int32) (Definition, bool) {
	if version == ir.LatestVersion {
		return s.LatestDefinition(bpmnProcessID)
	}
	for _, d := range s.definitions {
		if d.BpmnProcessID == bpmnProcessID && d.Version == version {
			return *d, true
		}
	}
	return Definition{}, false
}

// Definitions returns all definitions ordered by key.
func (s *State) Definitions() []Definition {
	out := make([]Definition, 0, len(s.definitions))
	for _, d := range s.definitions {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
