package state

import (
	"fmt"
	"sort"

	"github.com/roach88/tokenflow/internal/ir"
)

// Snapshot is a comparable, fully exported image of a State. Replaying a
// log into a fresh State must reproduce the same Snapshot.
type Snapshot struct {
	NextKey     int64
	Definitions []DefinitionInfo
	Instances   []ElementInstance
	Merges      map[string][]string
	Jobs        []Job
	Incidents   []Incident
	Variables   map[int64]ir.IRObject
}

// DefinitionInfo identifies a deployed definition without its graph.
type DefinitionInfo struct {
	Key           int64
	BpmnProcessID string
	Version       int32
	Checksum      string
}

// Snapshot captures the current state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		NextKey:   s.keys.Peek(),
		Merges:    make(map[string][]string, len(s.merges)),
		Jobs:      s.Jobs(""),
		Incidents: s.Incidents(),
		Variables: make(map[int64]ir.IRObject, len(s.variables)),
	}
	for _, d := range s.Definitions() {
		snap.Definitions = append(snap.Definitions, DefinitionInfo{
			Key:           d.Key,
			BpmnProcessID: d.BpmnProcessID,
			Version:       d.Version,
			Checksum:      d.Checksum,
		})
	}
	for _, inst := range s.instances {
		snap.Instances = append(snap.Instances, *inst)
	}
	sort.Slice(snap.Instances, func(i, j int) bool { return snap.Instances[i].Key < snap.Instances[j].Key })
	for k := range s.merges {
		snap.Merges[fmt.Sprintf("%d/%s", k.scopeKey, k.gatewayID)] = s.ArrivedFlows(k.scopeKey, k.gatewayID)
	}
	for key, vars := range s.variables {
		snap.Variables[key] = vars.Clone()
	}
	return snap
}
