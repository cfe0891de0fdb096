// Package state holds the projected state of one partition: deployed
// definitions, element instances, merge bookkeeping for synchronizing
// gateways, jobs, incidents and variables.
//
// Only event appliers mutate a State. The engine reads it through the
// Reader interface and receives copies, never pointers into the arena.
package state

import (
	"github.com/roach88/tokenflow/internal/ir"
)

// ElementInstance is one token: an instance of a node (or of the process
// itself) inside a process instance.
type ElementInstance struct {
	Key                  int64
	ProcessInstanceKey   int64
	FlowScopeKey         int64
	ProcessDefinitionKey int64
	BpmnProcessID        string
	Version              int32
	ElementID            string
	ElementType          ir.ElementType
	State                ir.ElementState

	// ActiveChildren counts non-terminal child instances.
	ActiveChildren int
	// ActiveSequenceFlows counts tokens in flight inside this scope: taken
	// flows whose target has not been activated yet, including tokens held
	// by a synchronizing join.
	ActiveSequenceFlows int
	// JobKey is the open job of a service task, or zero.
	JobKey int64
}

// Record rebuilds the process instance record describing e.
func (e ElementInstance) Record() ir.ProcessInstanceRecord {
	return ir.ProcessInstanceRecord{
		BpmnProcessID:        e.BpmnProcessID,
		Version:              e.Version,
		ProcessDefinitionKey: e.ProcessDefinitionKey,
		ProcessInstanceKey:   e.ProcessInstanceKey,
		ElementID:            e.ElementID,
		BpmnElementType:      e.ElementType,
		FlowScopeKey:         e.FlowScopeKey,
	}
}

// IsActive reports whether e is in a non-terminal state.
func (e ElementInstance) IsActive() bool {
	return !e.State.IsTerminal()
}

// Job is an open unit of external work.
type Job struct {
	Key   int64
	State ir.JobState
	ir.JobRecord
}

// Incident is an open incident.
type Incident struct {
	Key int64
	ir.IncidentRecord
}

// Definition is a deployed process definition version.
type Definition struct {
	Key           int64
	BpmnProcessID string
	Version       int32
	Checksum      string
	Graph         *ir.ProcessGraph
}

type mergeKey struct {
	scopeKey  int64
	gatewayID string
}

// State is the mutable projection of a single partition.
type State struct {
	partitionID int32
	keys        *KeyGenerator

	definitions      map[int64]*Definition
	latestDefinition map[string]int64
	versions         map[string]int32

	instances     map[int64]*ElementInstance
	children      map[int64][]int64
	instancesByPI map[int64][]int64

	merges map[mergeKey]map[string]struct{}

	jobs               map[int64]*Job
	incidents          map[int64]*Incident
	incidentsByElement map[int64][]int64

	variables map[int64]ir.IRObject
}

// New creates an empty state for a partition.
func New(partitionID int32) *State {
	return &State{
		partitionID:        partitionID,
		keys:               NewKeyGenerator(partitionID),
		definitions:        make(map[int64]*Definition),
		latestDefinition:   make(map[string]int64),
		versions:           make(map[string]int32),
		instances:          make(map[int64]*ElementInstance),
		children:           make(map[int64][]int64),
		instancesByPI:      make(map[int64][]int64),
		merges:             make(map[mergeKey]map[string]struct{}),
		jobs:               make(map[int64]*Job),
		incidents:          make(map[int64]*Incident),
		incidentsByElement: make(map[int64][]int64),
		variables:          make(map[int64]ir.IRObject),
	}
}

// PartitionID returns the partition this state belongs to.
func (s *State) PartitionID() int32 {
	return s.partitionID
}

// Keys returns the partition's key generator.
func (s *State) Keys() *KeyGenerator {
	return s.keys
}
