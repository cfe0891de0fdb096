package state

import "github.com/roach88/tokenflow/internal/ir"

// Reader is the read-only view of a State handed to processors. Every
// method returns copies.
type Reader interface {
	PartitionID() int32

	Definition(key int64) (Definition, bool)
	LatestDefinition(bpmnProcessID string) (Definition, bool)
	DefinitionByVersion(bpmnProcessID string, version int32) (Definition, bool)
	Definitions() []Definition

	ElementInstance(key int64) (ElementInstance, bool)
	Children(scopeKey int64) []ElementInstance
	ActiveChildren(scopeKey int64) []ElementInstance
	ElementInstances(processInstanceKey int64) []ElementInstance
	ProcessInstanceKeys() []int64

	ArrivedFlows(scopeKey int64, gatewayID string) []string
	HasArrived(scopeKey int64, gatewayID, flowID string) bool

	Job(key int64) (Job, bool)
	Jobs(jobType string) []Job

	Incident(key int64) (Incident, bool)
	IncidentsOf(elementInstanceKey int64) []Incident
	Incidents() []Incident

	Variable(scopeKey int64, name string) (ir.IRValue, bool)
	LocalVariables(scopeKey int64) ir.IRObject
	VisibleVariables(scopeKey int64) ir.IRObject
	DefiningScope(scopeKey int64, name string) (int64, bool)
}

var _ Reader = (*State)(nil)
