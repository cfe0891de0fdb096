package testutil

import "github.com/roach88/tokenflow/internal/ir"

// GraphBuilder assembles process graphs for tests. Nodes added after In
// belong to that sub-process until In("") is called.
type GraphBuilder struct {
	g      ir.ProcessGraph
	parent string
}

// NewGraph starts a graph for process id.
func NewGraph(id string) *GraphBuilder {
	return &GraphBuilder{g: ir.ProcessGraph{ID: id}}
}

// In sets the container for the nodes added next.
func (b *GraphBuilder) In(subProcessID string) *GraphBuilder {
	b.parent = subProcessID
	return b
}

// Node adds a node of any type.
func (b *GraphBuilder) Node(id string, typ ir.ElementType) *GraphBuilder {
	b.g.Nodes = append(b.g.Nodes, ir.Node{ID: id, Type: typ, ParentID: b.parent})
	return b
}

// Start adds a start event.
func (b *GraphBuilder) Start(id string) *GraphBuilder { return b.Node(id, ir.ElementStartEvent) }

// End adds an end event.
func (b *GraphBuilder) End(id string) *GraphBuilder { return b.Node(id, ir.ElementEndEvent) }

// ServiceTask adds a service task with a job type (static or "=expr").
func (b *GraphBuilder) ServiceTask(id, jobType string) *GraphBuilder {
	b.g.Nodes = append(b.g.Nodes, ir.Node{ID: id, Type: ir.ElementServiceTask, ParentID: b.parent, JobType: jobType})
	return b
}

// Flow adds an unconditional sequence flow.
func (b *GraphBuilder) Flow(id, source, target string) *GraphBuilder {
	b.g.Flows = append(b.g.Flows, ir.SequenceFlow{ID: id, SourceID: source, TargetID: target})
	return b
}

// Conditional adds a sequence flow guarded by condition.
func (b *GraphBuilder) Conditional(id, source, target, condition string) *GraphBuilder {
	b.g.Flows = append(b.g.Flows, ir.SequenceFlow{ID: id, SourceID: source, TargetID: target, Condition: condition})
	return b
}

// Default adds a default sequence flow, optionally with a condition.
func (b *GraphBuilder) Default(id, source, target, condition string) *GraphBuilder {
	b.g.Flows = append(b.g.Flows, ir.SequenceFlow{ID: id, SourceID: source, TargetID: target, Condition: condition, IsDefault: true})
	return b
}

// Build returns the indexed graph.
func (b *GraphBuilder) Build() *ir.ProcessGraph {
	g := b.g
	g.Nodes = append([]ir.Node(nil), b.g.Nodes...)
	g.Flows = append([]ir.SequenceFlow(nil), b.g.Flows...)
	return g.Index()
}

// LinearGraph is start → task(jobType) → end.
func LinearGraph(id, jobType string) *ir.ProcessGraph {
	return NewGraph(id).
		Start("start").
		ServiceTask("task", jobType).
		End("end").
		Flow("f1", "start", "task").
		Flow("f2", "task", "end").
		Build()
}

// InclusiveSplitGraph forks on str: s1 when it contains "a", s2 for "b",
// and the default s3 (itself guarded by "c") otherwise.
func InclusiveSplitGraph(id string) *ir.ProcessGraph {
	return NewGraph(id).
		Start("start").
		Node("inclusive", ir.ElementInclusiveGateway).
		End("end1").
		End("end2").
		End("end3").
		Flow("f0", "start", "inclusive").
		Conditional("s1", "inclusive", "end1", `= str contains "a"`).
		Conditional("s2", "inclusive", "end2", `= str contains "b"`).
		Default("s3", "inclusive", "end3", `= str contains "c"`).
		Build()
}

// ParallelJoinGraph forks into two service tasks and joins them.
func ParallelJoinGraph(id string) *ir.ProcessGraph {
	return NewGraph(id).
		Start("start").
		Node("fork", ir.ElementParallelGateway).
		ServiceTask("task1", "type1").
		ServiceTask("task2", "type2").
		Node("join", ir.ElementParallelGateway).
		End("end").
		Flow("f0", "start", "fork").
		Flow("f1", "fork", "task1").
		Flow("f2", "fork", "task2").
		Flow("j1", "task1", "join").
		Flow("j2", "task2", "join").
		Flow("f3", "join", "end").
		Build()
}

// LoopJoinGraph feeds a parallel join from a service task (joinFlow2) and
// from an exclusive gateway inside a loop (joinFlow1). The fork sends one
// token straight to the loop gateway and one to a manual task that leads
// back into it, so joinFlow1 is taken twice when retry is false.
func LoopJoinGraph(id string) *ir.ProcessGraph {
	return NewGraph(id).
		Start("start").
		Node("fork", ir.ElementParallelGateway).
		ServiceTask("task", "work").
		Node("loop", ir.ElementExclusiveGateway).
		Node("again", ir.ElementManualTask).
		Node("join", ir.ElementParallelGateway).
		End("end").
		Flow("f0", "start", "fork").
		Flow("f1", "fork", "task").
		Flow("f2", "fork", "loop").
		Flow("f3", "fork", "again").
		Conditional("toAgain", "loop", "again", "= retry").
		Default("joinFlow1", "loop", "join", "").
		Flow("back", "again", "loop").
		Flow("joinFlow2", "task", "join").
		Flow("f4", "join", "end").
		Build()
}

// SubProcessGraph runs a service task inside a sub-process.
func SubProcessGraph(id string) *ir.ProcessGraph {
	return NewGraph(id).
		Start("start").
		Node("sub", ir.ElementSubProcess).
		End("end").
		In("sub").
		Start("subStart").
		ServiceTask("subTask", "inner").
		End("subEnd").
		In("").
		Flow("f1", "start", "sub").
		Flow("f2", "sub", "end").
		Flow("s1", "subStart", "subTask").
		Flow("s2", "subTask", "subEnd").
		Build()
}
