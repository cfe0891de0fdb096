package ir

// ElementType is the BPMN element kind of a node or element instance.
type ElementType string

const (
	ElementProcess          ElementType = "PROCESS"
	ElementSubProcess       ElementType = "SUB_PROCESS"
	ElementStartEvent       ElementType = "START_EVENT"
	ElementEndEvent         ElementType = "END_EVENT"
	ElementExclusiveGateway ElementType = "EXCLUSIVE_GATEWAY"
	ElementParallelGateway  ElementType = "PARALLEL_GATEWAY"
	ElementInclusiveGateway ElementType = "INCLUSIVE_GATEWAY"
	ElementServiceTask      ElementType = "SERVICE_TASK"
	ElementManualTask       ElementType = "MANUAL_TASK"
	ElementSequenceFlow     ElementType = "SEQUENCE_FLOW"
)

// ValidNodeTypes lists the element types a graph node may declare.
var ValidNodeTypes = map[ElementType]bool{
	ElementSubProcess:       true,
	ElementStartEvent:       true,
	ElementEndEvent:         true,
	ElementExclusiveGateway: true,
	ElementParallelGateway:  true,
	ElementInclusiveGateway: true,
	ElementServiceTask:      true,
	ElementManualTask:       true,
}

// IsGateway reports whether t is one of the gateway kinds.
func (t ElementType) IsGateway() bool {
	return t == ElementExclusiveGateway || t == ElementParallelGateway || t == ElementInclusiveGateway
}

// IsSynchronizing reports whether t waits for all incoming flows before it
// activates.
func (t ElementType) IsSynchronizing() bool {
	return t == ElementParallelGateway || t == ElementInclusiveGateway
}

// IsContainer reports whether instances of t own child element instances.
func (t ElementType) IsContainer() bool {
	return t == ElementProcess || t == ElementSubProcess
}

// DefaultJobRetries is used when a service task does not declare retries.
const DefaultJobRetries = 3

// Node is a typed vertex of a process graph.
type Node struct {
	ID       string            `json:"id"`
	Type     ElementType       `json:"type"`
	Name     string            `json:"name,omitempty"`
	ParentID string            `json:"parent_id,omitempty"` // enclosing sub-process, empty at process level
	JobType  string            `json:"job_type,omitempty"`  // static value or "=expression"
	Retries  int               `json:"retries,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`

	// Derived by Index from the flow list, in declaration order.
	OutgoingFlowIDs []string `json:"-"`
	IncomingFlowIDs []string `json:"-"`
}

// SequenceFlow is a directed edge between two nodes.
type SequenceFlow struct {
	ID        string `json:"id"`
	SourceID  string `json:"source"`
	TargetID  string `json:"target"`
	Condition string `json:"condition,omitempty"`
	IsDefault bool   `json:"default,omitempty"`
}

// ProcessGraph is the compiled, immutable form of one process definition.
//
// Call Index once after construction or decoding; lookups on an unindexed
// graph index it lazily, which is not safe for concurrent first use.
type ProcessGraph struct {
	ID    string         `json:"id"`
	Name  string         `json:"name,omitempty"`
	Nodes []Node         `json:"nodes"`
	Flows []SequenceFlow `json:"flows"`

	root    Node
	nodes   map[string]int
	flows   map[string]int
	indexed bool
}

// Index computes node lookups and the static incoming/outgoing flow lists.
// It returns g for chaining.
func (g *ProcessGraph) Index() *ProcessGraph {
	g.root = Node{ID: g.ID, Type: ElementProcess, Name: g.Name}
	g.nodes = make(map[string]int, len(g.Nodes))
	g.flows = make(map[string]int, len(g.Flows))

	for i := range g.Nodes {
		g.Nodes[i].OutgoingFlowIDs = nil
		g.Nodes[i].IncomingFlowIDs = nil
		g.nodes[g.Nodes[i].ID] = i
	}
	for i, f := range g.Flows {
		g.flows[f.ID] = i
		if src, ok := g.nodes[f.SourceID]; ok {
			g.Nodes[src].OutgoingFlowIDs = append(g.Nodes[src].OutgoingFlowIDs, f.ID)
		}
		if dst, ok := g.nodes[f.TargetID]; ok {
			g.Nodes[dst].IncomingFlowIDs = append(g.Nodes[dst].IncomingFlowIDs, f.ID)
		}
	}
	g.indexed = true
	return g
}

func (g *ProcessGraph) ensureIndexed() {
	if !g.indexed {
		g.Index()
	}
}

// Root returns the synthetic node standing for the process itself.
func (g *ProcessGraph) Root() *Node {
	g.ensureIndexed()
	return &g.root
}

// Node looks up a node by id. The process id resolves to Root.
func (g *ProcessGraph) Node(id string) (*Node, bool) {
	g.ensureIndexed()
	if id == g.ID {
		return &g.root, true
	}
	i, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Flow looks up a sequence flow by id.
func (g *ProcessGraph) Flow(id string) (*SequenceFlow, bool) {
	g.ensureIndexed()
	i, ok := g.flows[id]
	if !ok {
		return nil, false
	}
	return &g.Flows[i], true
}

// OutgoingFlows returns the flows leaving node id in declaration order.
func (g *ProcessGraph) OutgoingFlows(id string) []*SequenceFlow {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	out := make([]*SequenceFlow, 0, len(n.OutgoingFlowIDs))
	for _, fid := range n.OutgoingFlowIDs {
		f, _ := g.Flow(fid)
		out = append(out, f)
	}
	return out
}

// ContainerOf returns the id of the container that directly holds node id.
func (g *ProcessGraph) ContainerOf(id string) string {
	n, ok := g.Node(id)
	if !ok || n.Type == ElementProcess || n.ParentID == "" {
		return g.ID
	}
	return n.ParentID
}

// Children returns the nodes directly contained in containerID, in
// declaration order.
func (g *ProcessGraph) Children(containerID string) []*Node {
	g.ensureIndexed()
	var out []*Node
	for i := range g.Nodes {
		if g.ContainerOf(g.Nodes[i].ID) == containerID {
			out = append(out, &g.Nodes[i])
		}
	}
	return out
}

// StartEvent returns the first start event of containerID.
func (g *ProcessGraph) StartEvent(containerID string) (*Node, bool) {
	for _, n := range g.Children(containerID) {
		if n.Type == ElementStartEvent {
			return n, true
		}
	}
	return nil, false
}
