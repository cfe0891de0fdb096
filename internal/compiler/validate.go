package compiler

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/multierr"

	"github.com/roach88/tokenflow/internal/expression"
	"github.com/roach88/tokenflow/internal/ir"
)

// Validation codes. E2xx are errors that block deployment; W2xx are
// warnings.
const (
	ErrProcessID          = "E200" // process id is required
	ErrDuplicateID        = "E201" // node and flow ids must be unique
	ErrInvalidNodeType    = "E202" // unknown node type
	ErrFlowEndpoint       = "E203" // flow source or target does not exist
	ErrMultipleDefaults   = "E204" // more than one default flow on a node
	ErrDefaultFlowSource  = "E205" // default flow on a node that is not an exclusive or inclusive gateway
	ErrStartEventCount    = "E206" // a container needs exactly one start event
	ErrMissingJobType     = "E207" // service task without job type
	ErrUnreachableJoin    = "E208" // join incoming flow unreachable from the start event
	ErrCrossContainerFlow = "E209" // flow leaves its container
	ErrUnknownParent      = "E210" // parent is not a sub-process
	ErrInvalidExpression  = "E211" // condition or job type does not compile
	ErrStartEventIncoming = "E212" // start event with incoming flows
	ErrJoinAfterDecision  = "E213" // join fed by different branches of one deciding gateway

	WarnLoopThroughJoin = "W250" // loop feeding or containing a synchronizing join
)

// Severity of a validation finding.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError is one problem found in a process graph.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is the result of validating one graph.
type ValidationErrors []ValidationError

// Errors returns the findings that block deployment.
func (v ValidationErrors) Errors() []ValidationError {
	return v.filter(SeverityError)
}

// Warnings returns the findings that do not block deployment.
func (v ValidationErrors) Warnings() []ValidationError {
	return v.filter(SeverityWarning)
}

func (v ValidationErrors) filter(severity string) []ValidationError {
	var out []ValidationError
	for _, e := range v {
		if e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// Err combines the blocking findings into one error, or returns nil.
func (v ValidationErrors) Err() error {
	var err error
	for _, e := range v.Errors() {
		err = multierr.Append(err, e)
	}
	return err
}

// ValidateGraph checks a process graph before deployment. It returns every
// finding; it does not stop at the first one.
func ValidateGraph(g *ir.ProcessGraph) ValidationErrors {
	var errs ValidationErrors
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Code:     code,
			Severity: SeverityError,
		})
	}

	// E200
	if g.ID == "" {
		add(ErrProcessID, "id", "process id is required")
	}
	g.Index()

	ids := map[string]bool{g.ID: true}
	for _, n := range g.Nodes {
		field := "nodes." + n.ID
		// E201
		if ids[n.ID] {
			add(ErrDuplicateID, field, "duplicate id %q", n.ID)
		}
		ids[n.ID] = true

		// E202
		if !ir.ValidNodeTypes[n.Type] {
			add(ErrInvalidNodeType, field+".type", "unknown node type %q", n.Type)
		}

		// E210
		if n.ParentID != "" {
			if parent, ok := g.Node(n.ParentID); !ok || parent.Type != ir.ElementSubProcess {
				add(ErrUnknownParent, field+".parent", "parent %q is not a sub-process", n.ParentID)
			}
		}

		if n.Type == ir.ElementServiceTask {
			// E207
			if n.JobType == "" {
				add(ErrMissingJobType, field+".job_type", "service task %q must declare a job type", n.ID)
			} else if err := expression.Check(n.JobType); err != nil {
				// E211
				add(ErrInvalidExpression, field+".job_type", "%v", err)
			}
		}

		// E212
		if n.Type == ir.ElementStartEvent && len(n.IncomingFlowIDs) > 0 {
			add(ErrStartEventIncoming, field, "start event %q must not have incoming flows", n.ID)
		}
	}

	defaults := make(map[string]int)
	for i, f := range g.Flows {
		field := fmt.Sprintf("flows[%d]", i)
		// E201
		if ids[f.ID] {
			add(ErrDuplicateID, field+".id", "duplicate id %q", f.ID)
		}
		ids[f.ID] = true

		// E203
		src, srcOK := g.Node(f.SourceID)
		_, dstOK := g.Node(f.TargetID)
		if !srcOK || f.SourceID == g.ID {
			add(ErrFlowEndpoint, field+".source", "flow %q has unknown source %q", f.ID, f.SourceID)
		}
		if !dstOK || f.TargetID == g.ID {
			add(ErrFlowEndpoint, field+".target", "flow %q has unknown target %q", f.ID, f.TargetID)
		}

		// E209
		if srcOK && dstOK && g.ContainerOf(f.SourceID) != g.ContainerOf(f.TargetID) {
			add(ErrCrossContainerFlow, field, "flow %q connects elements of different containers", f.ID)
		}

		if f.IsDefault && srcOK {
			defaults[f.SourceID]++
			// E205
			if src.Type != ir.ElementExclusiveGateway && src.Type != ir.ElementInclusiveGateway {
				add(ErrDefaultFlowSource, field, "default flow %q leaves %s %q; only exclusive and inclusive gateways have default flows",
					f.ID, src.Type, src.ID)
			}
		}

		// E211
		if f.Condition != "" {
			if err := expression.CheckCondition(f.Condition); err != nil {
				add(ErrInvalidExpression, field+".condition", "%v", err)
			}
		}
	}

	// E204
	for _, n := range g.Nodes {
		if defaults[n.ID] > 1 {
			add(ErrMultipleDefaults, "nodes."+n.ID, "node %q has %d default flows", n.ID, defaults[n.ID])
		}
	}

	// E206
	containers := []string{g.ID}
	for _, n := range g.Nodes {
		if n.Type == ir.ElementSubProcess {
			containers = append(containers, n.ID)
		}
	}
	for _, c := range containers {
		starts := 0
		for _, n := range g.Children(c) {
			if n.Type == ir.ElementStartEvent {
				starts++
			}
		}
		if starts != 1 {
			add(ErrStartEventCount, c, "container %q must have exactly one start event, found %d", c, starts)
		}
	}

	// E208
	if len(errs) == 0 {
		for _, c := range containers {
			reachable := reachableFromStart(g, c)
			for _, n := range g.Children(c) {
				if !n.Type.IsSynchronizing() {
					continue
				}
				for _, fid := range n.IncomingFlowIDs {
					f, _ := g.Flow(fid)
					if !reachable[f.SourceID] {
						add(ErrUnreachableJoin, "nodes."+n.ID,
							"incoming flow %q of join %q is unreachable from the start event, so the join can never fire",
							fid, n.ID)
					}
				}
			}
		}
	}

	// E213
	if len(errs) == 0 {
		for i := range g.Nodes {
			if g.Nodes[i].Type.IsSynchronizing() {
				checkJoinBranches(g, &g.Nodes[i], add)
			}
		}
	}

	for _, w := range AnalyzeLoops(g) {
		if w.Level != SeverityWarning {
			continue
		}
		errs = append(errs, ValidationError{
			Field:    w.Path[0],
			Message:  w.Message,
			Code:     WarnLoopThroughJoin,
			Severity: SeverityWarning,
		})
	}

	return errs
}

// reachableFromStart returns the nodes of container reachable from its
// start event.
func reachableFromStart(g *ir.ProcessGraph, container string) map[string]bool {
	seen := make(map[string]bool)
	start, ok := g.StartEvent(container)
	if !ok {
		return seen
	}
	queue := []string{start.ID}
	seen[start.ID] = true
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, f := range g.OutgoingFlows(id) {
			if !seen[f.TargetID] {
				seen[f.TargetID] = true
				queue = append(queue, f.TargetID)
			}
		}
	}
	return seen
}

// decides reports whether a gateway may take only some of its outgoing
// flows.
func decides(g *ir.ProcessGraph, id string) bool {
	n, ok := g.Node(id)
	if !ok {
		return false
	}
	out := g.OutgoingFlows(id)
	if len(out) < 2 {
		return false
	}
	switch n.Type {
	case ir.ElementExclusiveGateway:
		return true
	case ir.ElementInclusiveGateway:
		for _, f := range out {
			if f.Condition != "" || f.IsDefault {
				return true
			}
		}
	}
	return false
}

// branchesInto walks back from flowID and returns, per deciding gateway
// on the way, the outgoing flows of that gateway the walk came through.
// The walk stops at the join itself.
func branchesInto(g *ir.ProcessGraph, join, flowID string) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	seen := map[string]bool{flowID: true}
	queue := []string{flowID}
	for len(queue) > 0 {
		f, _ := g.Flow(queue[0])
		queue = queue[1:]
		if f.SourceID == join {
			continue
		}
		if decides(g, f.SourceID) {
			if out[f.SourceID] == nil {
				out[f.SourceID] = make(map[string]bool)
			}
			out[f.SourceID][f.ID] = true
		}
		src, _ := g.Node(f.SourceID)
		for _, in := range src.IncomingFlowIDs {
			if !seen[in] {
				seen[in] = true
				queue = append(queue, in)
			}
		}
	}
	return out
}

// checkJoinBranches reports a join whose incoming flows are reached
// through different branches of the same deciding gateway. Once that
// gateway picks one branch, the other incoming flows never receive a token
// and the join waits forever.
func checkJoinBranches(g *ir.ProcessGraph, join *ir.Node, add func(code, field, format string, args ...any)) {
	if len(join.IncomingFlowIDs) < 2 {
		return
	}
	branches := make([]map[string]map[string]bool, len(join.IncomingFlowIDs))
	for i, fid := range join.IncomingFlowIDs {
		branches[i] = branchesInto(g, join.ID, fid)
	}
	reported := make(map[string]bool)
	for i := range branches {
		for j := i + 1; j < len(branches); j++ {
			for _, gw := range slices.Sorted(maps.Keys(branches[i])) {
				b, ok := branches[j][gw]
				if !ok || reported[gw] || maps.Equal(branches[i][gw], b) {
					continue
				}
				reported[gw] = true
				node, _ := g.Node(gw)
				add(ErrJoinAfterDecision, "nodes."+join.ID,
					"join %q waits for flows %q and %q, which lie on different branches of %s %q; the join can stall",
					join.ID, join.IncomingFlowIDs[i], join.IncomingFlowIDs[j], node.Type, gw)
			}
		}
	}
}
