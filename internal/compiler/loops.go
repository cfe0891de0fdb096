package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/tokenflow/internal/ir"
)

// LoopWarning describes a loop in a process graph.
//
// Loops are legal. A loop that feeds or contains a synchronizing join is
// reported at warning level: the join counts each incoming flow once, so
// repeated arrivals over the same flow are absorbed.
type LoopWarning struct {
	Path    []string `json:"path"` // ["a", "b", "a"]
	Message string   `json:"message"`
	Level   string   `json:"level"` // SeverityWarning or "info"
}

// AnalyzeLoops reports every loop of g, one per strongly connected set of
// nodes, ordered by the first node of the loop path.
func AnalyzeLoops(g *ir.ProcessGraph) []LoopWarning {
	succ := successorsOf(g)
	var warnings []LoopWarning
	for _, comp := range stronglyConnected(succ) {
		if len(comp) == 1 && !slices.Contains(succ[comp[0]], comp[0]) {
			continue
		}
		warnings = append(warnings, describeLoop(g, comp, succ))
	}
	slices.SortFunc(warnings, func(a, b LoopWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// successors maps a node id to the targets of its outgoing flows.
type successors map[string][]string

func successorsOf(g *ir.ProcessGraph) successors {
	succ := make(successors, len(g.Nodes))
	for _, n := range g.Nodes {
		succ[n.ID] = nil
	}
	for _, f := range g.Flows {
		if _, known := succ[f.SourceID]; known {
			succ[f.SourceID] = append(succ[f.SourceID], f.TargetID)
		}
	}
	return succ
}

// sccState is the bookkeeping of one run of Tarjan's algorithm.
type sccState struct {
	succ  successors
	next  int
	index map[string]int
	low   map[string]int
	stack []string
	held  map[string]bool
	out   [][]string
}

// stronglyConnected returns the strongly connected components of succ.
// Roots are tried in sorted order, so the result is the same on every run.
func stronglyConnected(succ successors) [][]string {
	s := &sccState{
		succ:  succ,
		index: make(map[string]int, len(succ)),
		low:   make(map[string]int, len(succ)),
		held:  make(map[string]bool, len(succ)),
	}
	for _, id := range slices.Sorted(maps.Keys(succ)) {
		if _, seen := s.index[id]; !seen {
			s.visit(id)
		}
	}
	return s.out
}

func (s *sccState) visit(v string) {
	s.index[v], s.low[v] = s.next, s.next
	s.next++
	s.stack = append(s.stack, v)
	s.held[v] = true

	for _, w := range s.succ[v] {
		if _, seen := s.index[w]; !seen {
			s.visit(w)
			s.low[v] = min(s.low[v], s.low[w])
		} else if s.held[w] {
			s.low[v] = min(s.low[v], s.index[w])
		}
	}
	if s.low[v] != s.index[v] {
		return
	}

	var comp []string
	for {
		top := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.held[top] = false
		comp = append(comp, top)
		if top == v {
			break
		}
	}
	s.out = append(s.out, comp)
}

func describeLoop(g *ir.ProcessGraph, comp []string, succ successors) LoopWarning {
	slices.Sort(comp)
	path := loopPath(comp, succ)
	rendered := strings.Join(path, " → ")
	if join, ok := joinNear(g, comp, succ); ok {
		return LoopWarning{
			Path:    path,
			Message: fmt.Sprintf("loop %s feeds synchronizing join %q", rendered, join),
			Level:   SeverityWarning,
		}
	}
	return LoopWarning{Path: path, Message: "loop detected: " + rendered, Level: "info"}
}

// joinNear returns a synchronizing gateway that is part of the component or
// a direct successor of one of its nodes.
func joinNear(g *ir.ProcessGraph, comp []string, succ successors) (string, bool) {
	for _, id := range comp {
		for _, candidate := range append([]string{id}, succ[id]...) {
			if n, ok := g.Node(candidate); ok && n.Type.IsSynchronizing() {
				return candidate, true
			}
		}
	}
	return "", false
}

// loopPath follows flows inside comp from its first node back to itself,
// preferring nodes not yet on the path. A single node yields [a, a].
func loopPath(comp []string, succ successors) []string {
	start := comp[0]
	path := []string{start}
	onPath := map[string]bool{start: true}
	for cur := start; ; {
		next := ""
		for _, w := range succ[cur] {
			if w == start || (slices.Contains(comp, w) && !onPath[w]) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		onPath[next] = true
		cur = next
	}
}
