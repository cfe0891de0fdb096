package compiler

import (
	"fmt"
	"math"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tokenflow/internal/ir"
)

// CompileProcess parses a CUE value into a ProcessGraph.
//
// The value is the process struct itself; its label becomes the process
// id unless an explicit id is given:
//
//	process: order: {
//		name: "Order"
//		nodes: {
//			start: type: "START_EVENT"
//			ship: {type: "SERVICE_TASK", job_type: "ship", retries: 5}
//			done: type: "END_EVENT"
//		}
//		flows: [
//			{id: "f1", source: "start", target: "ship"},
//			{id: "f2", source: "ship", target: "done"},
//		]
//	}
//
// Nodes keep their declaration order, which is the order start events are
// looked up in. Flows are a list so that their order is the evaluation
// order of conditions.
func CompileProcess(v cue.Value) (*ir.ProcessGraph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	g := &ir.ProcessGraph{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		g.ID = labels[len(labels)-1].Unquoted()
	}
	if id, ok, err := optionalString(v, "id"); err != nil {
		return nil, err
	} else if ok {
		g.ID = id
	}
	if g.ID == "" {
		return nil, &CompileError{Field: "id", Message: "process id is required", Pos: v.Pos()}
	}
	name, _, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}
	g.Name = name

	g.Nodes, err = parseNodes(v)
	if err != nil {
		return nil, err
	}
	g.Flows, err = parseFlows(v)
	if err != nil {
		return nil, err
	}
	return g.Index(), nil
}

func parseNodes(v cue.Value) ([]ir.Node, error) {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, &CompileError{Field: "nodes", Message: "at least one node is required", Pos: v.Pos()}
	}
	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []ir.Node
	for iter.Next() {
		node, err := parseNode(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseNode(id string, v cue.Value) (ir.Node, error) {
	node := ir.Node{ID: id}

	typ, ok, err := optionalString(v, "type")
	if err != nil {
		return node, err
	}
	if !ok {
		return node, &CompileError{Field: "nodes." + id + ".type", Message: "node type is required", Pos: v.Pos()}
	}
	node.Type = ir.ElementType(strings.ToUpper(typ))

	if node.Name, _, err = optionalString(v, "name"); err != nil {
		return node, err
	}
	if node.ParentID, _, err = optionalString(v, "parent"); err != nil {
		return node, err
	}
	if node.JobType, _, err = optionalString(v, "job_type"); err != nil {
		return node, err
	}

	if r := v.LookupPath(cue.ParsePath("retries")); r.Exists() {
		n, err := r.Int64()
		if err != nil {
			return node, formatCUEError(err)
		}
		if n < 0 || n > math.MaxInt32 {
			return node, &CompileError{
				Field:   "nodes." + id + ".retries",
				Message: fmt.Sprintf("retries must be between 0 and %d, got %d", math.MaxInt32, n),
				Pos:     r.Pos(),
			}
		}
		node.Retries = int(n)
	}

	if h := v.LookupPath(cue.ParsePath("headers")); h.Exists() {
		iter, err := h.Fields()
		if err != nil {
			return node, formatCUEError(err)
		}
		node.Headers = make(map[string]string)
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return node, &CompileError{
					Field:   fmt.Sprintf("nodes.%s.headers.%s", id, iter.Selector().Unquoted()),
					Message: "header values must be strings",
					Pos:     iter.Value().Pos(),
				}
			}
			node.Headers[iter.Selector().Unquoted()] = s
		}
	}
	return node, nil
}

func parseFlows(v cue.Value) ([]ir.SequenceFlow, error) {
	flowsVal := v.LookupPath(cue.ParsePath("flows"))
	if !flowsVal.Exists() {
		return nil, nil
	}
	list, err := flowsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var flows []ir.SequenceFlow
	for i := 0; list.Next(); i++ {
		item := list.Value()
		field := fmt.Sprintf("flows[%d]", i)

		var f ir.SequenceFlow
		for _, req := range []struct {
			name string
			dst  *string
		}{{"id", &f.ID}, {"source", &f.SourceID}, {"target", &f.TargetID}} {
			s, ok, err := optionalString(item, req.name)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &CompileError{Field: field + "." + req.name, Message: req.name + " is required", Pos: item.Pos()}
			}
			*req.dst = s
		}
		if f.Condition, _, err = optionalString(item, "condition"); err != nil {
			return nil, err
		}
		if d := item.LookupPath(cue.ParsePath("default")); d.Exists() {
			if f.IsDefault, err = d.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		flows = append(flows, f)
	}
	return flows, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
