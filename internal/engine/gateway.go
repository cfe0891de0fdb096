package engine

import (
	"fmt"

	"github.com/roach88/tokenflow/internal/expression"
	"github.com/roach88/tokenflow/internal/ir"
)

// forkPolicy decides which outgoing flows a gateway takes.
type forkPolicy int

const (
	forkFirstMatch forkPolicy = iota
	forkAll
	forkAllMatching
)

// joinPolicy decides when an arriving token activates its target.
type joinPolicy int

const (
	joinPassThrough joinPolicy = iota
	joinSynchronize
)

type gatewayKind struct {
	fork forkPolicy
	join joinPolicy
}

var gatewayKinds = map[ir.ElementType]gatewayKind{
	ir.ElementExclusiveGateway: {fork: forkFirstMatch, join: joinPassThrough},
	ir.ElementParallelGateway:  {fork: forkAll, join: joinSynchronize},
	ir.ElementInclusiveGateway: {fork: forkAllMatching, join: joinSynchronize},
}

// joinPolicyOf returns how tokens arriving at an element of type t are
// handled. Only gateways synchronize.
func joinPolicyOf(t ir.ElementType) joinPolicy {
	if k, ok := gatewayKinds[t]; ok {
		return k.join
	}
	return joinPassThrough
}

// forkError is a fork decision that could not be made. It becomes an
// incident on the gateway.
type forkError struct {
	errorType ir.ErrorType
	message   string
}

func (e *forkError) Error() string {
	return fmt.Sprintf("%s: %s", e.errorType, e.message)
}

// selectFlows applies policy to the outgoing flows of gatewayID.
func selectFlows(eval *expression.Evaluator, policy forkPolicy, gatewayID string, flows []*ir.SequenceFlow, vars ir.IRObject) ([]*ir.SequenceFlow, *forkError) {
	if len(flows) == 0 {
		return nil, nil
	}

	switch policy {
	case forkAll:
		return flows, nil

	case forkFirstMatch:
		var fallback *ir.SequenceFlow
		for _, f := range flows {
			if f.IsDefault {
				fallback = f
				continue
			}
			ok, err := evaluateCondition(eval, f, vars)
			if err != nil {
				return nil, err
			}
			if ok {
				return []*ir.SequenceFlow{f}, nil
			}
		}
		if fallback != nil {
			return []*ir.SequenceFlow{fallback}, nil
		}
		return nil, noFlowSelected(gatewayID)

	case forkAllMatching:
		var taken []*ir.SequenceFlow
		var fallback *ir.SequenceFlow
		for _, f := range flows {
			if f.IsDefault {
				fallback = f
				if f.Condition == "" {
					continue
				}
			}
			ok, err := evaluateCondition(eval, f, vars)
			if err != nil {
				return nil, err
			}
			if ok {
				taken = append(taken, f)
			}
		}
		if len(taken) > 0 {
			return taken, nil
		}
		if fallback != nil {
			return []*ir.SequenceFlow{fallback}, nil
		}
		return nil, noFlowSelected(gatewayID)
	}
	return nil, &forkError{errorType: ir.ErrorCondition, message: fmt.Sprintf("unknown fork policy %d", policy)}
}

// evaluateCondition treats a flow without a condition as true.
func evaluateCondition(eval *expression.Evaluator, f *ir.SequenceFlow, vars ir.IRObject) (bool, *forkError) {
	if f.Condition == "" {
		return true, nil
	}
	ok, err := eval.EvaluateBool(f.Condition, vars)
	if err != nil {
		return false, &forkError{
			errorType: ir.ErrorExtractValue,
			message:   fmt.Sprintf("failed to evaluate condition of sequence flow %q: %v", f.ID, err),
		}
	}
	return ok, nil
}

func noFlowSelected(gatewayID string) *forkError {
	return &forkError{
		errorType: ir.ErrorCondition,
		message: fmt.Sprintf("expected at least one condition to evaluate to true, or to have a default flow, at gateway %q",
			gatewayID),
	}
}
