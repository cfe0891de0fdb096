// Package expression evaluates condition and value expressions against a
// variable scope using expr-lang.
//
// Text starting with "=" is an expression; anything else is a static value
// when a value is expected. Conditions are always expressions, with or
// without the leading "=".
package expression

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/jellydator/ttlcache/v3"

	"github.com/roach88/tokenflow/internal/ir"
)

const (
	defaultCacheTTL      = 10 * time.Minute
	defaultCacheCapacity = 1024
)

// EvalError reports an expression that could not be compiled, could not be
// run, or produced a value of the wrong type.
type EvalError struct {
	Expression string
	Message    string
	Err        error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to evaluate expression '%s': %s: %v", e.Expression, e.Message, e.Err)
	}
	return fmt.Sprintf("failed to evaluate expression '%s': %s", e.Expression, e.Message)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsEvalError checks if err is an EvalError.
func IsEvalError(err error) bool {
	var evalErr *EvalError
	return errors.As(err, &evalErr)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCacheTTL sets how long a compiled program stays cached after its last
// use.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Evaluator) {
		e.ttl = ttl
	}
}

// WithCacheCapacity bounds the number of cached programs.
func WithCacheCapacity(n uint64) Option {
	return func(e *Evaluator) {
		e.capacity = n
	}
}

// Evaluator compiles expressions once and caches the programs by source.
// It is safe for concurrent use.
type Evaluator struct {
	ttl      time.Duration
	capacity uint64
	programs *ttlcache.Cache[string, *vm.Program]
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		ttl:      defaultCacheTTL,
		capacity: defaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.programs = ttlcache.New(
		ttlcache.WithTTL[string, *vm.Program](e.ttl),
		ttlcache.WithCapacity[string, *vm.Program](e.capacity),
	)
	return e
}

// IsExpression reports whether s is an expression rather than a static value.
func IsExpression(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "=")
}

func stripPrefix(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "="))
}

// Evaluate runs an expression against vars and converts the result into an
// IRValue. A static value evaluates to itself as a string.
func (e *Evaluator) Evaluate(expression string, vars ir.IRObject) (ir.IRValue, error) {
	if !IsExpression(expression) {
		return ir.IRString(expression), nil
	}
	return e.run(stripPrefix(expression), vars)
}

// EvaluateBool evaluates a condition. The result must be a boolean.
func (e *Evaluator) EvaluateBool(expression string, vars ir.IRObject) (bool, error) {
	source := stripPrefix(expression)
	v, err := e.run(source, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, &EvalError{
			Expression: source,
			Message:    fmt.Sprintf("expected result to be a boolean, but was %s", describe(v)),
		}
	}
	return bool(b), nil
}

// EvaluateString evaluates a static value or an expression that must
// produce a non-empty string.
func (e *Evaluator) EvaluateString(expression string, vars ir.IRObject) (string, error) {
	if !IsExpression(expression) {
		return expression, nil
	}
	source := stripPrefix(expression)
	v, err := e.run(source, vars)
	if err != nil {
		return "", err
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return "", &EvalError{
			Expression: source,
			Message:    fmt.Sprintf("expected result to be a string, but was %s", describe(v)),
		}
	}
	if s == "" {
		return "", &EvalError{Expression: source, Message: "expected a non-empty string"}
	}
	return string(s), nil
}

func (e *Evaluator) run(source string, vars ir.IRObject) (ir.IRValue, error) {
	if source == "" {
		return nil, &EvalError{Expression: source, Message: "expression is empty"}
	}

	program, err := e.compile(source)
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = ir.ToNative(v)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, &EvalError{Expression: source, Message: "evaluation failed", Err: err}
	}

	value, err := ir.FromNative(out)
	if err != nil {
		return nil, &EvalError{Expression: source, Message: "unsupported result", Err: err}
	}
	return value, nil
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	if item := e.programs.Get(source); item != nil {
		return item.Value(), nil
	}

	// now() would make a decision depend on wall-clock time.
	program, err := expr.Compile(source, expr.DisableBuiltin("now"))
	if err != nil {
		return nil, &EvalError{Expression: source, Message: "invalid expression", Err: err}
	}
	e.programs.Set(source, program, ttlcache.DefaultTTL)
	return program, nil
}

// Cached reports how many compiled programs are held.
func (e *Evaluator) Cached() int {
	return e.programs.Len()
}

func describe(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRNull:
		return "null"
	case ir.IRString:
		return "a string"
	case ir.IRInt:
		return "a number"
	case ir.IRBool:
		return "a boolean"
	case ir.IRArray:
		return "a list"
	case ir.IRObject:
		return "a context"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Check compiles a value expression without running it. Static values
// always pass.
func Check(expression string) error {
	if !IsExpression(expression) {
		return nil
	}
	return check(stripPrefix(expression))
}

// CheckCondition compiles a condition without running it.
func CheckCondition(condition string) error {
	return check(stripPrefix(condition))
}

func check(source string) error {
	if source == "" {
		return &EvalError{Expression: source, Message: "expression is empty"}
	}
	if _, err := expr.Compile(source, expr.DisableBuiltin("now")); err != nil {
		return &EvalError{Expression: source, Message: "invalid expression", Err: err}
	}
	return nil
}
