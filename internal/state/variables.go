package state

import "github.com/roach88/tokenflow/internal/ir"

// SetVariable writes a variable into a scope.
func (s *State) SetVariable(scopeKey int64, name string, value ir.IRValue) {
	vars, ok := s.variables[scopeKey]
	if !ok {
		vars = ir.IRObject{}
		s.variables[scopeKey] = vars
	}
	vars[name] = value
}

// Variable reads a variable defined directly on a scope.
func (s *State) Variable(scopeKey int64, name string) (ir.IRValue, bool) {
	v, ok := s.variables[scopeKey][name]
	return v, ok
}

// LocalVariables returns a copy of the variables defined on a scope.
func (s *State) LocalVariables(scopeKey int64) ir.IRObject {
	return s.variables[scopeKey].Clone()
}

// VisibleVariables collects the variables visible from a scope: its own
// and those of every enclosing flow scope, inner definitions shadowing
// outer ones.
func (s *State) VisibleVariables(scopeKey int64) ir.IRObject {
	out := ir.IRObject{}
	for _, key := range s.scopeChain(scopeKey) {
		for name, v := range s.variables[key] {
			if _, shadowed := out[name]; !shadowed {
				out[name] = v
			}
		}
	}
	return out
}

// DefiningScope returns the nearest scope, starting at scopeKey and moving
// outwards, that defines name.
func (s *State) DefiningScope(scopeKey int64, name string) (int64, bool) {
	for _, key := range s.scopeChain(scopeKey) {
		if _, ok := s.variables[key][name]; ok {
			return key, true
		}
	}
	return 0, false
}

func (s *State) scopeChain(scopeKey int64) []int64 {
	var chain []int64
	for key := scopeKey; key > 0; {
		chain = append(chain, key)
		inst, ok := s.instances[key]
		if !ok {
			break
		}
		key = inst.FlowScopeKey
	}
	return chain
}
