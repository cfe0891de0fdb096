package state

import "sort"

// ArrivedFlows returns the ids of the incoming flows a synchronizing
// gateway has received inside a flow scope, sorted.
func (s *State) ArrivedFlows(scopeKey int64, gatewayID string) []string {
	set := s.merges[mergeKey{scopeKey, gatewayID}]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasArrived reports whether flowID is already held by the gateway.
func (s *State) HasArrived(scopeKey int64, gatewayID, flowID string) bool {
	_, ok := s.merges[mergeKey{scopeKey, gatewayID}][flowID]
	return ok
}

// AddArrival records a token arriving at a synchronizing gateway. It
// returns false when the flow was already held.
func (s *State) AddArrival(scopeKey int64, gatewayID, flowID string) bool {
	k := mergeKey{scopeKey, gatewayID}
	set, ok := s.merges[k]
	if !ok {
		set = make(map[string]struct{})
		s.merges[k] = set
	}
	if _, dup := set[flowID]; dup {
		return false
	}
	set[flowID] = struct{}{}
	return true
}

// ClearMerge forgets the tokens held by a gateway.
func (s *State) ClearMerge(scopeKey int64, gatewayID string) {
	delete(s.merges, mergeKey{scopeKey, gatewayID})
}

// ClearScopeMerges forgets every merge record of a flow scope.
func (s *State) ClearScopeMerges(scopeKey int64) {
	for k := range s.merges {
		if k.scopeKey == scopeKey {
			delete(s.merges, k)
		}
	}
}
