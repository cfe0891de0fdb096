package engine

// DefaultMaxSteps bounds how many commands one drain processes.
const DefaultMaxSteps = 10000

// stepGuard counts processed commands within one drain.
type stepGuard struct {
	limit   int
	current int
}

func newStepGuard(limit int) *stepGuard {
	return &stepGuard{limit: limit}
}

// check counts one more command and fails once the limit is exceeded.
// A limit <= 0 disables the guard.
func (g *stepGuard) check(position int64) error {
	if g.limit <= 0 {
		return nil
	}
	if g.current >= g.limit {
		return &StepLimitError{Steps: g.current, Limit: g.limit, Position: position}
	}
	g.current++
	return nil
}
