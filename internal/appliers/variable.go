package appliers

import (
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/state"
)

func applyVariable(s *state.State, rec ir.Record) error {
	v, err := valueOf[ir.VariableRecord](rec)
	if err != nil {
		return err
	}
	s.SetVariable(v.ScopeKey, v.Name, v.Value)
	return nil
}
