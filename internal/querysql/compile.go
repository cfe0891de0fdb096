// Package querysql compiles record queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/queryir"
)

// columns maps query fields to columns of the records table.
var columns = map[queryir.Field]string{
	queryir.FieldPosition:       "position",
	queryir.FieldSourcePosition: "source_position",
	queryir.FieldKey:            "record_key",
	queryir.FieldRecordType:     "record_type",
	queryir.FieldValueType:      "value_type",
	queryir.FieldIntent:         "intent",
	queryir.FieldRejectionType:  "rejection_type",
	queryir.FieldRequestID:      "request_id",
	queryir.FieldInstanceKey:    "instance_key",
}

// Compile converts q into the clause that follows "FROM records": an
// optional WHERE, the ORDER BY and an optional LIMIT. Values are always
// passed as parameters, never interpolated.
//
// Every clause orders by position, the primary key, so results are
// deterministic.
func Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	var (
		sql    strings.Builder
		params []any
	)
	if q.Filter != nil {
		where, p, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sql.WriteString("WHERE ")
		sql.WriteString(where)
		sql.WriteString(" ")
		params = p
	}

	if q.Descending {
		sql.WriteString("ORDER BY position DESC")
	} else {
		sql.WriteString("ORDER BY position ASC")
	}
	if q.Limit > 0 {
		sql.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sql.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		param, err := valueToParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return columns[pred.Field] + " = ?", []any{param}, nil
	case queryir.AtLeast:
		return columns[pred.Field] + " >= ?", []any{pred.Value}, nil
	case queryir.AtMost:
		return columns[pred.Field] + " <= ?", []any{pred.Value}, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		return compileJunction(pred.Predicates, " AND ")
	case queryir.Or:
		if len(pred.Predicates) == 0 {
			return "1 = 0", nil, nil
		}
		return compileJunction(pred.Predicates, " OR ")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileJunction(preds []queryir.Predicate, op string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, op) + ")", params, nil
}

// valueToParam converts a literal to a database/sql parameter.
func valueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	default:
		return nil, fmt.Errorf("unsupported literal type for SQL parameter: %T", v)
	}
}
