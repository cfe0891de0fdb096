package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/queryir"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		q          queryir.Select
		wantSQL    string
		wantParams []any
	}{
		{
			name:    "no filter",
			q:       queryir.Select{},
			wantSQL: "ORDER BY position ASC",
		},
		{
			name:       "equals",
			q:          queryir.Select{Filter: queryir.Equals{Field: queryir.FieldInstanceKey, Value: ir.IRInt(42)}},
			wantSQL:    "WHERE instance_key = ? ORDER BY position ASC",
			wantParams: []any{int64(42)},
		},
		{
			name:       "key column",
			q:          queryir.Select{Filter: queryir.Equals{Field: queryir.FieldKey, Value: ir.IRInt(7)}},
			wantSQL:    "WHERE record_key = ? ORDER BY position ASC",
			wantParams: []any{int64(7)},
		},
		{
			name: "and of range",
			q: queryir.Select{Filter: queryir.AllOf(
				queryir.AtLeast{Field: queryir.FieldPosition, Value: 10},
				queryir.AtMost{Field: queryir.FieldPosition, Value: 20},
			)},
			wantSQL:    "WHERE (position >= ? AND position <= ?) ORDER BY position ASC",
			wantParams: []any{int64(10), int64(20)},
		},
		{
			name: "or nested in and",
			q: queryir.Select{Filter: queryir.AllOf(
				queryir.Equals{Field: queryir.FieldValueType, Value: ir.IRString("JOB")},
				queryir.AnyOf(queryir.FieldIntent, ir.IRString("CREATED"), ir.IRString("FAILED")),
			)},
			wantSQL:    "WHERE (value_type = ? AND (intent = ? OR intent = ?)) ORDER BY position ASC",
			wantParams: []any{"JOB", "CREATED", "FAILED"},
		},
		{
			name:       "limit descending",
			q:          queryir.Select{Limit: 5, Descending: true},
			wantSQL:    "ORDER BY position DESC LIMIT ?",
			wantParams: []any{5},
		},
		{
			name:    "empty and",
			q:       queryir.Select{Filter: queryir.And{}},
			wantSQL: "WHERE 1 = 1 ORDER BY position ASC",
		},
		{
			name:    "empty or",
			q:       queryir.Select{Filter: queryir.Or{}},
			wantSQL: "WHERE 1 = 0 ORDER BY position ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := Compile(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompileNeverInterpolates(t *testing.T) {
	injection := ir.IRString("x' OR '1'='1")
	sql, params, err := Compile(queryir.Select{
		Filter: queryir.Equals{Field: queryir.FieldRequestID, Value: injection},
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "'")
	assert.Equal(t, "WHERE request_id = ? ORDER BY position ASC", sql)
	assert.Equal(t, []any{string(injection)}, params)
}

func TestCompileRejectsInvalidQueries(t *testing.T) {
	_, _, err := Compile(queryir.Select{Filter: queryir.Equals{Field: "value", Value: ir.IRString("x")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")

	_, _, err = Compile(queryir.Select{Limit: -1})
	require.Error(t, err)
}

func TestEveryFieldHasAColumn(t *testing.T) {
	for _, f := range queryir.Fields {
		assert.NotEmpty(t, columns[f], f)
	}
}
