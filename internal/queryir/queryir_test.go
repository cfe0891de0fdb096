package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/tokenflow/internal/ir"
)

func jobCreated(pos, key, piKey int64) ir.Record {
	return ir.Record{
		Position:             pos,
		SourceRecordPosition: pos - 1,
		Key:                  key,
		RecordType:           ir.RecordEvent,
		ValueType:            ir.ValueJob,
		Intent:               ir.IntentCreated,
		RequestID:            "req-1",
		Value:                ir.JobRecord{ProcessInstanceKey: piKey},
	}
}

func TestMatch(t *testing.T) {
	r := jobCreated(7, 20, 10)

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"nil", nil, true},
		{"int equals", Equals{Field: FieldKey, Value: ir.IRInt(20)}, true},
		{"int differs", Equals{Field: FieldKey, Value: ir.IRInt(21)}, false},
		{"wrong literal type", Equals{Field: FieldKey, Value: ir.IRString("20")}, false},
		{"string equals", Equals{Field: FieldValueType, Value: ir.IRString("JOB")}, true},
		{"request id", Equals{Field: FieldRequestID, Value: ir.IRString("req-1")}, true},
		{"instance key", Equals{Field: FieldInstanceKey, Value: ir.IRInt(10)}, true},
		{"source position", Equals{Field: FieldSourcePosition, Value: ir.IRInt(6)}, true},
		{"at least", AtLeast{Field: FieldPosition, Value: 7}, true},
		{"at most", AtMost{Field: FieldPosition, Value: 6}, false},
		{"range on string field", AtLeast{Field: FieldIntent, Value: 0}, false},
		{"empty and", And{}, true},
		{"empty or", Or{}, false},
		{"and", And{Predicates: []Predicate{
			Equals{Field: FieldRecordType, Value: ir.IRString("EVENT")},
			Equals{Field: FieldIntent, Value: ir.IRString("CREATED")},
		}}, true},
		{"and with miss", And{Predicates: []Predicate{
			Equals{Field: FieldRecordType, Value: ir.IRString("EVENT")},
			Equals{Field: FieldIntent, Value: ir.IRString("COMPLETED")},
		}}, false},
		{"or", AnyOf(FieldIntent, ir.IRString("COMPLETED"), ir.IRString("CREATED")), true},
		{"no rejection", Equals{Field: FieldRejectionType, Value: ir.IRString("")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.p, r))
		})
	}
}

func TestMatchRecordWithoutInstance(t *testing.T) {
	deploy := ir.NewCommand(ir.NoKey, ir.IntentCreate, ir.DeploymentRecord{})
	assert.True(t, Match(Equals{Field: FieldInstanceKey, Value: ir.IRInt(ir.NoKey)}, deploy))
	assert.True(t, Match(Equals{Field: FieldSourcePosition, Value: ir.IRInt(ir.NoPosition)}, deploy))
}

func TestFilter(t *testing.T) {
	records := []ir.Record{jobCreated(1, 20, 10), jobCreated(2, 21, 11), jobCreated(3, 22, 10), jobCreated(4, 23, 10)}
	onTen := Equals{Field: FieldInstanceKey, Value: ir.IRInt(10)}

	keys := func(rs []ir.Record) []int64 {
		out := []int64{}
		for _, r := range rs {
			out = append(out, r.Key)
		}
		return out
	}

	assert.Equal(t, []int64{20, 22, 23}, keys(Filter(Select{Filter: onTen}, records)))
	assert.Equal(t, []int64{20, 22}, keys(Filter(Select{Filter: onTen, Limit: 2}, records)))
	assert.Equal(t, []int64{23, 22}, keys(Filter(Select{Filter: onTen, Limit: 2, Descending: true}, records)))
	assert.Equal(t, []int64{20, 21, 22, 23}, keys(Filter(Select{}, records)))
	assert.Empty(t, Filter(Select{Filter: Or{}}, records))
}

func TestAllOf(t *testing.T) {
	eq := Equals{Field: FieldKey, Value: ir.IRInt(1)}
	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))
	assert.Equal(t, eq, AllOf(nil, eq))
	assert.Equal(t, And{Predicates: []Predicate{eq, eq}}, AllOf(eq, nil, eq))
}

func TestAnyOf(t *testing.T) {
	assert.Nil(t, AnyOf(FieldIntent))
	assert.Equal(t, Equals{Field: FieldIntent, Value: ir.IRString("CREATED")}, AnyOf(FieldIntent, ir.IRString("CREATED")))

	or, ok := AnyOf(FieldIntent, ir.IRString("CREATED"), ir.IRString("COMPLETED")).(Or)
	require.True(t, ok)
	assert.Len(t, or.Predicates, 2)
}

func TestValidate(t *testing.T) {
	valid := []Select{
		{},
		{Limit: 10, Descending: true},
		{Filter: AllOf(
			Equals{Field: FieldKey, Value: ir.IRInt(3)},
			AtLeast{Field: FieldPosition, Value: 1},
			AnyOf(FieldIntent, ir.IRString("CREATED"), ir.IRString("COMPLETED")),
		)},
		{Filter: Or{}},
	}
	for _, q := range valid {
		assert.NoError(t, Validate(q), "%+v", q)
	}

	tests := []struct {
		name string
		q    Select
		want string
	}{
		{"negative limit", Select{Limit: -1}, "limit must not be negative"},
		{"unknown field", Select{Filter: Equals{Field: "element_id", Value: ir.IRString("task")}}, `unknown field "element_id"`},
		{"string for int", Select{Filter: Equals{Field: FieldKey, Value: ir.IRString("3")}}, "needs an integer literal"},
		{"int for string", Select{Filter: Equals{Field: FieldIntent, Value: ir.IRInt(3)}}, "needs a string literal"},
		{"bool literal", Select{Filter: Equals{Field: FieldIntent, Value: ir.IRBool(true)}}, "needs a string literal"},
		{"range on string", Select{Filter: AtMost{Field: FieldValueType, Value: 3}}, "range on non-integer field"},
		{"nested nil", Select{Filter: And{Predicates: []Predicate{nil}}}, "filter.and[0]: nil predicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := Validate(Select{
		Limit: -2,
		Filter: Or{Predicates: []Predicate{
			Equals{Field: "nope", Value: ir.IRInt(1)},
			AtLeast{Field: FieldRequestID, Value: 1},
		}},
	})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Contains(t, err.Error(), "filter.or[1]")
}

func TestFields(t *testing.T) {
	for _, f := range Fields {
		assert.True(t, f.Valid(), f)
	}
	assert.False(t, Field("value").Valid())
	assert.True(t, FieldInstanceKey.IsInt())
	assert.False(t, FieldRequestID.IsInt())
}
