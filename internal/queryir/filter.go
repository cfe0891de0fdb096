package queryir

import (
	"slices"

	"github.com/roach88/tokenflow/internal/ir"
)

// Filter evaluates q over records, which must be in position order. It is
// the reference evaluation for logs without a query engine of their own.
func Filter(q Select, records []ir.Record) []ir.Record {
	var out []ir.Record
	if q.Descending {
		for i := len(records) - 1; i >= 0; i-- {
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
			if Match(q.Filter, records[i]) {
				out = append(out, records[i])
			}
		}
		return out
	}
	for _, r := range records {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		if Match(q.Filter, r) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether r satisfies p. A nil predicate matches.
func Match(p Predicate, r ir.Record) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		if pred.Field.IsInt() {
			want, ok := pred.Value.(ir.IRInt)
			return ok && intField(pred.Field, r) == int64(want)
		}
		want, ok := pred.Value.(ir.IRString)
		return ok && stringField(pred.Field, r) == string(want)
	case AtLeast:
		return pred.Field.IsInt() && intField(pred.Field, r) >= pred.Value
	case AtMost:
		return pred.Field.IsInt() && intField(pred.Field, r) <= pred.Value
	case And:
		return !slices.ContainsFunc(pred.Predicates, func(p Predicate) bool { return !Match(p, r) })
	case Or:
		return slices.ContainsFunc(pred.Predicates, func(p Predicate) bool { return Match(p, r) })
	}
	return false
}

func intField(f Field, r ir.Record) int64 {
	switch f {
	case FieldPosition:
		return r.Position
	case FieldSourcePosition:
		return r.SourceRecordPosition
	case FieldKey:
		return r.Key
	case FieldInstanceKey:
		return r.InstanceKey()
	}
	return 0
}

func stringField(f Field, r ir.Record) string {
	switch f {
	case FieldRecordType:
		return string(r.RecordType)
	case FieldValueType:
		return string(r.ValueType)
	case FieldIntent:
		return string(r.Intent)
	case FieldRejectionType:
		return string(r.RejectionType)
	case FieldRequestID:
		return r.RequestID
	}
	return ""
}
