package queryir

import "github.com/roach88/tokenflow/internal/ir"

// Field names a queryable record header field.
type Field string

// Queryable fields.
const (
	FieldPosition       Field = "position"
	FieldSourcePosition Field = "source_position"
	FieldKey            Field = "key"
	FieldRecordType     Field = "record_type"
	FieldValueType      Field = "value_type"
	FieldIntent         Field = "intent"
	FieldRejectionType  Field = "rejection_type"
	FieldRequestID      Field = "request_id"
	FieldInstanceKey    Field = "instance_key"
)

// Fields lists every queryable field.
var Fields = []Field{
	FieldPosition,
	FieldSourcePosition,
	FieldKey,
	FieldRecordType,
	FieldValueType,
	FieldIntent,
	FieldRejectionType,
	FieldRequestID,
	FieldInstanceKey,
}

// IsInt reports whether the field holds integers. The other fields hold
// strings.
func (f Field) IsInt() bool {
	switch f {
	case FieldPosition, FieldSourcePosition, FieldKey, FieldInstanceKey:
		return true
	}
	return false
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Predicate is a condition on one record.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select selects the records matching Filter in position order.
//
// A nil Filter matches every record. Limit > 0 keeps only the first Limit
// matches; with Descending set those are the newest ones, returned newest
// first.
type Select struct {
	Filter     Predicate
	Limit      int
	Descending bool
}

// Equals matches records whose field equals Value.
//
//	Equals{Field: FieldIntent, Value: ir.IRString("CREATED")}
type Equals struct {
	Field Field
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// AtLeast matches records whose integer field is >= Value.
type AtLeast struct {
	Field Field
	Value int64
}

func (AtLeast) predicateNode() {}

// AtMost matches records whose integer field is <= Value.
type AtMost struct {
	Field Field
	Value int64
}

func (AtMost) predicateNode() {}

// And matches when every predicate matches. An empty And matches every
// record.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches when any predicate matches. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// AllOf is a shorthand for And that drops nil predicates. It returns nil
// when nothing is left, and the predicate itself when one is left.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// AnyOf returns an Or of Equals predicates on field, one per value, or nil
// when values is empty.
func AnyOf(field Field, values ...ir.IRValue) Predicate {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return Equals{Field: field, Value: values[0]}
	}
	or := Or{Predicates: make([]Predicate, len(values))}
	for i, v := range values {
		or.Predicates[i] = Equals{Field: field, Value: v}
	}
	return or
}
