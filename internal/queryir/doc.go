// Package queryir describes queries over the record log independently of
// the log backend.
//
// A query selects records by their header fields: position, source
// position, key, record type, value type, intent, rejection type, request
// id and the process instance a record belongs to. Backends evaluate it in
// their own way:
//
//	[Select] → querysql.Compile → SQLite WHERE clause (store)
//	         → Filter           → in-memory scan (bolt, memory logs)
//
// Both paths return records in position order and agree on every query
// that passes Validate.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so backends can switch over the
// predicate types exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case AtLeast:
//	case AtMost:
//	case And:
//	case Or:
//	}
//
// Literal values are ir.IRValue: IRInt for the integer fields and IRString
// for the others.
package queryir
