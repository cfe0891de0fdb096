// Package ir provides the shared representation types of the token-flow engine.
//
// It holds the compiled process graph, the record envelope written to the
// log, the typed record values, variable values and the key layout. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in variable values - use int64 for numbers
//   - Records are ordered by log position only, timestamps are informational
//   - All JSON tags use snake_case
//   - A ProcessGraph is immutable once indexed
package ir
