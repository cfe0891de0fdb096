// Package store provides a SQLite-backed durable record log.
//
// A Store implements logstream.Log. Each partition owns one database file
// holding a single append-only table of records.
//
// # Guarantees
//
// Positions:
//   - Assigned on append, starting at 1, strictly increasing
//   - A batch is inserted in one transaction and receives contiguous
//     positions
//
// Deterministic reads:
//   - Every query orders by position ASC
//   - Values are stored as canonical JSON so that identical records
//     produce identical bytes
//
// # Connection
//
// A partition database is used through a single connection in WAL mode
// with synchronous=NORMAL and a 5 second busy timeout. Open brings older
// files up to date by running the pending entries of the migrations table,
// tracked in PRAGMA user_version. Close checkpoints the WAL so the database
// file is self-contained afterwards.
//
// # Queries
//
// Find evaluates a queryir.Select by compiling it with querysql; it returns
// the same records as queryir.Filter over ReadFrom.
package store
