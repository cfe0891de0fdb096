// Package logstream defines the record log the engine appends to and
// replays from, plus an in-memory implementation and a sequential reader.
//
// Positions are assigned by the log on append, start at 1 and are strictly
// increasing. A batch passed to one Append call is stored atomically.
package logstream

import (
	"context"
	"errors"

	"github.com/roach88/tokenflow/internal/ir"
)

// ErrClosed is returned by operations on a closed log.
var ErrClosed = errors.New("log closed")

// Log is an append-only sequence of records.
type Log interface {
	// Append stores records as one batch and returns them with positions
	// assigned.
	Append(ctx context.Context, records ...ir.Record) ([]ir.Record, error)

	// ReadFrom returns up to limit records with Position >= position in
	// position order. A limit <= 0 means no limit.
	ReadFrom(ctx context.Context, position int64, limit int) ([]ir.Record, error)

	// LastPosition returns the position of the newest record, or 0 for an
	// empty log.
	LastPosition(ctx context.Context) (int64, error)

	Close() error
}
