package logstream

import (
	"context"

	"github.com/roach88/tokenflow/internal/ir"
)

// DefaultBatchSize is how many records a Reader fetches per read.
const DefaultBatchSize = 256

// Reader walks a log sequentially from a starting position.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	log       Log
	next      int64
	batchSize int
	buf       []ir.Record
}

// NewReader creates a reader whose first record is the one at position
// from (or the first after it).
func NewReader(log Log, from int64) *Reader {
	if from < 1 {
		from = 1
	}
	return &Reader{log: log, next: from, batchSize: DefaultBatchSize}
}

// Next returns the next record. ok is false when the reader has caught up
// with the log; records appended later are returned by subsequent calls.
func (r *Reader) Next(ctx context.Context) (rec ir.Record, ok bool, err error) {
	if len(r.buf) == 0 {
		r.buf, err = r.log.ReadFrom(ctx, r.next, r.batchSize)
		if err != nil {
			return ir.Record{}, false, err
		}
		if len(r.buf) == 0 {
			return ir.Record{}, false, nil
		}
	}
	rec, r.buf = r.buf[0], r.buf[1:]
	r.next = rec.Position + 1
	return rec, true, nil
}

// Seek repositions the reader.
func (r *Reader) Seek(position int64) {
	if position < 1 {
		position = 1
	}
	r.next = position
	r.buf = nil
}

// Position returns the position of the record Next will look for.
func (r *Reader) Position() int64 {
	return r.next
}

// ReadAll returns every record of a log from position 1.
func ReadAll(ctx context.Context, log Log) ([]ir.Record, error) {
	var out []ir.Record
	r := NewReader(log, 1)
	for {
		rec, ok, err := r.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
