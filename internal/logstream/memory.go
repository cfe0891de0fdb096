package logstream

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/tokenflow/internal/ir"
)

// MemoryLog keeps records in memory. It backs tests, the scenario harness
// and dry runs of the CLI.
type MemoryLog struct {
	mu      sync.RWMutex
	seq     *Sequencer
	records []ir.Record
	closed  bool
}

// NewMemoryLog creates an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{seq: NewSequencer()}
}

// NewMemoryLogFrom creates a log pre-filled with records that already
// carry positions, as read back from another log.
func NewMemoryLogFrom(records []ir.Record) *MemoryLog {
	l := &MemoryLog{records: append([]ir.Record(nil), records...)}
	var last int64
	if n := len(records); n > 0 {
		last = records[n-1].Position
	}
	l.seq = NewSequencerAt(last)
	return l
}

func (l *MemoryLog) Append(ctx context.Context, records ...ir.Record) ([]ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	out := make([]ir.Record, len(records))
	for i, r := range records {
		r.Position = l.seq.Next()
		out[i] = r
	}
	l.records = append(l.records, out...)
	return out, nil
}

func (l *MemoryLog) ReadFrom(ctx context.Context, position int64, limit int) ([]ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	i := sort.Search(len(l.records), func(i int) bool { return l.records[i].Position >= position })
	end := len(l.records)
	if limit > 0 && i+limit < end {
		end = i + limit
	}
	return append([]ir.Record(nil), l.records[i:end]...), nil
}

func (l *MemoryLog) LastPosition(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq.Current(), nil
}

// Records returns a copy of every record.
func (l *MemoryLog) Records() []ir.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]ir.Record(nil), l.records...)
}

func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

var _ Log = (*MemoryLog)(nil)
