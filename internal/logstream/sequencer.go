package logstream

import "sync/atomic"

// Sequencer hands out strictly increasing log positions.
//
// Thread-safety: Sequencer is safe for concurrent use (atomic operations).
// Logs still serialize appends so that a batch receives contiguous
// positions.
type Sequencer struct {
	pos atomic.Int64
}

// NewSequencer creates a sequencer whose first position is 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// NewSequencerAt creates a sequencer resuming after position last.
func NewSequencerAt(last int64) *Sequencer {
	s := &Sequencer{}
	s.pos.Store(last)
	return s
}

// Next returns the next position.
func (s *Sequencer) Next() int64 {
	return s.pos.Add(1)
}

// Current returns the last position handed out.
func (s *Sequencer) Current() int64 {
	return s.pos.Load()
}
