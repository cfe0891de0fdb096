package testutil

import (
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Epoch is the wall time mock clocks start at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewMockClock returns a mock clock set to Epoch. Record timestamps taken
// from it are stable across runs.
func NewMockClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(Epoch)
	return c
}

// SequenceIDs hands out request ids "<prefix>-1", "<prefix>-2", ... for
// tests that compare traces.
//
// Thread-safety: SequenceIDs is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix defaults to "req".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
