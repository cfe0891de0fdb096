package state

import "github.com/roach88/tokenflow/internal/ir"

// KeyGenerator hands out partition-scoped keys. It is part of the state so
// that replaying a log restores the next key: every applied record's key is
// observed.
type KeyGenerator struct {
	partitionID int32
	next        int64
}

// NewKeyGenerator creates a generator starting at counter 1.
func NewKeyGenerator(partitionID int32) *KeyGenerator {
	return &KeyGenerator{partitionID: partitionID, next: 1}
}

// Next returns a fresh key.
func (g *KeyGenerator) Next() int64 {
	key := ir.EncodeKey(g.partitionID, g.next)
	g.next++
	return key
}

// Observe moves the generator past key if key belongs to this partition.
func (g *KeyGenerator) Observe(key int64) {
	if key <= 0 || ir.PartitionOf(key) != g.partitionID {
		return
	}
	if c := ir.KeyCounter(key); c >= g.next {
		g.next = c + 1
	}
}

// Peek returns the key Next would return without consuming it.
func (g *KeyGenerator) Peek() int64 {
	return ir.EncodeKey(g.partitionID, g.next)
}
