package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator produces deterministic, unique event IDs of the form
// "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden transcript
// comparison: the same scenario run with a fresh SequenceGenerator produces
// byte-identical audit trails.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceGenerator creates a generator starting at 1.
//
// If prefix is empty, IDs use "event".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "event"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements ladder.IDGenerator interface.
func (g *SequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq), nil
}

// Issued returns how many IDs have been generated.
func (g *SequenceGenerator) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset rewinds the generator. After Reset, the next ID ends in 0001.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
