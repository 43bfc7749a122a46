// Package testutil holds deterministic helpers shared by tests and the
// conformance harness.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates identifiers "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic experiment and run ids, so mirrored store
// rows and golden snapshots are identical across executions.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. An empty prefix becomes "test".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence. After Reset, Generate returns "<prefix>-1".
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
