package numerator

import (
	"context"
	"sync"
	"time"
)

// MemoryGenerator keeps sequences in process memory.
// It backs the in-memory storage mode and unit tests.
type MemoryGenerator struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryGenerator creates an empty in-memory generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{values: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (g *MemoryGenerator) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := Key(cfg, period)
	g.values[key]++
	return Format(cfg, period, g.values[key]), nil
}

// SetNextNumber implements Generator.
func (g *MemoryGenerator) SetNextNumber(_ context.Context, cfg Config, period time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.values[Key(cfg, period)] = value
	return nil
}

var _ Generator = (*MemoryGenerator)(nil)
