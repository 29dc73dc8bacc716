package numerator

import (
	"context"
	"time"
)

// Generator generates sequential business numbers.
// Implementations live in the infrastructure layer. When called inside a
// transaction the number is consumed atomically with the caller's writes.
type Generator interface {
	// GetNextNumber generates the next number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., INV-2024-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the current sequence value (for data migration).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
