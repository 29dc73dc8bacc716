// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; implementations live in
// infrastructure/storage (postgres and memory).
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// SavepointManager runs fn in a savepoint of the surrounding transaction.
// When fn fails, only its own statements are rolled back and the outer
// transaction stays usable.
type SavepointManager interface {
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInSavepoint runs fn through m's savepoints when m supports them and
// through RunInTransaction otherwise.
func RunInSavepoint(ctx context.Context, m Manager, fn func(ctx context.Context) error) error {
	if sm, ok := m.(SavepointManager); ok {
		return sm.RunInSavepoint(ctx, fn)
	}
	return m.RunInTransaction(ctx, fn)
}
