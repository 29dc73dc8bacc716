// Package stock provides the product stock register: reservations take owned
// units off the shelf and returns put them back.
package stock

import (
	"context"

	"rentalcore/internal/core/id"
)

// Repository defines the atomic stock operations.
// Implementations must never read-modify-write the stock column.
type Repository interface {
	// TryDecrement removes qty units if at least qty are on hand.
	// It reports false, without changing anything, when stock is short.
	TryDecrement(ctx context.Context, productID id.ID, qty int) (bool, error)

	// Increment adds qty units (stock = stock + qty).
	Increment(ctx context.Context, productID id.ID, qty int) error

	// Adjust applies stock = stock + delta to an owned product when the
	// result stays non-negative. It reports false, without changing anything,
	// otherwise.
	Adjust(ctx context.Context, productID id.ID, delta int) (bool, error)

	// OnHand returns the units currently on the shelf.
	OnHand(ctx context.Context, productID id.ID) (int, error)

	// Rented returns the units held by open agreements and not yet returned.
	Rented(ctx context.Context, productID id.ID) (int, error)
}
