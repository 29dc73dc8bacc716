package rental

import (
	"context"
	"time"

	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
)

// Repository defines persistence of agreements and their items.
type Repository interface {
	// Create inserts the agreement header.
	Create(ctx context.Context, a *Agreement) error

	// GetByID loads the agreement with its items.
	GetByID(ctx context.Context, id id.ID) (*Agreement, error)

	// GetForUpdate loads the agreement with its items and locks its row
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id id.ID) (*Agreement, error)

	// Update stores the header (terms, dates, totals, status).
	Update(ctx context.Context, a *Agreement) error

	AddItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, agreementID, itemID id.ID) error

	// List returns agreement headers without items.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Agreement], error)

	// MarkOverdue moves every active agreement whose expected return date is
	// before today to overdue with one conditional update, and returns the
	// IDs it changed.
	MarkOverdue(ctx context.Context, today time.Time, now time.Time) ([]id.ID, error)

	// ListOpenDueBy returns open agreements expected back on or before date.
	ListOpenDueBy(ctx context.Context, date time.Time) ([]*Agreement, error)
}

// ListFilter narrows agreement listings.
type ListFilter struct {
	domain.ListFilter

	Status     *Status
	CustomerID *id.ID
}
