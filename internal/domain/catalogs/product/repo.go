package product

import (
	"context"

	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
)

// Repository defines the interface for Product persistence.
// Stock is never written through it; see registers/stock.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id id.ID) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	// Update stores everything except Stock.
	Update(ctx context.Context, p *Product) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error)
}

// ListFilter narrows product listings.
type ListFilter struct {
	domain.ListFilter

	Kind         *PricingKind
	RentableOnly bool
}
