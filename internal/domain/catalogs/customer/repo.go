package customer

import (
	"context"

	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
)

// Repository defines the interface for Customer persistence.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id id.ID) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Customer], error)
}
