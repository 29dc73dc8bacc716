package invoice

import (
	"context"

	"rentalcore/internal/core/id"
)

// Repository persists invoices. At most one invoice exists per agreement.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	// GetByAgreement returns NOT_FOUND when the agreement has no invoice.
	GetByAgreement(ctx context.Context, agreementID id.ID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
}
