package payment

import (
	"context"
	"errors"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
)

// ErrDuplicateReceipt is returned by Insert when the receipt number is taken.
var ErrDuplicateReceipt = errors.New("duplicate receipt number")

// Repository persists payments. There is deliberately no update or delete.
type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	ListByAgreement(ctx context.Context, agreementID id.ID) ([]*Payment, error)
	SumByAgreement(ctx context.Context, agreementID id.ID) (types.Money, error)
}
