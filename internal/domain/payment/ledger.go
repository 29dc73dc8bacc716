package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/tx"
	"rentalcore/internal/core/types"
	"rentalcore/pkg/logger"
)

// maxReceiptAttempts bounds regeneration after a receipt number collision.
const maxReceiptAttempts = 5

// Ledger appends payments and numbers their receipts.
type Ledger struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
	clock     func() time.Time
}

// NewLedger creates a payment ledger. Inserts run in savepoints of txManager
// so a receipt collision does not abort the caller's transaction.
func NewLedger(repo Repository, gen numerator.Generator, txManager tx.Manager) *Ledger {
	return &Ledger{repo: repo, numerator: gen, txManager: txManager, clock: time.Now}
}

// WithClock sets the time source used for receipt periods and CreatedAt.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Append validates p, assigns its ID and receipt number and stores it.
// Must run inside the caller's transaction so the payment and the agreement
// recompute commit together.
func (l *Ledger) Append(ctx context.Context, p *Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := l.clock().UTC()
	p.ID = id.New()
	p.PaymentDate = types.DateOf(p.PaymentDate)
	p.CreatedAt = now

	for attempt := 1; ; attempt++ {
		number, err := l.numerator.GetNextNumber(ctx, numerator.ReceiptConfig, nil, now)
		if err != nil {
			return fmt.Errorf("generate receipt number: %w", err)
		}
		p.ReceiptNumber = number

		// The number is drawn outside the savepoint so a rolled back
		// collision does not hand out the same number again.
		err = tx.RunInSavepoint(ctx, l.txManager, func(ctx context.Context) error {
			return l.repo.Insert(ctx, p)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateReceipt) || attempt >= maxReceiptAttempts {
			return fmt.Errorf("insert payment: %w", err)
		}
		logger.Warn(ctx, "receipt number collision, regenerating",
			"receipt_number", number,
			"attempt", attempt,
		)
	}

	logger.Info(ctx, "payment appended",
		"agreement_id", p.AgreementID,
		"receipt_number", p.ReceiptNumber,
		"amount", p.Amount.String(),
		"method", p.Method,
	)
	return nil
}

// Total returns the sum of all payments recorded against an agreement.
func (l *Ledger) Total(ctx context.Context, agreementID id.ID) (types.Money, error) {
	total, err := l.repo.SumByAgreement(ctx, agreementID)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

// List returns an agreement's payments in recording order.
func (l *Ledger) List(ctx context.Context, agreementID id.ID) ([]*Payment, error) {
	return l.repo.ListByAgreement(ctx, agreementID)
}
