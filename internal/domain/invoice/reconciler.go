package invoice

import (
	"context"
	"fmt"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/types"
	"rentalcore/pkg/logger"
)

// Reconciler keeps invoices in sync with agreements.
type Reconciler struct {
	repo      Repository
	numerator numerator.Generator
	clock     func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(repo Repository, gen numerator.Generator) *Reconciler {
	return &Reconciler{repo: repo, numerator: gen, clock: time.Now}
}

// WithClock sets the time source used for issue dates and numbering.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Sync mirrors total and paid onto the agreement's invoice.
// Without an invoice it does nothing.
func (r *Reconciler) Sync(ctx context.Context, agreementID id.ID, total, paid types.Money) error {
	inv, err := r.repo.GetByAgreement(ctx, agreementID)
	if apperror.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}

	if !inv.Apply(total, paid) {
		return nil
	}
	inv.Touch(r.clock())
	if err := r.repo.Update(ctx, inv); err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}

	logger.Debug(ctx, "invoice synced",
		"invoice_number", inv.Number,
		"total", total.String(),
		"paid", paid.String(),
		"status", inv.PaymentStatus,
	)
	return nil
}

// IssueInput describes the invoice of one agreement.
type IssueInput struct {
	AgreementID id.ID
	DueDate     time.Time
	Total       types.Money
	Paid        types.Money
}

// Issue creates the agreement's invoice. An agreement is invoiced once.
func (r *Reconciler) Issue(ctx context.Context, in IssueInput) (*Invoice, error) {
	existing, err := r.repo.GetByAgreement(ctx, in.AgreementID)
	if err == nil && existing != nil {
		return nil, apperror.NewDuplicate("invoice", "agreement", in.AgreementID.String()).
			WithDetail("invoice_number", existing.Number)
	}
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	now := r.clock()
	number, err := r.numerator.GetNextNumber(ctx, numerator.InvoiceConfig, nil, now)
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	inv := &Invoice{
		BaseEntity:  entity.NewBaseEntity(now),
		AgreementID: in.AgreementID,
		Number:      number,
		IssueDate:   types.DateOf(now),
		DueDate:     types.DateOf(in.DueDate),
	}
	inv.Apply(in.Total, in.Paid)

	if err := r.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	logger.Info(ctx, "invoice issued",
		"agreement_id", in.AgreementID,
		"invoice_number", inv.Number,
		"total", inv.TotalAmount.String(),
	)
	return inv, nil
}

// Get returns the agreement's invoice.
func (r *Reconciler) Get(ctx context.Context, agreementID id.ID) (*Invoice, error) {
	return r.repo.GetByAgreement(ctx, agreementID)
}
