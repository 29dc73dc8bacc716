// Package invoice keeps the derived invoice of an agreement in step with the
// agreement total and its payment ledger. The invoice is a cached view; the
// agreement and its payments are authoritative.
package invoice

import (
	"time"

	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
)

// PaymentStatus summarizes how much of an invoice is paid.
type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

// PaymentStatusFor derives the status from the amounts:
// paid when paid >= total, partial when paid > 0, unpaid otherwise.
func PaymentStatusFor(total, paid types.Money) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Invoice is the billing document of one agreement.
type Invoice struct {
	entity.BaseEntity

	AgreementID   id.ID         `db:"agreement_id" json:"agreementId"`
	Number        string        `db:"invoice_number" json:"invoiceNumber"`
	IssueDate     time.Time     `db:"issue_date" json:"issueDate"`
	DueDate       time.Time     `db:"due_date" json:"dueDate"`
	TotalAmount   types.Money   `db:"total_amount" json:"totalAmount"`
	PaidAmount    types.Money   `db:"paid_amount" json:"paidAmount"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
}

// Apply mirrors the agreement amounts and recomputes the status.
// It reports whether anything changed.
func (i *Invoice) Apply(total, paid types.Money) bool {
	status := PaymentStatusFor(total, paid)
	if i.TotalAmount.Equal(total) && i.PaidAmount.Equal(paid) && i.PaymentStatus == status {
		return false
	}
	i.TotalAmount = total
	i.PaidAmount = paid
	i.PaymentStatus = status
	return true
}

// BalanceDue is the unpaid remainder, never negative.
func (i *Invoice) BalanceDue() types.Money {
	return types.NonNegative(i.TotalAmount.Sub(i.PaidAmount))
}
