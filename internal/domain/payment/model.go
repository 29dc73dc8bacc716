// Package payment provides the append-only payment ledger of rental agreements.
package payment

import (
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
)

// Method is how a payment was collected.
type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
	MethodBank Method = "bank"
)

// IsValid reports whether m is a supported method.
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBank:
		return true
	}
	return false
}

// Payment is one collection against an agreement. It is never updated or
// deleted once stored.
type Payment struct {
	ID            id.ID       `db:"id" json:"id"`
	AgreementID   id.ID       `db:"agreement_id" json:"agreementId"`
	Amount        types.Money `db:"amount" json:"amount"`
	PaymentDate   time.Time   `db:"payment_date" json:"paymentDate"`
	Method        Method      `db:"method" json:"method"`
	ReceiptNumber string      `db:"receipt_number" json:"receiptNumber"`
	Notes         string      `db:"notes" json:"notes,omitempty"`
	ProcessedBy   string      `db:"processed_by" json:"processedBy,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// Validate checks the caller-supplied fields.
func (p *Payment) Validate() error {
	if id.IsNil(p.AgreementID) {
		return apperror.NewValidation("agreement is required").
			WithDetail("field", "agreementId")
	}
	if !p.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount").
			WithDetail("value", p.Amount.String())
	}
	if !p.Amount.Equal(types.RoundMoney(p.Amount)) {
		return apperror.NewValidation("amount has more than two decimal places").
			WithDetail("field", "amount")
	}
	if !p.Method.IsValid() {
		return apperror.NewValidation("invalid payment method").
			WithDetail("field", "method").
			WithDetail("value", string(p.Method))
	}
	if p.PaymentDate.IsZero() {
		return apperror.NewValidation("payment date is required").
			WithDetail("field", "paymentDate")
	}
	return nil
}
