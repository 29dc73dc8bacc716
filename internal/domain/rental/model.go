// Package rental implements the rental agreement engine: pricing, balance
// derivation, the agreement state machine and the transactional orchestration
// of item, payment, return and overdue operations.
package rental

import (
	"context"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/registers/stock"
)

// Agreement is a rental contract covering one or more items for one
// customer over a date range.
type Agreement struct {
	entity.BaseEntity

	Number     string `db:"number" json:"number"`
	CustomerID id.ID  `db:"customer_id" json:"customerId"`

	StartDate          time.Time  `db:"start_date" json:"startDate"`
	ExpectedReturnDate time.Time  `db:"expected_return_date" json:"expectedReturnDate"`
	ActualReturnDate   *time.Time `db:"actual_return_date" json:"actualReturnDate,omitempty"`

	// Discount is a percentage in [0, 100]
	Discount       types.Money `db:"discount" json:"discount"`
	ApplyVAT       bool        `db:"apply_vat" json:"applyVat"`
	AdvancePayment types.Money `db:"advance_payment" json:"advancePayment"`

	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	VAT            types.Money `db:"vat" json:"vat"`
	Total          types.Money `db:"total" json:"total"`
	PaidAmount     types.Money `db:"paid_amount" json:"paidAmount"`
	BalanceDue     types.Money `db:"balance_due" json:"balanceDue"`

	Status  Status `db:"status" json:"status"`
	WasLate bool   `db:"was_late" json:"wasLate"`
	Notes   string `db:"notes" json:"notes,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is one product line of an agreement.
type Item struct {
	ID          id.ID `db:"id" json:"id"`
	AgreementID id.ID `db:"agreement_id" json:"agreementId"`
	ProductID   id.ID `db:"product_id" json:"productId"`
	Quantity    int   `db:"quantity" json:"quantity"`

	// RentalPrice is the daily rate snapshotted when the item was added.
	RentalPrice types.Money `db:"rental_price" json:"rentalPrice"`
	// Outsourced snapshots the product's pricing kind.
	Outsourced bool `db:"outsourced" json:"outsourced"`

	ReturnedQuantity int     `db:"returned_quantity" json:"returnedQuantity"`
	ReturnCondition  *string `db:"return_condition" json:"returnCondition,omitempty"`
	ReturnNotes      *string `db:"return_notes" json:"returnNotes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// TotalPrice is rate × quantity × days.
func (i Item) TotalPrice(days int) types.Money {
	return i.RentalPrice.Mul(types.NewMoneyFromInt(int64(i.Quantity) * int64(days)))
}

// Outstanding is the number of units not yet returned.
func (i Item) Outstanding() int {
	return i.Quantity - i.ReturnedQuantity
}

// StockLine is the stock register view of the item's outstanding units.
func (i Item) StockLine() stock.Line {
	return stock.Line{ProductID: i.ProductID, Quantity: i.Outstanding(), Outsourced: i.Outsourced}
}

// FindItem returns the item with the given ID.
func (a *Agreement) FindItem(itemID id.ID) (*Item, bool) {
	for i := range a.Items {
		if a.Items[i].ID == itemID {
			return &a.Items[i], true
		}
	}
	return nil, false
}

// RentalDays is the number of billable days, both ends inclusive, measured to
// the actual return date once known and to the expected date before.
func (a *Agreement) RentalDays() int {
	end := a.ExpectedReturnDate
	if a.ActualReturnDate != nil {
		end = *a.ActualReturnDate
	}
	return types.DaysInclusive(a.StartDate, end)
}

// IsOverdue reports whether the equipment is out past its expected return date.
func (a *Agreement) IsOverdue(today time.Time) bool {
	switch a.Status {
	case StatusOverdue:
		return true
	case StatusActive:
		return types.DateOf(today).After(types.DateOf(a.ExpectedReturnDate))
	default:
		return false
	}
}

// Validate implements entity.Validatable interface.
func (a *Agreement) Validate(_ context.Context) error {
	if id.IsNil(a.CustomerID) {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}
	if a.StartDate.IsZero() {
		return apperror.NewValidation("start date is required").
			WithDetail("field", "startDate")
	}
	if a.ExpectedReturnDate.Before(a.StartDate) {
		return apperror.NewValidation("expected return date is before start date").
			WithDetail("field", "expectedReturnDate")
	}
	if err := customer.ValidateDiscount(a.Discount, "discount"); err != nil {
		return err
	}
	if a.AdvancePayment.IsNegative() {
		return apperror.NewValidation("advance payment cannot be negative").
			WithDetail("field", "advancePayment")
	}
	if !a.Status.IsValid() {
		return apperror.NewValidation("invalid status").
			WithDetail("field", "status").
			WithDetail("value", string(a.Status))
	}
	return nil
}

// transition moves the agreement to next or fails with INVALID_STATE.
func (a *Agreement) transition(next Status, operation string) error {
	if !a.Status.CanTransitionTo(next) {
		return apperror.NewInvalidState("agreement", a.ID, string(a.Status), operation)
	}
	a.Status = next
	return nil
}

// requireStatus fails with INVALID_STATE unless the agreement is in one of allowed.
func (a *Agreement) requireStatus(operation string, allowed ...Status) error {
	for _, s := range allowed {
		if a.Status == s {
			return nil
		}
	}
	return apperror.NewInvalidState("agreement", a.ID, string(a.Status), operation)
}
