package rental

import (
	"rentalcore/internal/core/types"
)

// VATRate is the flat VAT percentage.
var VATRate = types.MustMoney("5")

// Totals is the financial snapshot derived from items, terms and payments.
type Totals struct {
	Subtotal       types.Money
	DiscountAmount types.Money
	VAT            types.Money
	Total          types.Money
	PaidAmount     types.Money
	BalanceDue     types.Money
}

// ComputeTotals prices items over days:
//
//	subtotal        = Σ rate × qty × days
//	discount_amount = subtotal × discount / 100
//	vat             = (subtotal − discount_amount) × 5 / 100, when applyVAT
//	total           = subtotal − discount_amount + vat
//	balance_due     = max(0, total − paid)
//
// Each component is rounded to cents before it is combined.
func ComputeTotals(items []Item, days int, discount types.Money, applyVAT bool, paid types.Money) Totals {
	subtotal := types.Zero()
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice(days))
	}
	subtotal = types.RoundMoney(subtotal)

	discountAmount := types.Percent(subtotal, discount)

	vat := types.Zero()
	if applyVAT {
		vat = types.Percent(subtotal.Sub(discountAmount), VATRate)
	}

	total := subtotal.Sub(discountAmount).Add(vat)
	paid = types.RoundMoney(paid)

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		VAT:            vat,
		Total:          total,
		PaidAmount:     paid,
		BalanceDue:     types.NonNegative(total.Sub(paid)),
	}
}

// RecomputeTotals refreshes the derived money fields from the current items,
// terms and rental days, given the sum of all recorded payments.
func (a *Agreement) RecomputeTotals(paid types.Money) {
	t := ComputeTotals(a.Items, a.RentalDays(), a.Discount, a.ApplyVAT, paid)
	a.Subtotal = t.Subtotal
	a.DiscountAmount = t.DiscountAmount
	a.VAT = t.VAT
	a.Total = t.Total
	a.PaidAmount = t.PaidAmount
	a.BalanceDue = t.BalanceDue
}
