package rental

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
)

func money(s string) types.Money { return types.MustMoney(s) }

func assertMoney(t *testing.T, want string, got types.Money, field string) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestComputeTotals(t *testing.T) {
	items := []Item{{ProductID: id.New(), Quantity: 2, RentalPrice: money("10")}}

	tests := []struct {
		name     string
		days     int
		discount string
		vat      bool
		paid     string
		want     Totals
	}{
		{
			name: "quoted three days", days: 3, discount: "10", vat: true, paid: "0",
			want: Totals{
				Subtotal: money("60"), DiscountAmount: money("6"), VAT: money("2.70"),
				Total: money("56.70"), PaidAmount: money("0"), BalanceDue: money("56.70"),
			},
		},
		{
			name: "prorated five days", days: 5, discount: "10", vat: true, paid: "0",
			want: Totals{
				Subtotal: money("100"), DiscountAmount: money("10"), VAT: money("4.50"),
				Total: money("94.50"), PaidAmount: money("0"), BalanceDue: money("94.50"),
			},
		},
		{
			name: "no vat no discount", days: 1, discount: "0", vat: false, paid: "5",
			want: Totals{
				Subtotal: money("20"), DiscountAmount: money("0"), VAT: money("0"),
				Total: money("20"), PaidAmount: money("5"), BalanceDue: money("15"),
			},
		},
		{
			name: "overpaid balance floors at zero", days: 3, discount: "0", vat: false, paid: "100",
			want: Totals{
				Subtotal: money("60"), DiscountAmount: money("0"), VAT: money("0"),
				Total: money("60"), PaidAmount: money("100"), BalanceDue: money("0"),
			},
		},
		{
			name: "full discount", days: 2, discount: "100", vat: true, paid: "0",
			want: Totals{
				Subtotal: money("40"), DiscountAmount: money("40"), VAT: money("0"),
				Total: money("0"), PaidAmount: money("0"), BalanceDue: money("0"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(items, tt.days, money(tt.discount), tt.vat, money(tt.paid))
			assertMoney(t, tt.want.Subtotal.String(), got.Subtotal, "subtotal")
			assertMoney(t, tt.want.DiscountAmount.String(), got.DiscountAmount, "discount_amount")
			assertMoney(t, tt.want.VAT.String(), got.VAT, "vat")
			assertMoney(t, tt.want.Total.String(), got.Total, "total")
			assertMoney(t, tt.want.PaidAmount.String(), got.PaidAmount, "paid_amount")
			assertMoney(t, tt.want.BalanceDue.String(), got.BalanceDue, "balance_due")
		})
	}
}

func TestComputeTotals_RoundsComponents(t *testing.T) {
	items := []Item{{Quantity: 1, RentalPrice: money("3.33")}}

	got := ComputeTotals(items, 1, money("12.5"), true, types.Zero())

	// 3.33 × 12.5% = 0.41625 → 0.42; (3.33 − 0.42) × 5% = 0.1455 → 0.15
	assertMoney(t, "0.42", got.DiscountAmount, "discount_amount")
	assertMoney(t, "0.15", got.VAT, "vat")
	assertMoney(t, "3.06", got.Total, "total")
}

func TestAgreement_RecomputeTotals_UsesActualReturnDate(t *testing.T) {
	a := &Agreement{
		StartDate:          types.NewDate(2024, 1, 1),
		ExpectedReturnDate: types.NewDate(2024, 1, 3),
		Discount:           money("10"),
		ApplyVAT:           true,
		Items:              []Item{{Quantity: 2, RentalPrice: money("10")}},
	}

	a.RecomputeTotals(types.Zero())
	assert.Equal(t, 3, a.RentalDays())
	assertMoney(t, "56.70", a.Total, "total")

	returned := types.NewDate(2024, 1, 5)
	a.ActualReturnDate = &returned
	a.RecomputeTotals(money("50"))
	assert.Equal(t, 5, a.RentalDays())
	assertMoney(t, "94.50", a.Total, "total")
	assertMoney(t, "44.50", a.BalanceDue, "balance_due")
}
