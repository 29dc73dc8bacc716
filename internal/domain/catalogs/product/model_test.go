package product

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/types"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func money(s string) types.Money { return types.MustMoney(s) }

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		product *Product
		wantErr bool
	}{
		{
			name:    "owned",
			product: NewProduct("DRL-1", "Drill", Owned{PurchasePrice: money("200"), RentalPrice: money("10")}, 5, now),
		},
		{
			name:    "outsourced",
			product: NewProduct("LFT-1", "Lift", Outsourced{SupplierCost: money("40"), CustomerPrice: money("55")}, 0, now),
		},
		{
			name:    "missing pricing",
			product: NewProduct("X", "X", nil, 0, now),
			wantErr: true,
		},
		{
			name:    "zero daily rate",
			product: NewProduct("X", "X", Owned{PurchasePrice: money("1"), RentalPrice: money("0")}, 1, now),
			wantErr: true,
		},
		{
			name:    "negative supplier cost",
			product: NewProduct("X", "X", Outsourced{SupplierCost: money("-1"), CustomerPrice: money("5")}, 0, now),
			wantErr: true,
		},
		{
			name:    "outsourced with stock",
			product: NewProduct("X", "X", Outsourced{SupplierCost: money("1"), CustomerPrice: money("5")}, 3, now),
			wantErr: true,
		},
		{
			name:    "negative stock",
			product: NewProduct("X", "X", Owned{PurchasePrice: money("1"), RentalPrice: money("5")}, -1, now),
			wantErr: true,
		},
		{
			name:    "missing sku",
			product: NewProduct(" ", "X", Owned{PurchasePrice: money("1"), RentalPrice: money("5")}, 1, now),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProduct_DailyRate(t *testing.T) {
	owned := NewProduct("A", "A", Owned{PurchasePrice: money("100"), RentalPrice: money("12.50")}, 1, now)
	outsourced := NewProduct("B", "B", Outsourced{SupplierCost: money("30"), CustomerPrice: money("45")}, 0, now)

	assert.True(t, money("12.50").Equal(owned.DailyRate()))
	assert.False(t, owned.IsOutsourced())
	assert.True(t, money("45").Equal(outsourced.DailyRate()))
	assert.True(t, outsourced.IsOutsourced())
}

func TestPricingColumnsRoundTrip(t *testing.T) {
	for _, p := range []Pricing{
		Owned{PurchasePrice: money("100"), RentalPrice: money("10")},
		Outsourced{SupplierCost: money("30"), CustomerPrice: money("45")},
	} {
		kind, purchase, rental, supplier, customer := PricingColumns(p)
		back, err := PricingFromColumns(kind, purchase, rental, supplier, customer)
		require.NoError(t, err)
		assert.Equal(t, p.Kind(), back.Kind())
		assert.True(t, p.DailyRate().Equal(back.DailyRate()))
	}
}

func TestPricingFromColumns_RejectsMixedPairs(t *testing.T) {
	v := money("1")

	_, err := PricingFromColumns(PricingOwned, &v, &v, &v, nil)
	assert.Error(t, err)

	_, err = PricingFromColumns(PricingOutsourced, nil, nil, &v, nil)
	assert.Error(t, err)

	_, err = PricingFromColumns("leased", nil, nil, nil, nil)
	assert.Error(t, err)
}
