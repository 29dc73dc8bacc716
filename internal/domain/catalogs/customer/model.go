// Package customer provides the Customer catalog.
// A customer's discount rate is the default discount of new agreements.
package customer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/types"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var hundred = decimal.NewFromInt(100)

// Customer is a person or company renting equipment.
type Customer struct {
	entity.BaseEntity

	Name    string  `db:"name" json:"name"`
	Email   *string `db:"email" json:"email,omitempty"`
	Phone   *string `db:"phone" json:"phone,omitempty"`
	Address *string `db:"address" json:"address,omitempty"`

	// DiscountRate is a percentage in [0, 100]
	DiscountRate types.Money `db:"discount_rate" json:"discountRate"`
}

// NewCustomer creates a customer with no discount.
func NewCustomer(name string, now time.Time) *Customer {
	return &Customer{
		BaseEntity:   entity.NewBaseEntity(now),
		Name:         strings.TrimSpace(name),
		DiscountRate: types.Zero(),
	}
}

// Validate implements entity.Validatable interface.
func (c *Customer) Validate(_ context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if err := ValidateDiscount(c.DiscountRate, "discountRate"); err != nil {
		return err
	}

	if c.Email != nil && *c.Email != "" && !emailRE.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email")
	}

	return nil
}

// ValidateDiscount checks that pct is a percentage in [0, 100] with at most
// two decimal places, the precision it is stored with.
func ValidateDiscount(pct types.Money, field string) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return apperror.NewValidation("discount must be between 0 and 100").
			WithDetail("field", field).
			WithDetail("value", pct.String())
	}
	if !pct.Equal(types.RoundMoney(pct)) {
		return apperror.NewValidation("discount has more than two decimal places").
			WithDetail("field", field).
			WithDetail("value", pct.String())
	}
	return nil
}
