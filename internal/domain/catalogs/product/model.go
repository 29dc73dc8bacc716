// Package product provides the Product catalog.
//
// A product is priced either as owned equipment (purchase price plus a daily
// rental rate, stock-constrained) or as outsourced equipment (supplier cost
// plus a daily customer price, sourced on demand and never stock-constrained).
package product

import (
	"context"
	"strings"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/types"
)

// PricingKind discriminates the Pricing variants.
type PricingKind string

const (
	PricingOwned      PricingKind = "owned"
	PricingOutsourced PricingKind = "outsourced"
)

// Pricing is the tagged price variant of a product.
// Only Owned and Outsourced implement it.
type Pricing interface {
	Kind() PricingKind
	// DailyRate is the per-unit, per-day rental price charged to customers.
	DailyRate() types.Money
	validate() error
}

// Owned prices equipment held in stock.
type Owned struct {
	PurchasePrice types.Money `json:"purchasePrice"`
	RentalPrice   types.Money `json:"rentalPrice"`
}

func (Owned) Kind() PricingKind        { return PricingOwned }
func (o Owned) DailyRate() types.Money { return o.RentalPrice }
func (o Owned) validate() error {
	return validatePrices(o.PurchasePrice, "purchasePrice", o.RentalPrice, "rentalPrice")
}

// Outsourced prices equipment hired from a supplier per rental.
type Outsourced struct {
	SupplierCost  types.Money `json:"supplierCost"`
	CustomerPrice types.Money `json:"customerPrice"`
}

func (Outsourced) Kind() PricingKind        { return PricingOutsourced }
func (o Outsourced) DailyRate() types.Money { return o.CustomerPrice }
func (o Outsourced) validate() error {
	return validatePrices(o.SupplierCost, "supplierCost", o.CustomerPrice, "customerPrice")
}

// Condition is the physical state of the equipment.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
	ConditionDamaged Condition = "damaged"
)

// IsValid reports whether c is a known condition.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

// Product is a rentable piece of equipment.
type Product struct {
	entity.BaseEntity

	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Condition   Condition `json:"condition"`
	IsRentable  bool      `json:"isRentable"`

	// Stock is the number of owned units currently on the shelf.
	// Reservations take units off it and returns put them back.
	Stock int `json:"stock"`

	Pricing Pricing `json:"-"`
}

// NewProduct creates a rentable product in good condition.
func NewProduct(sku, name string, pricing Pricing, stock int, now time.Time) *Product {
	return &Product{
		BaseEntity: entity.NewBaseEntity(now),
		SKU:        strings.TrimSpace(sku),
		Name:       strings.TrimSpace(name),
		Condition:  ConditionGood,
		IsRentable: true,
		Stock:      stock,
		Pricing:    pricing,
	}
}

// IsOutsourced reports whether the product is sourced on demand.
func (p *Product) IsOutsourced() bool {
	return p.Pricing != nil && p.Pricing.Kind() == PricingOutsourced
}

// DailyRate returns the rental price per unit per day.
func (p *Product) DailyRate() types.Money {
	if p.Pricing == nil {
		return types.Zero()
	}
	return p.Pricing.DailyRate()
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(_ context.Context) error {
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if !p.Condition.IsValid() {
		return apperror.NewValidation("invalid condition").
			WithDetail("field", "condition").
			WithDetail("value", string(p.Condition))
	}
	if p.Pricing == nil {
		return apperror.NewValidation("pricing is required").
			WithDetail("field", "pricing")
	}
	if err := p.Pricing.validate(); err != nil {
		return err
	}
	if p.Stock < 0 {
		return apperror.NewValidation("stock cannot be negative").
			WithDetail("field", "stock")
	}
	if p.IsOutsourced() && p.Stock != 0 {
		return apperror.NewValidation("outsourced products do not carry stock").
			WithDetail("field", "stock")
	}
	return nil
}

func validatePrices(cost types.Money, costField string, rate types.Money, rateField string) error {
	if cost.IsNegative() {
		return apperror.NewValidation(costField+" cannot be negative").
			WithDetail("field", costField)
	}
	if !rate.IsPositive() {
		return apperror.NewValidation(rateField+" must be positive").
			WithDetail("field", rateField)
	}
	return nil
}

// PricingFromColumns rebuilds the variant from its flat storage form.
// Exactly the pair matching kind must be present.
func PricingFromColumns(kind PricingKind, purchase, rental, supplier, customer *types.Money) (Pricing, error) {
	switch kind {
	case PricingOwned:
		if purchase == nil || rental == nil || supplier != nil || customer != nil {
			return nil, apperror.NewValidation("owned pricing requires purchase and rental price only")
		}
		return Owned{PurchasePrice: *purchase, RentalPrice: *rental}, nil
	case PricingOutsourced:
		if supplier == nil || customer == nil || purchase != nil || rental != nil {
			return nil, apperror.NewValidation("outsourced pricing requires supplier cost and customer price only")
		}
		return Outsourced{SupplierCost: *supplier, CustomerPrice: *customer}, nil
	default:
		return nil, apperror.NewValidation("unknown pricing kind").
			WithDetail("value", string(kind))
	}
}

// PricingColumns flattens the variant for storage; the inactive pair is nil.
func PricingColumns(p Pricing) (kind PricingKind, purchase, rental, supplier, customer *types.Money) {
	switch v := p.(type) {
	case Owned:
		return PricingOwned, &v.PurchasePrice, &v.RentalPrice, nil, nil
	case Outsourced:
		return PricingOutsourced, nil, nil, &v.SupplierCost, &v.CustomerPrice
	}
	return "", nil, nil, nil, nil
}
