package dto

import (
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/registers/stock"
)

// --- Customers ---

// CreateCustomerRequest is the request body for creating a customer.
type CreateCustomerRequest struct {
	Name         string       `json:"name" binding:"required"`
	Email        *string      `json:"email"`
	Phone        *string      `json:"phone"`
	Address      *string      `json:"address"`
	DiscountRate *types.Money `json:"discountRate"`
}

// ToInput converts the request to service input.
func (r *CreateCustomerRequest) ToInput() customer.CreateInput {
	return customer.CreateInput{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.Address,
		DiscountRate: r.DiscountRate,
	}
}

// UpdateCustomerRequest is the request body for updating a customer.
type UpdateCustomerRequest struct {
	Name         *string      `json:"name"`
	Email        *string      `json:"email"`
	Phone        *string      `json:"phone"`
	Address      *string      `json:"address"`
	DiscountRate *types.Money `json:"discountRate"`
}

// ToInput converts the request to service input.
func (r *UpdateCustomerRequest) ToInput() customer.UpdateInput {
	return customer.UpdateInput{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.Address,
		DiscountRate: r.DiscountRate,
	}
}

// CustomerResponse is the response body for a customer.
type CustomerResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        *string   `json:"email,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Address      *string   `json:"address,omitempty"`
	DiscountRate string    `json:"discountRate"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromCustomer creates response DTO from domain entity.
func FromCustomer(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Address:      c.Address,
		DiscountRate: Money(c.DiscountRate),
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// --- Products ---

// PricingDTO is the flat wire form of product.Pricing. Kind selects which
// price pair applies; the other pair must be omitted.
type PricingDTO struct {
	Kind          product.PricingKind `json:"kind" binding:"required,oneof=owned outsourced"`
	PurchasePrice *types.Money        `json:"purchasePrice,omitempty"`
	RentalPrice   *types.Money        `json:"rentalPrice,omitempty"`
	SupplierCost  *types.Money        `json:"supplierCost,omitempty"`
	CustomerPrice *types.Money        `json:"customerPrice,omitempty"`
}

// ToPricing builds the domain variant.
func (p *PricingDTO) ToPricing() (product.Pricing, error) {
	pricing, err := product.PricingFromColumns(p.Kind, p.PurchasePrice, p.RentalPrice, p.SupplierCost, p.CustomerPrice)
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			return nil, appErr.WithDetail("field", "pricing")
		}
		return nil, err
	}
	return pricing, nil
}

// FromPricing flattens the domain variant.
func FromPricing(p product.Pricing) PricingDTO {
	kind, purchase, rental, supplier, cust := product.PricingColumns(p)
	return PricingDTO{
		Kind:          kind,
		PurchasePrice: purchase,
		RentalPrice:   rental,
		SupplierCost:  supplier,
		CustomerPrice: cust,
	}
}

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	SKU          string            `json:"sku" binding:"required"`
	Name         string            `json:"name" binding:"required"`
	Description  *string           `json:"description"`
	Condition    product.Condition `json:"condition"`
	Pricing      PricingDTO        `json:"pricing"`
	InitialStock int               `json:"initialStock" binding:"min=0"`
}

// ToInput converts the request to service input.
func (r *CreateProductRequest) ToInput() (product.CreateInput, error) {
	pricing, err := r.Pricing.ToPricing()
	if err != nil {
		return product.CreateInput{}, err
	}
	return product.CreateInput{
		SKU:          r.SKU,
		Name:         r.Name,
		Description:  r.Description,
		Condition:    r.Condition,
		Pricing:      pricing,
		InitialStock: r.InitialStock,
	}, nil
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Condition   *product.Condition `json:"condition"`
	IsRentable  *bool              `json:"isRentable"`
	Pricing     *PricingDTO        `json:"pricing"`
}

// ToInput converts the request to service input.
func (r *UpdateProductRequest) ToInput() (product.UpdateInput, error) {
	in := product.UpdateInput{
		Name:        r.Name,
		Description: r.Description,
		Condition:   r.Condition,
		IsRentable:  r.IsRentable,
	}
	if r.Pricing != nil {
		pricing, err := r.Pricing.ToPricing()
		if err != nil {
			return in, err
		}
		in.Pricing = pricing
	}
	return in, nil
}

// AdjustStockRequest corrects the shelf count of an owned product.
type AdjustStockRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID          string            `json:"id"`
	SKU         string            `json:"sku"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Condition   product.Condition `json:"condition"`
	IsRentable  bool              `json:"isRentable"`
	Stock       int               `json:"stock"`
	DailyRate   string            `json:"dailyRate"`
	Pricing     PricingDTO        `json:"pricing"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Condition:   p.Condition,
		IsRentable:  p.IsRentable,
		Stock:       p.Stock,
		DailyRate:   Money(p.DailyRate()),
		Pricing:     FromPricing(p.Pricing),
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProductListQuery adds product filters to ListQuery.
type ProductListQuery struct {
	ListQuery
	Kind         product.PricingKind `form:"kind" binding:"omitempty,oneof=owned outsourced"`
	RentableOnly bool                `form:"rentableOnly"`
}

// ToFilter converts the query to a product filter.
func (q ProductListQuery) ToFilter() product.ListFilter {
	f := product.ListFilter{ListFilter: q.ListQuery.ToFilter(), RentableOnly: q.RentableOnly}
	if q.Kind != "" {
		kind := q.Kind
		f.Kind = &kind
	}
	return f
}

// AvailabilityResponse is the stock position of a product.
type AvailabilityResponse = stock.Availability
