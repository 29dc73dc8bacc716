package memory

import (
	"context"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
)

// CustomerRepo implements customer.Repository.
type CustomerRepo struct{ s *Store }

var _ customer.Repository = (*CustomerRepo)(nil)

func (r *CustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	var err error
	r.s.write(ctx, func(d *state) {
		if _, ok := d.customers[c.ID]; ok {
			err = apperror.NewDuplicate("customer", "id", c.ID.String())
			return
		}
		d.customers[c.ID] = *c
	})
	return err
}

func (r *CustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	var (
		c  customer.Customer
		ok bool
	)
	r.s.read(func(d *state) { c, ok = d.customers[customerID] })
	if !ok {
		return nil, apperror.NewNotFound("customer", customerID)
	}
	return &c, nil
}

func (r *CustomerRepo) Update(ctx context.Context, c *customer.Customer) error {
	var err error
	r.s.write(ctx, func(d *state) {
		if _, ok := d.customers[c.ID]; !ok {
			err = apperror.NewNotFound("customer", c.ID)
			return
		}
		d.customers[c.ID] = *c
	})
	return err
}

var customerColumns = map[string]comparer[*customer.Customer]{
	"name":       func(a, b *customer.Customer) int { return compareStrings(a.Name, b.Name) },
	"created_at": func(a, b *customer.Customer) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *CustomerRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*customer.Customer], error) {
	var out []*customer.Customer
	r.s.read(func(d *state) {
		for _, c := range d.customers {
			email := ""
			if c.Email != nil {
				email = *c.Email
			}
			if filter.Search != "" && !containsFold(c.Name, filter.Search) && !containsFold(email, filter.Search) {
				continue
			}
			out = append(out, &c)
		}
	})
	sortBy(out, filter.OrderBy, customerColumns, "-created_at")
	return page(out, filter), nil
}

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	var err error
	r.s.write(ctx, func(d *state) {
		for _, existing := range d.products {
			if existing.SKU == p.SKU {
				err = apperror.NewDuplicate("product", "sku", p.SKU)
				return
			}
		}
		d.products[p.ID] = *p
	})
	return err
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var (
		p  product.Product
		ok bool
	)
	r.s.read(func(d *state) { p, ok = d.products[productID] })
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return &p, nil
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	var found *product.Product
	r.s.read(func(d *state) {
		for _, p := range d.products {
			if p.SKU == sku {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("product", sku)
	}
	return found, nil
}

// Update stores everything except Stock.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	var err error
	r.s.write(ctx, func(d *state) {
		existing, ok := d.products[p.ID]
		if !ok {
			err = apperror.NewNotFound("product", p.ID)
			return
		}
		updated := *p
		updated.Stock = existing.Stock
		d.products[p.ID] = updated
	})
	return err
}

var productColumns = map[string]comparer[*product.Product]{
	"sku":        func(a, b *product.Product) int { return compareStrings(a.SKU, b.SKU) },
	"name":       func(a, b *product.Product) int { return compareStrings(a.Name, b.Name) },
	"created_at": func(a, b *product.Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	var out []*product.Product
	r.s.read(func(d *state) {
		for _, p := range d.products {
			if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.SKU, filter.Search) {
				continue
			}
			if filter.Kind != nil && p.Pricing.Kind() != *filter.Kind {
				continue
			}
			if filter.RentableOnly && !p.IsRentable {
				continue
			}
			out = append(out, &p)
		}
	})
	sortBy(out, filter.OrderBy, productColumns, "-created_at")
	return page(out, filter.ListFilter), nil
}
