package memory

import (
	"context"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/registers/stock"
)

// StockRepo implements stock.Repository over the product map.
type StockRepo struct{ s *Store }

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) TryDecrement(ctx context.Context, productID id.ID, qty int) (bool, error) {
	var (
		ok  bool
		err error
	)
	r.s.write(ctx, func(d *state) {
		p, found := d.products[productID]
		if !found {
			err = apperror.NewNotFound("product", productID)
			return
		}
		if p.Stock < qty {
			return
		}
		p.Stock -= qty
		d.products[productID] = p
		ok = true
	})
	return ok, err
}

func (r *StockRepo) Increment(ctx context.Context, productID id.ID, qty int) error {
	var err error
	r.s.write(ctx, func(d *state) {
		p, found := d.products[productID]
		if !found {
			err = apperror.NewNotFound("product", productID)
			return
		}
		p.Stock += qty
		d.products[productID] = p
	})
	return err
}

func (r *StockRepo) Adjust(ctx context.Context, productID id.ID, delta int) (bool, error) {
	var (
		ok  bool
		err error
	)
	r.s.write(ctx, func(d *state) {
		p, found := d.products[productID]
		if !found {
			err = apperror.NewNotFound("product", productID)
			return
		}
		if p.IsOutsourced() || p.Stock+delta < 0 {
			return
		}
		p.Stock += delta
		d.products[productID] = p
		ok = true
	})
	return ok, err
}

func (r *StockRepo) OnHand(ctx context.Context, productID id.ID) (int, error) {
	var (
		n     int
		found bool
	)
	r.s.read(func(d *state) {
		var p product.Product
		p, found = d.products[productID]
		n = p.Stock
	})
	if !found {
		return 0, apperror.NewNotFound("product", productID)
	}
	return n, nil
}

func (r *StockRepo) Rented(ctx context.Context, productID id.ID) (int, error) {
	n := 0
	r.s.read(func(d *state) {
		for _, row := range d.items {
			it := row.Item
			if it.ProductID != productID || it.Outsourced {
				continue
			}
			if a, ok := d.agreements[it.AgreementID]; ok && a.Status.IsOpen() {
				n += it.Outstanding()
			}
		}
	})
	return n, nil
}
