package product

import (
	"context"
	"fmt"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/tx"
	"rentalcore/internal/domain"
	"rentalcore/pkg/logger"
)

// StockCounter reports where a product's owned units are.
// The stock register satisfies it.
type StockCounter interface {
	OnHand(ctx context.Context, productID id.ID) (int, error)
	Rented(ctx context.Context, productID id.ID) (int, error)
}

// Service provides business logic for the Product catalog.
type Service struct {
	repo      Repository
	stock     StockCounter
	txManager tx.Manager
	clock     func() time.Time
}

// NewService creates a new product service.
func NewService(repo Repository, stock StockCounter, txManager tx.Manager) *Service {
	return &Service{repo: repo, stock: stock, txManager: txManager, clock: time.Now}
}

// CreateInput holds the fields of a new product.
type CreateInput struct {
	SKU          string
	Name         string
	Description  *string
	Condition    Condition
	Pricing      Pricing
	InitialStock int
}

// Create validates and stores a new product. SKUs are unique.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	p := NewProduct(in.SKU, in.Name, in.Pricing, in.InitialStock, s.clock())
	p.Description = in.Description
	if in.Condition != "" {
		p.Condition = in.Condition
	}

	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.GetBySKU(ctx, p.SKU); err == nil && existing != nil {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		} else if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	logger.Info(ctx, "product created",
		"product_id", p.ID,
		"sku", p.SKU,
		"pricing", p.Pricing.Kind(),
		"stock", p.Stock,
	)
	return p, nil
}

// UpdateInput holds the mutable fields of a product. Nil fields are left unchanged.
// Stock is changed through the stock register only.
type UpdateInput struct {
	Name        *string
	Description *string
	Condition   *Condition
	IsRentable  *bool
	Pricing     Pricing
}

// Update changes product details. Items already on agreements keep their
// snapshotted rate. An owned product cannot become outsourced while it owns
// any unit, on the shelf or out on rental.
func (s *Service) Update(ctx context.Context, productID id.ID, in UpdateInput) (*Product, error) {
	var p *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		leavesOwned := in.Pricing != nil && in.Pricing.Kind() != p.Pricing.Kind() && !p.IsOutsourced()

		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Description != nil {
			p.Description = in.Description
		}
		if in.Condition != nil {
			p.Condition = *in.Condition
		}
		if in.IsRentable != nil {
			p.IsRentable = *in.IsRentable
		}
		if leavesOwned {
			if err := s.requireNoOwnedUnits(ctx, productID); err != nil {
				return err
			}
		}
		if in.Pricing != nil {
			p.Pricing = in.Pricing
		}

		if err := p.Validate(ctx); err != nil {
			return err
		}

		p.Touch(s.clock())
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		if leavesOwned {
			// The update holds the product row, so reservations that were
			// running when the first check was made have committed by now.
			return s.requireNoOwnedUnits(ctx, productID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) requireNoOwnedUnits(ctx context.Context, productID id.ID) error {
	onHand, err := s.stock.OnHand(ctx, productID)
	if err != nil {
		return fmt.Errorf("read stock: %w", err)
	}
	rented, err := s.stock.Rented(ctx, productID)
	if err != nil {
		return fmt.Errorf("read rented units: %w", err)
	}
	if onHand+rented > 0 {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"cannot make a product outsourced while it owns units").
			WithDetail("on_hand", onHand).
			WithDetail("rented", rented)
	}
	return nil
}

// GetByID returns a product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
