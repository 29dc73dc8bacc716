package customer

import (
	"context"
	"fmt"
	"time"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/tx"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain"
	"rentalcore/pkg/logger"
)

// Service provides business logic for the Customer catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	clock     func() time.Time
}

// NewService creates a new customer service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager, clock: time.Now}
}

// CreateInput holds the fields of a new customer.
type CreateInput struct {
	Name         string
	Email        *string
	Phone        *string
	Address      *string
	DiscountRate *types.Money
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Customer, error) {
	c := NewCustomer(in.Name, s.clock())
	c.Email = in.Email
	c.Phone = in.Phone
	c.Address = in.Address
	if in.DiscountRate != nil {
		c.DiscountRate = *in.DiscountRate
	}

	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	logger.Info(ctx, "customer created", "customer_id", c.ID, "discount_rate", c.DiscountRate.String())
	return c, nil
}

// UpdateInput holds the mutable fields of a customer. Nil fields are left unchanged.
type UpdateInput struct {
	Name         *string
	Email        *string
	Phone        *string
	Address      *string
	DiscountRate *types.Money
}

// Update changes customer details. Existing agreements keep their discount.
func (s *Service) Update(ctx context.Context, customerID id.ID, in UpdateInput) (*Customer, error) {
	var c *Customer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByID(ctx, customerID)
		if err != nil {
			return err
		}

		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.Email != nil {
			c.Email = in.Email
		}
		if in.Phone != nil {
			c.Phone = in.Phone
		}
		if in.Address != nil {
			c.Address = in.Address
		}
		if in.DiscountRate != nil {
			c.DiscountRate = *in.DiscountRate
		}

		if err := c.Validate(ctx); err != nil {
			return err
		}

		c.Touch(s.clock())
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID returns a customer.
func (s *Service) GetByID(ctx context.Context, customerID id.ID) (*Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Customer], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
