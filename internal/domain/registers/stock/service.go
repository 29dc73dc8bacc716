package stock

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/pkg/logger"
)

// Line is one product quantity moving in or out of stock.
// Outsourced lines never touch stock.
type Line struct {
	ProductID  id.ID
	Quantity   int
	Outsourced bool
}

// LineFor builds a line for p.
func LineFor(p *product.Product, qty int) Line {
	return Line{ProductID: p.ID, Quantity: qty, Outsourced: p.IsOutsourced()}
}

// Availability describes how many units of a product can be reserved.
type Availability struct {
	ProductID id.ID `json:"productId"`
	// Unlimited is set for outsourced products.
	Unlimited bool `json:"unlimited"`
	OnHand    int  `json:"onHand"`
	Rented    int  `json:"rented"`
	// Owned = OnHand + Rented
	Owned int `json:"owned"`
	// Available = Owned - Rented, i.e. OnHand
	Available int `json:"available"`
}

// ProductReader loads products for availability queries.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// Service implements the stock ledger.
type Service struct {
	repo     Repository
	products ProductReader
}

// NewService creates a new stock service.
func NewService(repo Repository, products ProductReader) *Service {
	return &Service{repo: repo, products: products}
}

// Reserve takes the line's units off the shelf.
// Fails with INSUFFICIENT_STOCK when fewer units are on hand.
func (s *Service) Reserve(ctx context.Context, l Line) error {
	if l.Quantity <= 0 {
		return apperror.NewValidation("quantity must be at least 1").
			WithDetail("field", "quantity")
	}
	if l.Outsourced {
		return nil
	}

	ok, err := s.repo.TryDecrement(ctx, l.ProductID, l.Quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if !ok {
		available, err := s.repo.OnHand(ctx, l.ProductID)
		if err != nil {
			return fmt.Errorf("read stock: %w", err)
		}
		return apperror.NewInsufficientStock(l.ProductID.String(), l.Quantity, available)
	}

	logger.Debug(ctx, "stock reserved", "product_id", l.ProductID, "quantity", l.Quantity)
	return nil
}

// Release puts the line's units back on the shelf.
func (s *Service) Release(ctx context.Context, l Line) error {
	if l.Outsourced || l.Quantity <= 0 {
		return nil
	}
	if err := s.repo.Increment(ctx, l.ProductID, l.Quantity); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	logger.Debug(ctx, "stock released", "product_id", l.ProductID, "quantity", l.Quantity)
	return nil
}

// ReserveAll reserves lines in product ID order so concurrent multi-product
// reservations lock rows in the same order.
func (s *Service) ReserveAll(ctx context.Context, lines []Line) error {
	for _, l := range sortedLines(lines) {
		if err := s.Reserve(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll releases lines in product ID order and returns the number of
// owned units put back.
func (s *Service) ReleaseAll(ctx context.Context, lines []Line) (int, error) {
	released := 0
	for _, l := range sortedLines(lines) {
		if err := s.Release(ctx, l); err != nil {
			return released, err
		}
		if !l.Outsourced {
			released += l.Quantity
		}
	}
	return released, nil
}

// Adjust corrects the shelf count of an owned product by delta, for
// purchases, write-offs and stocktake corrections. Removing more units than
// are on the shelf fails with INSUFFICIENT_STOCK.
func (s *Service) Adjust(ctx context.Context, productID id.ID, delta int, reason string) (Availability, error) {
	if delta == 0 {
		return Availability{}, apperror.NewValidation("delta must not be zero").
			WithDetail("field", "delta")
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	if p.IsOutsourced() {
		return Availability{}, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"outsourced products do not carry stock").
			WithDetail("product_id", productID.String())
	}

	ok, err := s.repo.Adjust(ctx, productID, delta)
	if err != nil {
		return Availability{}, fmt.Errorf("adjust stock: %w", err)
	}
	if !ok {
		onHand, err := s.repo.OnHand(ctx, productID)
		if err != nil {
			return Availability{}, fmt.Errorf("read stock: %w", err)
		}
		return Availability{}, apperror.NewInsufficientStock(productID.String(), -delta, onHand)
	}

	logger.Info(ctx, "stock adjusted",
		"product_id", productID,
		"delta", delta,
		"reason", reason,
	)
	return s.Availability(ctx, productID)
}

// Availability reports the stock position of a product.
func (s *Service) Availability(ctx context.Context, productID id.ID) (Availability, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	if p.IsOutsourced() {
		return Availability{ProductID: productID, Unlimited: true}, nil
	}

	onHand, err := s.repo.OnHand(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("read stock: %w", err)
	}
	rented, err := s.repo.Rented(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("read rented units: %w", err)
	}

	return Availability{
		ProductID: productID,
		OnHand:    onHand,
		Rented:    rented,
		Owned:     onHand + rented,
		Available: onHand,
	}, nil
}

func sortedLines(lines []Line) []Line {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b Line) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
	return out
}
