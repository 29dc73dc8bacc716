// Package register_repo provides the PostgreSQL stock register.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain/registers/stock"
	"rentalcore/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

// StockRepo implements stock.Repository on products.stock.
// Every write is a single conditional UPDATE, so concurrent reservations
// serialize on the row lock and never oversell.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// TryDecrement takes qty units off the shelf if enough are on hand.
func (r *StockRepo) TryDecrement(ctx context.Context, productID id.ID, qty int) (bool, error) {
	sql, args, err := r.builder.Update(productsTable).
		Set("stock", squirrel.Expr("stock - ?", qty)).
		Where(squirrel.Eq{"id": productID}).
		Where(squirrel.GtOrEq{"stock": qty}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Increment puts qty units back on the shelf.
func (r *StockRepo) Increment(ctx context.Context, productID id.ID, qty int) error {
	sql, args, err := r.builder.Update(productsTable).
		Set("stock", squirrel.Expr("stock + ?", qty)).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("Product", productID)
	}
	return nil
}

// Adjust corrects the shelf count of an owned product by delta.
func (r *StockRepo) Adjust(ctx context.Context, productID id.ID, delta int) (bool, error) {
	sql, args, err := r.builder.Update(productsTable).
		Set("stock", squirrel.Expr("stock + ?", delta)).
		Where(squirrel.Eq{"id": productID, "pricing_kind": "owned"}).
		Where(squirrel.Expr("stock + ? >= 0", delta)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("adjust stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// OnHand returns the units currently on the shelf.
func (r *StockRepo) OnHand(ctx context.Context, productID id.ID) (int, error) {
	sql, args, err := r.builder.Select("stock").
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var onHand int
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &onHand, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return 0, apperror.NewNotFound("Product", productID)
		}
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return onHand, nil
}

// Rented sums the outstanding owned units of open agreements.
func (r *StockRepo) Rented(ctx context.Context, productID id.ID) (int, error) {
	sql, args, err := r.builder.
		Select("COALESCE(SUM(i.quantity - i.returned_quantity), 0)").
		From("rental_items i").
		Join("rental_agreements a ON a.id = i.agreement_id").
		Where(squirrel.Eq{
			"i.product_id": productID,
			"i.outsourced": false,
			"a.status":     []string{"active", "overdue"},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var rented int
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&rented); err != nil {
		return 0, fmt.Errorf("sum rented: %w", err)
	}
	return rented, nil
}

var _ stock.Repository = (*StockRepo)(nil)
