package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/infrastructure/storage/postgres"
)

const (
	paymentsTable           = "payments"
	receiptNumberConstraint = "payments_receipt_number_key"
)

// PaymentRepo implements payment.Repository. Rows are insert-only.
type PaymentRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[payment.Payment](),
	}
}

// Insert stores p. A taken receipt number yields payment.ErrDuplicateReceipt.
func (r *PaymentRepo) Insert(ctx context.Context, p *payment.Payment) error {
	sql, args, err := r.builder.Insert(paymentsTable).SetMap(postgres.StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, receiptNumberConstraint) {
			return fmt.Errorf("%w: %s", payment.ErrDuplicateReceipt, p.ReceiptNumber)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ListByAgreement returns payments in the order they were recorded.
func (r *PaymentRepo) ListByAgreement(ctx context.Context, agreementID id.ID) ([]*payment.Payment, error) {
	sql, args, err := r.builder.Select(r.selectCols...).
		From(paymentsTable).
		Where(squirrel.Eq{"agreement_id": agreementID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var payments []*payment.Payment
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return payments, nil
}

// SumByAgreement totals the ledger of one agreement.
func (r *PaymentRepo) SumByAgreement(ctx context.Context, agreementID id.ID) (types.Money, error) {
	sql, args, err := r.builder.Select("COALESCE(SUM(amount), 0)").
		From(paymentsTable).
		Where(squirrel.Eq{"agreement_id": agreementID}).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build query: %w", err)
	}

	var total types.Money
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

var _ payment.Repository = (*PaymentRepo)(nil)
