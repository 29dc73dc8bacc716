package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/rental"
	"rentalcore/internal/infrastructure/storage/postgres"
)

const (
	agreementsTable = "rental_agreements"
	itemsTable      = "rental_items"
)

var openStatuses = []string{string(rental.StatusActive), string(rental.StatusOverdue)}

// AgreementRepo implements rental.Repository.
type AgreementRepo struct {
	*BaseDocumentRepo[*rental.Agreement]
	itemCols []string
}

// NewAgreementRepo creates a new agreement repository.
func NewAgreementRepo(txManager *postgres.TxManager) *AgreementRepo {
	return &AgreementRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			agreementsTable,
			"RentalAgreement",
			postgres.ExtractDBColumns[rental.Agreement](),
			func() *rental.Agreement { return &rental.Agreement{} },
		),
		itemCols: postgres.ExtractDBColumns[rental.Item](),
	}
}

// GetByID loads the agreement with its items.
func (r *AgreementRepo) GetByID(ctx context.Context, agreementID id.ID) (*rental.Agreement, error) {
	a, err := r.BaseDocumentRepo.GetByID(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return a, r.loadItems(ctx, a)
}

// GetForUpdate locks the agreement row, then loads its items. Item rows are
// only written under the agreement lock, so they need no lock of their own.
func (r *AgreementRepo) GetForUpdate(ctx context.Context, agreementID id.ID) (*rental.Agreement, error) {
	a, err := r.BaseDocumentRepo.GetForUpdate(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return a, r.loadItems(ctx, a)
}

func (r *AgreementRepo) loadItems(ctx context.Context, a *rental.Agreement) error {
	sql, args, err := r.Builder().
		Select(r.itemCols...).
		From(itemsTable).
		Where(squirrel.Eq{"agreement_id": a.ID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build items query: %w", err)
	}

	a.Items = nil
	if err := pgxscan.Select(ctx, r.querier(ctx), &a.Items, sql, args...); err != nil {
		return fmt.Errorf("select items: %w", err)
	}
	return nil
}

// AddItem inserts an item row.
func (r *AgreementRepo) AddItem(ctx context.Context, item *rental.Item) error {
	sql, args, err := r.Builder().
		Insert(itemsTable).
		SetMap(postgres.StructToMap(item)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// UpdateItem stores the mutable fields of an item.
func (r *AgreementRepo) UpdateItem(ctx context.Context, item *rental.Item) error {
	sql, args, err := r.Builder().
		Update(itemsTable).
		Set("quantity", item.Quantity).
		Set("rental_price", item.RentalPrice).
		Set("returned_quantity", item.ReturnedQuantity).
		Set("return_condition", item.ReturnCondition).
		Set("return_notes", item.ReturnNotes).
		Where(squirrel.Eq{"id": item.ID, "agreement_id": item.AgreementID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("RentalItem", item.ID)
	}
	return nil
}

// DeleteItem removes an item row.
func (r *AgreementRepo) DeleteItem(ctx context.Context, agreementID, itemID id.ID) error {
	sql, args, err := r.Builder().
		Delete(itemsTable).
		Where(squirrel.Eq{"id": itemID, "agreement_id": agreementID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("RentalItem", itemID)
	}
	return nil
}

// List returns agreement headers.
func (r *AgreementRepo) List(ctx context.Context, filter rental.ListFilter) (domain.ListResult[*rental.Agreement], error) {
	q := r.Select()
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	return r.BaseDocumentRepo.List(ctx, q, filter.ListFilter, "number", "notes")
}

// MarkOverdue flips every late active agreement in one statement.
func (r *AgreementRepo) MarkOverdue(ctx context.Context, today time.Time, now time.Time) ([]id.ID, error) {
	sql, args, err := r.Builder().
		Update(agreementsTable).
		Set("status", string(rental.StatusOverdue)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now.UTC()).
		Where(squirrel.Eq{"status": string(rental.StatusActive)}).
		Where(squirrel.Lt{"expected_return_date": today}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var changed []id.ID
	if err := pgxscan.Select(ctx, r.querier(ctx), &changed, sql, args...); err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	return changed, nil
}

// ListOpenDueBy returns open agreements expected back on or before date.
func (r *AgreementRepo) ListOpenDueBy(ctx context.Context, date time.Time) ([]*rental.Agreement, error) {
	return r.SelectAll(ctx, r.Select().
		Where(squirrel.Eq{"status": openStatuses}).
		Where(squirrel.LtOrEq{"expected_return_date": date}).
		OrderBy("expected_return_date", "number"))
}

var _ rental.Repository = (*AgreementRepo)(nil)
