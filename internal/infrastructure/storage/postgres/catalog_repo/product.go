package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/infrastructure/storage/postgres"
)

const productTable = "products"

// productRow is the flat storage form of product.Product. Exactly one of the
// price pairs is set, matching pricing_kind (enforced by a CHECK constraint).
type productRow struct {
	ID            id.ID        `db:"id"`
	Version       int          `db:"version"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
	SKU           string       `db:"sku"`
	Name          string       `db:"name"`
	Description   *string      `db:"description"`
	Condition     string       `db:"condition"`
	IsRentable    bool         `db:"is_rentable"`
	Stock         int          `db:"stock"`
	PricingKind   string       `db:"pricing_kind"`
	PurchasePrice *types.Money `db:"purchase_price"`
	RentalPrice   *types.Money `db:"rental_price"`
	SupplierCost  *types.Money `db:"supplier_cost"`
	CustomerPrice *types.Money `db:"customer_price"`
}

func toProductRow(p *product.Product) *productRow {
	kind, purchase, rental, supplier, cust := product.PricingColumns(p.Pricing)
	return &productRow{
		ID:            p.ID,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		Condition:     string(p.Condition),
		IsRentable:    p.IsRentable,
		Stock:         p.Stock,
		PricingKind:   string(kind),
		PurchasePrice: purchase,
		RentalPrice:   rental,
		SupplierCost:  supplier,
		CustomerPrice: cust,
	}
}

func (row *productRow) toDomain() (*product.Product, error) {
	pricing, err := product.PricingFromColumns(
		product.PricingKind(row.PricingKind),
		row.PurchasePrice, row.RentalPrice, row.SupplierCost, row.CustomerPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", row.ID, err)
	}

	p := &product.Product{
		SKU:         row.SKU,
		Name:        row.Name,
		Description: row.Description,
		Condition:   product.Condition(row.Condition),
		IsRentable:  row.IsRentable,
		Stock:       row.Stock,
		Pricing:     pricing,
	}
	p.ID = row.ID
	p.Version = row.Version
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return p, nil
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	base *BaseCatalogRepo[*productRow]
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		base: NewBaseCatalogRepo(
			txManager,
			productTable,
			"Product",
			postgres.ExtractDBColumns[productRow](),
			[]string{"sku", "name"},
			func() *productRow { return &productRow{} },
		),
	}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.base.Create(ctx, toProductRow(p))
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	row, err := r.base.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	row, err := r.base.FindOne(ctx, r.base.Select().Where(squirrel.Eq{"sku": sku}), sku)
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Update stores everything but the stock column, which only the stock
// register changes.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.base.Update(ctx, toProductRow(p), "stock")
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	var conds []squirrel.Sqlizer
	if filter.Kind != nil {
		conds = append(conds, squirrel.Eq{"pricing_kind": string(*filter.Kind)})
	}
	if filter.RentableOnly {
		conds = append(conds, squirrel.Eq{"is_rentable": true})
	}

	rows, err := r.base.List(ctx, filter.ListFilter, conds...)
	if err != nil {
		return domain.ListResult[*product.Product]{}, err
	}

	result := domain.ListResult[*product.Product]{
		Items:      make([]*product.Product, 0, len(rows.Items)),
		TotalCount: rows.TotalCount,
		Limit:      rows.Limit,
		Offset:     rows.Offset,
	}
	for _, row := range rows.Items {
		p, err := row.toDomain()
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, p)
	}
	return result, nil
}

var _ product.Repository = (*ProductRepo)(nil)
