package catalog_repo

import (
	"context"

	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/infrastructure/storage/postgres"
)

const customerTable = "customers"

// CustomerRepo implements customer.Repository.
type CustomerRepo struct {
	base *BaseCatalogRepo[*customer.Customer]
}

// NewCustomerRepo creates a new customer repository.
func NewCustomerRepo(txManager *postgres.TxManager) *CustomerRepo {
	return &CustomerRepo{
		base: NewBaseCatalogRepo(
			txManager,
			customerTable,
			"Customer",
			postgres.ExtractDBColumns[customer.Customer](),
			[]string{"name", "email", "phone"},
			func() *customer.Customer { return &customer.Customer{} },
		),
	}
}

func (r *CustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	return r.base.Create(ctx, c)
}

func (r *CustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.base.GetByID(ctx, customerID)
}

func (r *CustomerRepo) Update(ctx context.Context, c *customer.Customer) error {
	return r.base.Update(ctx, c)
}

func (r *CustomerRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*customer.Customer], error) {
	return r.base.List(ctx, filter)
}

var _ customer.Repository = (*CustomerRepo)(nil)
