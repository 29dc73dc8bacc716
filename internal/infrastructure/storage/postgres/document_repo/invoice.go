package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/infrastructure/storage/postgres"
)

const invoicesTable = "invoices"

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoice.Invoice]
}

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			invoicesTable,
			"Invoice",
			postgres.ExtractDBColumns[invoice.Invoice](),
			func() *invoice.Invoice { return &invoice.Invoice{} },
		),
	}
}

// Create inserts inv; a second invoice for the same agreement is a duplicate.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	if err := r.BaseDocumentRepo.Create(ctx, inv); err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "invoices_agreement_id_key"):
			return apperror.NewDuplicate("invoice", "agreement_id", inv.AgreementID.String()).WithCause(err)
		case postgres.IsUniqueViolation(err, "invoices_invoice_number_key"):
			return apperror.NewDuplicate("invoice", "invoice_number", inv.Number).WithCause(err)
		}
		return err
	}
	return nil
}

// GetByAgreement returns the invoice of an agreement.
func (r *InvoiceRepo) GetByAgreement(ctx context.Context, agreementID id.ID) (*invoice.Invoice, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{"agreement_id": agreementID}), agreementID)
}

var _ invoice.Repository = (*InvoiceRepo)(nil)
