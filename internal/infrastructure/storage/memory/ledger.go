package memory

import (
	"context"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
)

// PaymentRepo implements payment.Repository.
type PaymentRepo struct{ s *Store }

var _ payment.Repository = (*PaymentRepo)(nil)

func (r *PaymentRepo) Insert(ctx context.Context, p *payment.Payment) error {
	var err error
	r.s.write(ctx, func(d *state) {
		for _, existing := range d.payments {
			if existing.ReceiptNumber == p.ReceiptNumber {
				err = payment.ErrDuplicateReceipt
				return
			}
		}
		d.payments = append(d.payments, *p)
	})
	return err
}

func (r *PaymentRepo) ListByAgreement(ctx context.Context, agreementID id.ID) ([]*payment.Payment, error) {
	var out []*payment.Payment
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if p.AgreementID == agreementID {
				out = append(out, &p)
			}
		}
	})
	return out, nil
}

func (r *PaymentRepo) SumByAgreement(ctx context.Context, agreementID id.ID) (types.Money, error) {
	total := types.Zero()
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if p.AgreementID == agreementID {
				total = total.Add(p.Amount)
			}
		}
	})
	return total, nil
}

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct{ s *Store }

var _ invoice.Repository = (*InvoiceRepo)(nil)

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	var err error
	r.s.write(ctx, func(d *state) {
		if _, ok := d.invoices[inv.AgreementID]; ok {
			err = apperror.NewDuplicate("invoice", "agreement_id", inv.AgreementID.String())
			return
		}
		for _, existing := range d.invoices {
			if existing.Number == inv.Number {
				err = apperror.NewDuplicate("invoice", "invoice_number", inv.Number)
				return
			}
		}
		d.invoices[inv.AgreementID] = *inv
	})
	return err
}

func (r *InvoiceRepo) GetByAgreement(ctx context.Context, agreementID id.ID) (*invoice.Invoice, error) {
	var (
		inv invoice.Invoice
		ok  bool
	)
	r.s.read(func(d *state) { inv, ok = d.invoices[agreementID] })
	if !ok {
		return nil, apperror.NewNotFound("invoice", agreementID)
	}
	return &inv, nil
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	var err error
	r.s.write(ctx, func(d *state) {
		existing, ok := d.invoices[inv.AgreementID]
		if !ok || existing.ID != inv.ID {
			err = apperror.NewNotFound("invoice", inv.ID)
			return
		}
		d.invoices[inv.AgreementID] = *inv
	})
	return err
}

// Numerator implements numerator.Generator with sequences that roll back
// with the surrounding transaction.
type Numerator struct{ s *Store }

var _ numerator.Generator = (*Numerator)(nil)

func (n *Numerator) GetNextNumber(ctx context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	var next int64
	n.s.write(ctx, func(d *state) {
		key := numerator.Key(cfg, period)
		d.sequences[key]++
		next = d.sequences[key]
	})
	return numerator.Format(cfg, period, next), nil
}

func (n *Numerator) SetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time, value int64) error {
	n.s.write(ctx, func(d *state) { d.sequences[numerator.Key(cfg, period)] = value })
	return nil
}
