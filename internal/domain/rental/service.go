package rental

import (
	"context"
	"fmt"
	"time"

	"rentalcore/internal/core/apperror"
	appctx "rentalcore/internal/core/context"
	"rentalcore/internal/core/entity"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/tx"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/registers/stock"
	"rentalcore/pkg/logger"
)

// CustomerReader loads customers.
type CustomerReader interface {
	GetByID(ctx context.Context, id id.ID) (*customer.Customer, error)
}

// ProductReader loads products.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// StockLedger reserves and releases owned units.
type StockLedger interface {
	Reserve(ctx context.Context, l stock.Line) error
	ReserveAll(ctx context.Context, lines []stock.Line) error
	Release(ctx context.Context, l stock.Line) error
	ReleaseAll(ctx context.Context, lines []stock.Line) (int, error)
}

// PaymentLedger appends and sums payments.
type PaymentLedger interface {
	Append(ctx context.Context, p *payment.Payment) error
	Total(ctx context.Context, agreementID id.ID) (types.Money, error)
	List(ctx context.Context, agreementID id.ID) ([]*payment.Payment, error)
}

// InvoiceReconciler mirrors agreement amounts onto invoices.
type InvoiceReconciler interface {
	Sync(ctx context.Context, agreementID id.ID, total, paid types.Money) error
	Issue(ctx context.Context, in invoice.IssueInput) (*invoice.Invoice, error)
	Get(ctx context.Context, agreementID id.ID) (*invoice.Invoice, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Repo      Repository
	Customers CustomerReader
	Products  ProductReader
	Stock     StockLedger
	Payments  PaymentLedger
	Invoices  InvoiceReconciler
	Numerator numerator.Generator
	Events    domain.EventPublisher
	Audit     domain.AuditRecorder
	TxManager tx.Manager
}

// Option customizes Service.
type Option func(*Service)

// WithClock overrides the time source (tests, replays).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// Service orchestrates every mutating agreement operation. Each operation is
// one transaction that locks the agreement row before reading it, so
// concurrent payments and returns on the same agreement are serialized.
type Service struct {
	Deps
	clock func() time.Time
}

// NewService creates a new rental agreement service.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{Deps: deps, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Inputs ---

// ItemInput requests qty units of a product.
type ItemInput struct {
	ProductID id.ID
	Quantity  int
}

// CreateInput describes a new agreement.
type CreateInput struct {
	CustomerID         id.ID
	StartDate          time.Time
	ExpectedReturnDate time.Time
	// Discount defaults to the customer's discount rate.
	Discount *types.Money
	// ApplyVAT defaults to true.
	ApplyVAT *bool
	// AdvancePayment, when positive, is recorded as the first payment.
	AdvancePayment types.Money
	AdvanceMethod  payment.Method
	Notes          string
	Items          []ItemInput
}

// PaymentInput describes a collection.
type PaymentInput struct {
	Amount types.Money
	// Date defaults to today.
	Date   time.Time
	Method payment.Method
	Notes  string
}

// ItemReturn records the state an item came back in.
type ItemReturn struct {
	Condition product.Condition
	Notes     string
}

// ReturnInput describes the return of all equipment of an agreement.
type ReturnInput struct {
	ReturnDate      time.Time
	AmountCollected types.Money
	Method          payment.Method
	Notes           string
	Items           map[id.ID]ItemReturn
}

// TermsInput changes pricing terms. Nil fields are left unchanged.
type TermsInput struct {
	Discount           *types.Money
	ApplyVAT           *bool
	ExpectedReturnDate *time.Time
}

// --- Commands ---

// CreateAgreement creates an active agreement, reserving stock for its items.
func (s *Service) CreateAgreement(ctx context.Context, in CreateInput) (*Agreement, error) {
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return nil, apperror.NewValidation("quantity must be at least 1").
				WithDetail("field", fmt.Sprintf("items[%d].quantity", i))
		}
	}
	if in.AdvancePayment.IsNegative() {
		return nil, apperror.NewValidation("advance payment cannot be negative").
			WithDetail("field", "advancePayment")
	}

	var a *Agreement
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.clock()
		a = &Agreement{
			BaseEntity:         entity.NewBaseEntity(now),
			CustomerID:         in.CustomerID,
			StartDate:          types.DateOf(in.StartDate),
			ExpectedReturnDate: types.DateOf(in.ExpectedReturnDate),
			ApplyVAT:           true,
			AdvancePayment:     types.RoundMoney(in.AdvancePayment),
			Status:             StatusActive,
			Notes:              in.Notes,
		}
		if in.ApplyVAT != nil {
			a.ApplyVAT = *in.ApplyVAT
		}

		cust, err := s.Customers.GetByID(ctx, in.CustomerID)
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("customer not found").
				WithDetail("field", "customerId").
				WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
		a.Discount = cust.DiscountRate
		if in.Discount != nil {
			a.Discount = *in.Discount
		}

		if err := a.Validate(ctx); err != nil {
			return err
		}

		a.Number, err = s.Numerator.GetNextNumber(ctx, numerator.AgreementConfig, nil, now)
		if err != nil {
			return fmt.Errorf("generate agreement number: %w", err)
		}
		if err := s.Repo.Create(ctx, a); err != nil {
			return fmt.Errorf("create agreement: %w", err)
		}

		lines := make([]stock.Line, 0, len(in.Items))
		for _, it := range in.Items {
			p, err := s.rentableProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			item := newItem(a.ID, p, it.Quantity, now)
			a.Items = append(a.Items, item)
			lines = append(lines, stock.LineFor(p, it.Quantity))
		}
		if err := s.Stock.ReserveAll(ctx, lines); err != nil {
			return err
		}
		for i := range a.Items {
			if err := s.Repo.AddItem(ctx, &a.Items[i]); err != nil {
				return fmt.Errorf("add item: %w", err)
			}
		}

		if a.AdvancePayment.IsPositive() {
			method := in.AdvanceMethod
			if method == "" {
				method = payment.MethodCash
			}
			advance := &payment.Payment{
				AgreementID: a.ID,
				Amount:      a.AdvancePayment,
				PaymentDate: a.StartDate,
				Method:      method,
				Notes:       "advance payment",
				ProcessedBy: appctx.GetUserID(ctx),
			}
			if err := s.Payments.Append(ctx, advance); err != nil {
				return err
			}
		}

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.record(ctx, a, EventAgreementCreated, agreementEvent(a), domain.AuditActionCreate, map[string]any{
			"number":   a.Number,
			"customer": a.CustomerID,
			"items":    len(a.Items),
			"total":    a.Total.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "agreement created",
		"agreement_id", a.ID,
		"number", a.Number,
		"customer_id", a.CustomerID,
		"items", len(a.Items),
		"total", a.Total.String(),
	)
	return a, nil
}

// AddItem adds a product line to an active agreement, reserving its units.
func (s *Service) AddItem(ctx context.Context, agreementID id.ID, in ItemInput) (*Item, error) {
	if in.Quantity < 1 {
		return nil, apperror.NewValidation("quantity must be at least 1").
			WithDetail("field", "quantity")
	}

	var added Item
	_, err := s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if err := a.requireStatus("add item to", StatusActive); err != nil {
			return err
		}
		p, err := s.rentableProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if err := s.Stock.Reserve(ctx, stock.LineFor(p, in.Quantity)); err != nil {
			return err
		}

		added = newItem(a.ID, p, in.Quantity, s.clock())
		if err := s.Repo.AddItem(ctx, &added); err != nil {
			return fmt.Errorf("add item: %w", err)
		}
		a.Items = append(a.Items, added)

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.audit(ctx, a, domain.AuditActionUpdate, map[string]any{
			"item_added": added.ID,
			"product":    added.ProductID,
			"quantity":   added.Quantity,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "agreement item added",
		"agreement_id", agreementID,
		"item_id", added.ID,
		"product_id", added.ProductID,
		"quantity", added.Quantity,
	)
	return &added, nil
}

// UpdateItemQuantity changes an item's quantity, reserving or releasing the difference.
func (s *Service) UpdateItemQuantity(ctx context.Context, agreementID, itemID id.ID, qty int) (*Item, error) {
	if qty < 1 {
		return nil, apperror.NewValidation("quantity must be at least 1").
			WithDetail("field", "quantity")
	}

	var updated Item
	_, err := s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if err := a.requireStatus("edit item of", StatusActive); err != nil {
			return err
		}
		item, ok := a.FindItem(itemID)
		if !ok {
			return apperror.NewNotFound("rental item", itemID)
		}

		delta := stock.Line{ProductID: item.ProductID, Outsourced: item.Outsourced}
		switch {
		case qty > item.Quantity:
			delta.Quantity = qty - item.Quantity
			if err := s.Stock.Reserve(ctx, delta); err != nil {
				return err
			}
		case qty < item.Quantity:
			delta.Quantity = item.Quantity - qty
			if err := s.Stock.Release(ctx, delta); err != nil {
				return err
			}
		default:
			updated = *item
			return nil
		}

		before := item.Quantity
		item.Quantity = qty
		if err := s.Repo.UpdateItem(ctx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		updated = *item

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.audit(ctx, a, domain.AuditActionUpdate, map[string]any{
			"item":     itemID,
			"quantity": map[string]any{"old": before, "new": qty},
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemoveItem deletes an item from an active agreement and releases its units.
func (s *Service) RemoveItem(ctx context.Context, agreementID, itemID id.ID) (*Agreement, error) {
	return s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if err := a.requireStatus("remove item from", StatusActive); err != nil {
			return err
		}
		item, ok := a.FindItem(itemID)
		if !ok {
			return apperror.NewNotFound("rental item", itemID)
		}
		if err := s.Stock.Release(ctx, item.StockLine()); err != nil {
			return err
		}
		if err := s.Repo.DeleteItem(ctx, a.ID, itemID); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}

		removed := *item
		kept := a.Items[:0]
		for _, it := range a.Items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		a.Items = kept

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.audit(ctx, a, domain.AuditActionUpdate, map[string]any{
			"item_removed": removed.ID,
			"product":      removed.ProductID,
			"quantity":     removed.Quantity,
		})
	})
}

// UpdateTerms changes discount, VAT flag or expected return date of an open
// agreement and re-prices it. Extending an overdue agreement to a date that
// is not yet past makes it active again.
func (s *Service) UpdateTerms(ctx context.Context, agreementID id.ID, in TermsInput) (*Agreement, error) {
	return s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if err := a.requireStatus("change terms of", StatusActive, StatusOverdue); err != nil {
			return err
		}

		changes := map[string]any{}
		if in.Discount != nil {
			changes["discount"] = map[string]any{"old": a.Discount.String(), "new": in.Discount.String()}
			a.Discount = *in.Discount
		}
		if in.ApplyVAT != nil {
			changes["apply_vat"] = map[string]any{"old": a.ApplyVAT, "new": *in.ApplyVAT}
			a.ApplyVAT = *in.ApplyVAT
		}
		if in.ExpectedReturnDate != nil {
			expected := types.DateOf(*in.ExpectedReturnDate)
			changes["expected_return_date"] = map[string]any{"old": a.ExpectedReturnDate, "new": expected}
			a.ExpectedReturnDate = expected
		}
		if err := a.Validate(ctx); err != nil {
			return err
		}

		today := types.DateOf(s.clock())
		if a.Status == StatusOverdue && !today.After(a.ExpectedReturnDate) {
			if err := a.transition(StatusActive, "extend"); err != nil {
				return err
			}
			changes["status"] = map[string]any{"old": StatusOverdue, "new": StatusActive}
		}

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.audit(ctx, a, domain.AuditActionUpdate, changes)
	})
}

// RecordPayment appends a payment and re-derives the agreement balance in
// the same transaction. Overpayment is accepted; the balance floors at zero.
func (s *Service) RecordPayment(ctx context.Context, agreementID id.ID, in PaymentInput) (*payment.Payment, error) {
	date := in.Date
	if date.IsZero() {
		date = s.clock()
	}
	draft := payment.Payment{
		AgreementID: agreementID,
		Amount:      in.Amount,
		PaymentDate: types.DateOf(date),
		Method:      in.Method,
		Notes:       in.Notes,
		ProcessedBy: appctx.GetUserID(ctx),
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	var recorded payment.Payment
	_, err := s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if a.Status == StatusCancelled {
			return apperror.NewInvalidState("agreement", a.ID, string(a.Status), "record payment for")
		}
		recorded = draft
		return s.collect(ctx, a, &recorded)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"agreement_id", agreementID,
		"receipt_number", recorded.ReceiptNumber,
		"amount", recorded.Amount.String(),
	)
	return &recorded, nil
}

// ProcessReturn closes an open agreement: it re-prices the rental for the
// actual duration, marks every item returned, puts owned units back in stock
// and records the amount collected, all in one transaction.
// A second return fails with INVALID_STATE and changes nothing.
func (s *Service) ProcessReturn(ctx context.Context, agreementID id.ID, in ReturnInput) (*Agreement, error) {
	if in.ReturnDate.IsZero() {
		return nil, apperror.NewValidation("return date is required").
			WithDetail("field", "returnDate")
	}
	if in.AmountCollected.IsNegative() {
		return nil, apperror.NewValidation("amount collected cannot be negative").
			WithDetail("field", "amountCollected")
	}
	method := in.Method
	if method == "" {
		method = payment.MethodCash
	}
	if !method.IsValid() {
		return nil, apperror.NewValidation("invalid payment method").
			WithDetail("field", "method").
			WithDetail("value", string(method))
	}
	for itemID, r := range in.Items {
		if r.Condition != "" && !r.Condition.IsValid() {
			return nil, apperror.NewValidation("invalid return condition").
				WithDetail("field", "items").
				WithDetail("item_id", itemID).
				WithDetail("value", string(r.Condition))
		}
	}

	returnDate := types.DateOf(in.ReturnDate)
	var released int
	var collected *payment.Payment

	a, err := s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		released, collected = 0, nil

		if err := a.requireStatus("return", StatusActive, StatusOverdue); err != nil {
			return err
		}
		if returnDate.Before(a.StartDate) {
			return apperror.NewValidation("return date is before start date").
				WithDetail("field", "returnDate").
				WithDetail("start_date", a.StartDate.Format(types.DateLayout))
		}

		a.ActualReturnDate = &returnDate
		a.WasLate = returnDate.After(a.ExpectedReturnDate)
		if err := a.transition(StatusReturned, "return"); err != nil {
			return err
		}
		if in.Notes != "" {
			a.Notes = appendNote(a.Notes, in.Notes)
		}

		lines := make([]stock.Line, 0, len(a.Items))
		for i := range a.Items {
			item := &a.Items[i]
			lines = append(lines, item.StockLine())
			item.ReturnedQuantity = item.Quantity
			if r, ok := in.Items[item.ID]; ok {
				if r.Condition != "" {
					cond := string(r.Condition)
					item.ReturnCondition = &cond
				}
				if r.Notes != "" {
					notes := r.Notes
					item.ReturnNotes = &notes
				}
			}
			if err := s.Repo.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("mark item returned: %w", err)
			}
		}
		var err error
		released, err = s.Stock.ReleaseAll(ctx, lines)
		if err != nil {
			return err
		}

		if in.AmountCollected.IsPositive() {
			collected = &payment.Payment{
				AgreementID: a.ID,
				Amount:      in.AmountCollected,
				PaymentDate: returnDate,
				Method:      method,
				Notes:       in.Notes,
				ProcessedBy: appctx.GetUserID(ctx),
			}
			if err := s.Payments.Append(ctx, collected); err != nil {
				return err
			}
		}

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.record(ctx, a, EventAgreementReturned, agreementEvent(a), domain.AuditActionReturn, map[string]any{
			"return_date":    returnDate,
			"was_late":       a.WasLate,
			"rental_days":    a.RentalDays(),
			"units_released": released,
			"total":          a.Total.String(),
			"balance_due":    a.BalanceDue.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	kv := []any{
		"agreement_id", a.ID,
		"return_date", returnDate.Format(types.DateLayout),
		"was_late", a.WasLate,
		"units_released", released,
		"total", a.Total.String(),
		"balance_due", a.BalanceDue.String(),
	}
	if collected != nil {
		kv = append(kv, "receipt_number", collected.ReceiptNumber)
	}
	logger.Info(ctx, "agreement returned", kv...)
	return a, nil
}

// CancelAgreement cancels an active agreement and releases all its units.
func (s *Service) CancelAgreement(ctx context.Context, agreementID id.ID, reason string) (*Agreement, error) {
	var released int
	a, err := s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if err := a.transition(StatusCancelled, "cancel"); err != nil {
			return err
		}
		if reason != "" {
			a.Notes = appendNote(a.Notes, "cancelled: "+reason)
		}

		lines := make([]stock.Line, 0, len(a.Items))
		for _, it := range a.Items {
			lines = append(lines, it.StockLine())
		}
		var err error
		released, err = s.Stock.ReleaseAll(ctx, lines)
		if err != nil {
			return err
		}

		if err := s.refresh(ctx, a); err != nil {
			return err
		}
		return s.record(ctx, a, EventAgreementCancelled, agreementEvent(a), domain.AuditActionCancel, map[string]any{
			"reason":         reason,
			"units_released": released,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "agreement cancelled", "agreement_id", a.ID, "units_released", released)
	return a, nil
}

// IssueInvoice creates the agreement's invoice from its current totals.
func (s *Service) IssueInvoice(ctx context.Context, agreementID id.ID) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	_, err := s.mutate(ctx, agreementID, func(ctx context.Context, a *Agreement) error {
		if a.Status == StatusCancelled {
			return apperror.NewInvalidState("agreement", a.ID, string(a.Status), "invoice")
		}
		var err error
		inv, err = s.Invoices.Issue(ctx, invoice.IssueInput{
			AgreementID: a.ID,
			DueDate:     a.ExpectedReturnDate,
			Total:       a.Total,
			Paid:        a.PaidAmount,
		})
		if err != nil {
			return err
		}
		return s.Events.Publish(ctx, domain.DomainEvent{
			AggregateType: AggregateType,
			AggregateID:   a.ID,
			EventType:     EventInvoiceIssued,
			Payload: map[string]any{
				"agreementId":   a.ID,
				"invoiceNumber": inv.Number,
				"totalAmount":   inv.TotalAmount,
				"dueDate":       inv.DueDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// SweepOverdue moves every active agreement expected back before today to
// overdue. It only touches status, and a second run on the same day changes
// nothing.
func (s *Service) SweepOverdue(ctx context.Context, today time.Time) (int, error) {
	today = types.DateOf(today)

	var ids []id.ID
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		ids, err = s.Repo.MarkOverdue(ctx, today, s.clock())
		if err != nil {
			return fmt.Errorf("mark overdue: %w", err)
		}
		for _, agreementID := range ids {
			err := s.Events.Publish(ctx, domain.DomainEvent{
				AggregateType: AggregateType,
				AggregateID:   agreementID,
				EventType:     EventAgreementOverdue,
				Payload:       map[string]any{"agreementId": agreementID, "asOf": today},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "overdue sweep finished",
		"today", today.Format(types.DateLayout),
		"transitioned", len(ids),
	)
	return len(ids), nil
}

// QueueReminders emits a ReminderDue event for every open agreement that is
// due tomorrow or already late. It returns the number of reminders queued.
func (s *Service) QueueReminders(ctx context.Context, today time.Time) (int, error) {
	today = types.DateOf(today)
	tomorrow := today.AddDate(0, 0, 1)

	queued := 0
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		queued = 0
		due, err := s.Repo.ListOpenDueBy(ctx, tomorrow)
		if err != nil {
			return fmt.Errorf("list due agreements: %w", err)
		}
		for _, a := range due {
			err := s.Events.Publish(ctx, domain.DomainEvent{
				AggregateType: AggregateType,
				AggregateID:   a.ID,
				EventType:     EventReminderDue,
				Payload: ReminderEvent{
					AgreementID:        a.ID,
					Number:             a.Number,
					CustomerID:         a.CustomerID,
					ExpectedReturnDate: a.ExpectedReturnDate,
					Overdue:            a.IsOverdue(today),
					BalanceDue:         a.BalanceDue,
				},
			})
			if err != nil {
				return err
			}
			queued++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "reminders queued", "today", today.Format(types.DateLayout), "count", queued)
	return queued, nil
}

// --- Queries ---

// Get returns an agreement with its items.
func (s *Service) Get(ctx context.Context, agreementID id.ID) (*Agreement, error) {
	return s.Repo.GetByID(ctx, agreementID)
}

// List returns agreement headers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Agreement], error) {
	filter.Normalize()
	return s.Repo.List(ctx, filter)
}

// ListPayments returns the payment history of an agreement.
func (s *Service) ListPayments(ctx context.Context, agreementID id.ID) ([]*payment.Payment, error) {
	if _, err := s.Repo.GetByID(ctx, agreementID); err != nil {
		return nil, err
	}
	return s.Payments.List(ctx, agreementID)
}

// Invoice returns the invoice of an agreement.
func (s *Service) Invoice(ctx context.Context, agreementID id.ID) (*invoice.Invoice, error) {
	return s.Invoices.Get(ctx, agreementID)
}

// BalanceDue returns max(0, total − paid) of an agreement.
func (s *Service) BalanceDue(ctx context.Context, agreementID id.ID) (types.Money, error) {
	a, err := s.Repo.GetByID(ctx, agreementID)
	if err != nil {
		return types.Zero(), err
	}
	return a.BalanceDue, nil
}

// ReturnQuote prices an open agreement as if it came back on ReturnDate.
type ReturnQuote struct {
	ReturnDate time.Time
	RentalDays int
	WasLate    bool
	Totals
	// AdditionalCharge is the change against the current total; negative
	// for an early return.
	AdditionalCharge types.Money
}

// QuoteReturn re-prices an open agreement over the days up to returnDate
// without changing it.
func (s *Service) QuoteReturn(ctx context.Context, agreementID id.ID, returnDate time.Time) (ReturnQuote, error) {
	if returnDate.IsZero() {
		return ReturnQuote{}, apperror.NewValidation("return date is required").
			WithDetail("field", "returnDate")
	}
	returnDate = types.DateOf(returnDate)

	a, err := s.Repo.GetByID(ctx, agreementID)
	if err != nil {
		return ReturnQuote{}, err
	}
	if err := a.requireStatus("quote a return for", StatusActive, StatusOverdue); err != nil {
		return ReturnQuote{}, err
	}
	if returnDate.Before(a.StartDate) {
		return ReturnQuote{}, apperror.NewValidation("return date is before start date").
			WithDetail("field", "returnDate").
			WithDetail("start_date", a.StartDate.Format(types.DateLayout))
	}

	paid, err := s.Payments.Total(ctx, a.ID)
	if err != nil {
		return ReturnQuote{}, err
	}
	days := types.DaysInclusive(a.StartDate, returnDate)
	t := ComputeTotals(a.Items, days, a.Discount, a.ApplyVAT, paid)

	return ReturnQuote{
		ReturnDate:       returnDate,
		RentalDays:       days,
		WasLate:          returnDate.After(a.ExpectedReturnDate),
		Totals:           t,
		AdditionalCharge: t.Total.Sub(a.Total),
	}, nil
}

// IsOverdue reports whether an agreement's equipment is out past its expected date.
func (s *Service) IsOverdue(ctx context.Context, agreementID id.ID) (bool, error) {
	a, err := s.Repo.GetByID(ctx, agreementID)
	if err != nil {
		return false, err
	}
	return a.IsOverdue(s.clock()), nil
}

// Today returns the service's current calendar date.
func (s *Service) Today() time.Time {
	return types.DateOf(s.clock())
}

// --- internals ---

// mutate loads and locks the agreement, then runs fn in the same transaction.
func (s *Service) mutate(ctx context.Context, agreementID id.ID, fn func(ctx context.Context, a *Agreement) error) (*Agreement, error) {
	var a *Agreement
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.Repo.GetForUpdate(ctx, agreementID)
		if err != nil {
			return err
		}
		return fn(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// collect appends p and refreshes the agreement.
func (s *Service) collect(ctx context.Context, a *Agreement, p *payment.Payment) error {
	if err := s.Payments.Append(ctx, p); err != nil {
		return err
	}
	if err := s.refresh(ctx, a); err != nil {
		return err
	}
	return s.record(ctx, a, EventPaymentRecorded, PaymentEvent{
		AgreementID:   a.ID,
		PaymentID:     p.ID,
		ReceiptNumber: p.ReceiptNumber,
		Amount:        p.Amount,
		BalanceDue:    a.BalanceDue,
	}, domain.AuditActionPay, map[string]any{
		"receipt_number": p.ReceiptNumber,
		"amount":         p.Amount.String(),
		"method":         p.Method,
		"balance_due":    a.BalanceDue.String(),
	})
}

// refresh recomputes the derived money fields from the payment ledger,
// stores the header and mirrors the result onto the invoice.
func (s *Service) refresh(ctx context.Context, a *Agreement) error {
	paid, err := s.Payments.Total(ctx, a.ID)
	if err != nil {
		return err
	}
	a.RecomputeTotals(paid)
	a.Touch(s.clock())

	if err := s.Repo.Update(ctx, a); err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	if err := s.Invoices.Sync(ctx, a.ID, a.Total, a.PaidAmount); err != nil {
		return fmt.Errorf("sync invoice: %w", err)
	}
	return nil
}

// record publishes an event and writes an audit entry.
func (s *Service) record(ctx context.Context, a *Agreement, eventType string, payload any, action domain.AuditAction, changes map[string]any) error {
	err := s.Events.Publish(ctx, domain.DomainEvent{
		AggregateType: AggregateType,
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return s.audit(ctx, a, action, changes)
}

func (s *Service) audit(ctx context.Context, a *Agreement, action domain.AuditAction, changes map[string]any) error {
	if err := s.Audit.LogChange(ctx, AggregateType, a.ID, action, changes); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (s *Service) rentableProduct(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := s.Products.GetByID(ctx, productID)
	if apperror.IsNotFound(err) {
		return nil, apperror.NewValidation("product not found").
			WithDetail("field", "productId").
			WithDetail("product_id", productID).
			WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if !p.IsRentable {
		return nil, apperror.NewValidation("product is not rentable").
			WithDetail("field", "productId").
			WithDetail("product_id", productID)
	}
	return p, nil
}

func newItem(agreementID id.ID, p *product.Product, qty int, now time.Time) Item {
	return Item{
		ID:          id.New(),
		AgreementID: agreementID,
		ProductID:   p.ID,
		Quantity:    qty,
		RentalPrice: p.DailyRate(),
		Outsourced:  p.IsOutsourced(),
		CreatedAt:   now.UTC(),
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
