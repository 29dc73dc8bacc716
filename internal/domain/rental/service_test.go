package rental_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/registers/stock"
	"rentalcore/internal/domain/rental"
	"rentalcore/internal/infrastructure/storage/memory"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	now   time.Time
	store *memory.Store
	repos memory.Repositories
	stock *stock.Service
	svc   *rental.Service

	customer *customer.Customer
	drill    *product.Product // owned, $10/day, 5 on hand
	lift     *product.Product // outsourced, $25/day
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{t: t, ctx: context.Background(), now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.store = memory.New(memory.WithClock(clock))
	f.repos = f.store.Repositories()
	f.stock = stock.NewService(f.repos.Stock, f.repos.Products)

	f.svc = rental.NewService(rental.Deps{
		Repo:      f.repos.Agreements,
		Customers: f.repos.Customers,
		Products:  f.repos.Products,
		Stock:     f.stock,
		Payments:  payment.NewLedger(f.repos.Payments, f.repos.Numerator, f.store).WithClock(clock),
		Invoices:  invoice.NewReconciler(f.repos.Invoices, f.repos.Numerator).WithClock(clock),
		Numerator: f.repos.Numerator,
		Events:    f.repos.Outbox,
		Audit:     f.repos.Audit,
		TxManager: f.store,
	}, rental.WithClock(clock))

	f.customer = customer.NewCustomer("Acme Builders", f.now)
	f.customer.DiscountRate = types.MustMoney("10")
	require.NoError(t, f.repos.Customers.Create(f.ctx, f.customer))

	f.drill = product.NewProduct("DRL-1", "Drill",
		product.Owned{PurchasePrice: types.MustMoney("300"), RentalPrice: types.MustMoney("10")}, 5, f.now)
	require.NoError(t, f.repos.Products.Create(f.ctx, f.drill))

	f.lift = product.NewProduct("LFT-1", "Scissor lift",
		product.Outsourced{SupplierCost: types.MustMoney("15"), CustomerPrice: types.MustMoney("25")}, 0, f.now)
	require.NoError(t, f.repos.Products.Create(f.ctx, f.lift))

	return f
}

func (f *fixture) create(items ...rental.ItemInput) *rental.Agreement {
	f.t.Helper()
	a, err := f.svc.CreateAgreement(f.ctx, rental.CreateInput{
		CustomerID:         f.customer.ID,
		StartDate:          types.NewDate(2024, 1, 1),
		ExpectedReturnDate: types.NewDate(2024, 1, 3),
		Items:              items,
	})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) onHand(p *product.Product) int {
	f.t.Helper()
	n, err := f.repos.Stock.OnHand(f.ctx, p.ID)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) events(eventType string) []domain.OutboxMessage {
	var out []domain.OutboxMessage
	for _, m := range f.repos.Outbox.Pending() {
		if m.EventType == eventType {
			out = append(out, m)
		}
	}
	return out
}

func assertMoney(t *testing.T, want string, got types.Money, field string) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func (f *fixture) drillItem(qty int) rental.ItemInput {
	return rental.ItemInput{ProductID: f.drill.ID, Quantity: qty}
}

func TestCreateAgreement_QuotedTotals(t *testing.T) {
	f := newFixture(t)

	a := f.create(f.drillItem(2))

	assert.Equal(t, "RA-2024-00001", a.Number)
	assert.Equal(t, rental.StatusActive, a.Status)
	assert.Equal(t, 3, a.RentalDays())
	assertMoney(t, "60", a.Subtotal, "subtotal")
	assertMoney(t, "6", a.DiscountAmount, "discount_amount")
	assertMoney(t, "2.70", a.VAT, "vat")
	assertMoney(t, "56.70", a.Total, "total")
	assertMoney(t, "56.70", a.BalanceDue, "balance_due")
	require.Len(t, a.Items, 1)
	assertMoney(t, "10", a.Items[0].RentalPrice, "rental_price")

	assert.Equal(t, 3, f.onHand(f.drill))
	assert.Len(t, f.events(rental.EventAgreementCreated), 1)
	assert.Len(t, f.repos.Audit.Entries(a.ID), 1)

	stored, err := f.svc.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assertMoney(t, "56.70", stored.Total, "stored total")
	assert.Len(t, stored.Items, 1)
}

func TestCreateAgreement_AdvancePaymentIsFirstPayment(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.CreateAgreement(f.ctx, rental.CreateInput{
		CustomerID:         f.customer.ID,
		StartDate:          types.NewDate(2024, 1, 1),
		ExpectedReturnDate: types.NewDate(2024, 1, 3),
		AdvancePayment:     types.MustMoney("20"),
		Items:              []rental.ItemInput{f.drillItem(2)},
	})
	require.NoError(t, err)

	assertMoney(t, "20", a.PaidAmount, "paid_amount")
	assertMoney(t, "36.70", a.BalanceDue, "balance_due")

	payments, err := f.svc.ListPayments(f.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "RCPT-2024-000001", payments[0].ReceiptNumber)
	assert.Equal(t, payment.MethodCash, payments[0].Method)
	assert.Equal(t, a.StartDate, payments[0].PaymentDate)
}

func TestCreateAgreement_InsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAgreement(f.ctx, rental.CreateInput{
		CustomerID:         f.customer.ID,
		StartDate:          types.NewDate(2024, 1, 1),
		ExpectedReturnDate: types.NewDate(2024, 1, 3),
		Items:              []rental.ItemInput{f.drillItem(6)},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, 5, f.onHand(f.drill))
	list, err := f.svc.List(f.ctx, rental.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	assert.Empty(t, f.repos.Outbox.Pending())

	// The rolled back number is reused.
	a := f.create(f.drillItem(1))
	assert.Equal(t, "RA-2024-00001", a.Number)
}

func TestCreateAgreement_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   rental.CreateInput
	}{
		{"unknown customer", rental.CreateInput{
			CustomerID: id.New(), StartDate: types.NewDate(2024, 1, 1), ExpectedReturnDate: types.NewDate(2024, 1, 3),
		}},
		{"return before start", rental.CreateInput{
			CustomerID: f.customer.ID, StartDate: types.NewDate(2024, 1, 3), ExpectedReturnDate: types.NewDate(2024, 1, 1),
		}},
		{"zero quantity", rental.CreateInput{
			CustomerID: f.customer.ID, StartDate: types.NewDate(2024, 1, 1), ExpectedReturnDate: types.NewDate(2024, 1, 3),
			Items: []rental.ItemInput{f.drillItem(0)},
		}},
		{"unknown product", rental.CreateInput{
			CustomerID: f.customer.ID, StartDate: types.NewDate(2024, 1, 1), ExpectedReturnDate: types.NewDate(2024, 1, 3),
			Items: []rental.ItemInput{{ProductID: id.New(), Quantity: 1}},
		}},
		{"negative advance", rental.CreateInput{
			CustomerID: f.customer.ID, StartDate: types.NewDate(2024, 1, 1), ExpectedReturnDate: types.NewDate(2024, 1, 3),
			AdvancePayment: types.MustMoney("-1"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAgreement(f.ctx, tt.in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}
}

func TestProcessReturn_LateReturnReprices(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2))
	f.now = time.Date(2024, 1, 5, 16, 0, 0, 0, time.UTC)

	returned, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{
		ReturnDate: types.NewDate(2024, 1, 5),
		Items: map[id.ID]rental.ItemReturn{
			a.Items[0].ID: {Condition: product.ConditionFair, Notes: "scratched"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, rental.StatusReturned, returned.Status)
	assert.True(t, returned.WasLate)
	assert.Equal(t, 5, returned.RentalDays())
	assertMoney(t, "100", returned.Subtotal, "subtotal")
	assertMoney(t, "10", returned.DiscountAmount, "discount_amount")
	assertMoney(t, "4.50", returned.VAT, "vat")
	assertMoney(t, "94.50", returned.Total, "total")

	item := returned.Items[0]
	assert.Equal(t, 2, item.ReturnedQuantity)
	require.NotNil(t, item.ReturnCondition)
	assert.Equal(t, "fair", *item.ReturnCondition)
	assert.Equal(t, 5, f.onHand(f.drill))
	assert.Len(t, f.events(rental.EventAgreementReturned), 1)

	overdue, err := f.svc.IsOverdue(f.ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, overdue)
}

func TestProcessReturn_OnTimeWithCollection(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2))

	returned, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{
		ReturnDate:      types.NewDate(2024, 1, 3),
		AmountCollected: types.MustMoney("56.70"),
		Method:          payment.MethodCard,
	})
	require.NoError(t, err)

	assert.False(t, returned.WasLate)
	assertMoney(t, "56.70", returned.PaidAmount, "paid_amount")
	assert.True(t, returned.BalanceDue.IsZero())

	payments, err := f.svc.ListPayments(f.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, types.NewDate(2024, 1, 3), payments[0].PaymentDate)
}

func TestProcessReturn_CollectionDefaultsToCash(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))

	_, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{
		ReturnDate:      types.NewDate(2024, 1, 3),
		AmountCollected: types.MustMoney("20"),
	})
	require.NoError(t, err)

	payments, err := f.svc.ListPayments(f.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, payment.MethodCash, payments[0].Method)
}

func TestProcessReturn_RejectsUnknownMethodUpFront(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))

	_, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{
		ReturnDate:      types.NewDate(2024, 1, 3),
		AmountCollected: types.MustMoney("20"),
		Method:          "cheque",
	})
	assert.True(t, apperror.IsValidation(err))

	got, _ := f.svc.Get(f.ctx, a.ID)
	assert.Equal(t, rental.StatusActive, got.Status)
}

func TestQuoteReturn(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2)) // 3 days, total 56.70
	_, err := f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{Amount: types.MustMoney("20"), Method: payment.MethodCash})
	require.NoError(t, err)

	late, err := f.svc.QuoteReturn(f.ctx, a.ID, types.NewDate(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, late.RentalDays)
	assert.True(t, late.WasLate)
	assertMoney(t, "94.50", late.Total, "total")
	assertMoney(t, "20", late.PaidAmount, "paid_amount")
	assertMoney(t, "74.50", late.BalanceDue, "balance_due")
	assertMoney(t, "37.80", late.AdditionalCharge, "additional_charge")

	early, err := f.svc.QuoteReturn(f.ctx, a.ID, types.NewDate(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, early.RentalDays)
	assert.False(t, early.WasLate)
	assertMoney(t, "18.90", early.Total, "total")
	assertMoney(t, "-37.80", early.AdditionalCharge, "additional_charge")

	got, err := f.svc.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assertMoney(t, "56.70", got.Total, "stored total")
	assert.Nil(t, got.ActualReturnDate)

	_, err = f.svc.QuoteReturn(f.ctx, a.ID, types.NewDate(2023, 12, 31))
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 3)})
	require.NoError(t, err)
	_, err = f.svc.QuoteReturn(f.ctx, a.ID, types.NewDate(2024, 1, 4))
	assert.True(t, apperror.IsInvalidState(err))
}

func TestProcessReturn_TwiceFailsWithoutChanges(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2))

	first, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 3)})
	require.NoError(t, err)
	eventsBefore := len(f.repos.Outbox.Pending())

	_, err = f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{
		ReturnDate:      types.NewDate(2024, 1, 9),
		AmountCollected: types.MustMoney("10"),
		Method:          payment.MethodCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))

	after, err := f.svc.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, after.Version)
	assert.Equal(t, *first.ActualReturnDate, *after.ActualReturnDate)
	assert.True(t, first.Total.Equal(after.Total))
	assert.Equal(t, 5, f.onHand(f.drill))
	assert.Len(t, f.repos.Outbox.Pending(), eventsBefore)

	payments, err := f.svc.ListPayments(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestProcessReturn_RejectsDateBeforeStart(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))

	_, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2023, 12, 31)})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	got, _ := f.svc.Get(f.ctx, a.ID)
	assert.Equal(t, rental.StatusActive, got.Status)
}

func TestRecordPayment_PaymentStatus(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2)) // total 56.70

	inv, err := f.svc.IssueInvoice(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-00001", inv.Number)
	assert.Equal(t, invoice.StatusUnpaid, inv.PaymentStatus)

	tests := []struct {
		amount  string
		paid    string
		balance string
		status  invoice.PaymentStatus
	}{
		{"20", "20", "36.70", invoice.StatusPartial},
		{"30", "50", "6.70", invoice.StatusPartial},
		{"6.70", "56.70", "0", invoice.StatusPaid},
		{"5", "61.70", "0", invoice.StatusPaid},
	}

	for i, tt := range tests {
		p, err := f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{
			Amount: types.MustMoney(tt.amount),
			Method: payment.MethodBank,
		})
		require.NoError(t, err, "payment %d", i)
		assert.NotEmpty(t, p.ReceiptNumber)

		got, err := f.svc.Get(f.ctx, a.ID)
		require.NoError(t, err)
		assertMoney(t, tt.paid, got.PaidAmount, "paid_amount")
		assertMoney(t, tt.balance, got.BalanceDue, "balance_due")

		inv, err := f.svc.Invoice(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.status, inv.PaymentStatus, "payment %d", i)
		assertMoney(t, tt.paid, inv.PaidAmount, "invoice paid_amount")
	}

	payments, err := f.svc.ListPayments(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 4)
	receipts := map[string]bool{}
	for _, p := range payments {
		receipts[p.ReceiptNumber] = true
	}
	assert.Len(t, receipts, 4)
	assert.Len(t, f.events(rental.EventPaymentRecorded), 4)
}

func TestRecordPayment_Rejects(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))

	for _, amount := range []string{"0", "-5", "10.005"} {
		_, err := f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{Amount: types.MustMoney(amount), Method: payment.MethodCash})
		assert.True(t, apperror.IsValidation(err), "amount %s", amount)
	}

	_, err := f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{Amount: types.MustMoney("5"), Method: "cheque"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.RecordPayment(f.ctx, id.New(), rental.PaymentInput{Amount: types.MustMoney("5"), Method: payment.MethodCash})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.CancelAgreement(f.ctx, a.ID, "customer changed plans")
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{Amount: types.MustMoney("5"), Method: payment.MethodCash})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestRecordPayment_AfterReturnSettlesBalance(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2))
	_, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 3)})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{Amount: types.MustMoney("56.70"), Method: payment.MethodCash})
	require.NoError(t, err)

	balance, err := f.svc.BalanceDue(f.ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestRecordPayment_ConcurrentPaymentsBothCount(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(2)) // total 56.70

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.RecordPayment(f.ctx, a.ID, rental.PaymentInput{
				Amount: types.MustMoney("50"),
				Method: payment.MethodCash,
			})
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	got, err := f.svc.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assertMoney(t, "100", got.PaidAmount, "paid_amount")
	assert.True(t, got.BalanceDue.IsZero())

	payments, err := f.svc.ListPayments(f.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.NotEqual(t, payments[0].ReceiptNumber, payments[1].ReceiptNumber)
}

func TestItems_StockAccounting(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))
	assert.Equal(t, 4, f.onHand(f.drill))

	item, err := f.svc.AddItem(f.ctx, a.ID, f.drillItem(2))
	require.NoError(t, err)
	assert.Equal(t, 2, f.onHand(f.drill))

	_, err = f.svc.UpdateItemQuantity(f.ctx, a.ID, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, f.onHand(f.drill))

	_, err = f.svc.UpdateItemQuantity(f.ctx, a.ID, item.ID, 5)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, 0, f.onHand(f.drill))

	_, err = f.svc.UpdateItemQuantity(f.ctx, a.ID, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, f.onHand(f.drill))

	got, err := f.svc.RemoveItem(f.ctx, a.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.onHand(f.drill))
	require.Len(t, got.Items, 1)
	// 1 unit × $10 × 3 days, 10% off, 5% VAT
	assertMoney(t, "28.35", got.Total, "total")

	_, err = f.svc.RemoveItem(f.ctx, a.ID, item.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestItems_OutsourcedNeverTouchesStock(t *testing.T) {
	f := newFixture(t)

	a := f.create(rental.ItemInput{ProductID: f.lift.ID, Quantity: 3})
	require.Len(t, a.Items, 1)
	assert.True(t, a.Items[0].Outsourced)
	assertMoney(t, "25", a.Items[0].RentalPrice, "rental_price")

	n, err := f.repos.Stock.OnHand(f.ctx, f.lift.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 3)})
	require.NoError(t, err)
	n, _ = f.repos.Stock.OnHand(f.ctx, f.lift.ID)
	assert.Equal(t, 0, n)
}

func TestItems_OnlyActiveAgreementsAreEditable(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))
	_, err := f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 3)})
	require.NoError(t, err)

	_, err = f.svc.AddItem(f.ctx, a.ID, f.drillItem(1))
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, 5, f.onHand(f.drill))
}

func TestCancelAgreement(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(3))
	assert.Equal(t, 2, f.onHand(f.drill))

	cancelled, err := f.svc.CancelAgreement(f.ctx, a.ID, "site closed")
	require.NoError(t, err)
	assert.Equal(t, rental.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "site closed")
	assert.Equal(t, 5, f.onHand(f.drill))

	_, err = f.svc.CancelAgreement(f.ctx, a.ID, "")
	assert.True(t, apperror.IsInvalidState(err))
	_, err = f.svc.ProcessReturn(f.ctx, a.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 3)})
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, 5, f.onHand(f.drill))
}

func TestSweepOverdue_Idempotent(t *testing.T) {
	f := newFixture(t)
	late := f.create(f.drillItem(1))
	done := f.create(f.drillItem(1))
	_, err := f.svc.ProcessReturn(f.ctx, done.ID, rental.ReturnInput{ReturnDate: types.NewDate(2024, 1, 2)})
	require.NoError(t, err)

	f.now = time.Date(2024, 1, 5, 0, 30, 0, 0, time.UTC)

	n, err := f.svc.SweepOverdue(f.ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.SweepOverdue(f.ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.svc.Get(f.ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusOverdue, got.Status)
	assertMoney(t, "28.35", got.Total, "total unchanged by sweep")
	assert.Len(t, f.events(rental.EventAgreementOverdue), 1)

	other, err := f.svc.Get(f.ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusReturned, other.Status)
}

func TestSweepOverdue_NotYetDue(t *testing.T) {
	f := newFixture(t)
	f.create(f.drillItem(1))

	n, err := f.svc.SweepOverdue(f.ctx, types.NewDate(2024, 1, 3))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateTerms_ExtensionReactivatesOverdue(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))
	f.now = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	_, err := f.svc.SweepOverdue(f.ctx, f.now)
	require.NoError(t, err)

	extended := types.NewDate(2024, 1, 10)
	noVAT := false
	got, err := f.svc.UpdateTerms(f.ctx, a.ID, rental.TermsInput{ExpectedReturnDate: &extended, ApplyVAT: &noVAT})
	require.NoError(t, err)

	assert.Equal(t, rental.StatusActive, got.Status)
	assert.Equal(t, 10, got.RentalDays())
	// 1 × $10 × 10 days, 10% off, no VAT
	assertMoney(t, "90", got.Total, "total")

	bad := types.MustMoney("120")
	_, err = f.svc.UpdateTerms(f.ctx, a.ID, rental.TermsInput{Discount: &bad})
	assert.True(t, apperror.IsValidation(err))
}

func TestQueueReminders(t *testing.T) {
	f := newFixture(t)
	dueSoon := f.create(f.drillItem(1)) // expected 2024-01-03
	_, err := f.svc.CreateAgreement(f.ctx, rental.CreateInput{
		CustomerID:         f.customer.ID,
		StartDate:          types.NewDate(2024, 1, 1),
		ExpectedReturnDate: types.NewDate(2024, 1, 20),
		Items:              []rental.ItemInput{f.drillItem(1)},
	})
	require.NoError(t, err)

	n, err := f.svc.QueueReminders(f.ctx, types.NewDate(2024, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reminders := f.events(rental.EventReminderDue)
	require.Len(t, reminders, 1)
	assert.Equal(t, dueSoon.ID, reminders[0].AggregateID)
}

func TestIssueInvoice_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	a := f.create(f.drillItem(1))

	_, err := f.svc.IssueInvoice(f.ctx, a.ID)
	require.NoError(t, err)

	_, err = f.svc.IssueInvoice(f.ctx, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.Len(t, f.events(rental.EventInvoiceIssued), 1)
}
