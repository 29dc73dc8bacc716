// Package memory is an in-process implementation of every repository, the
// transaction manager, the outbox and the audit log. The server runs on it
// when no database is configured and the domain tests use it as a fake.
//
// Transactions are serialized by one mutex and rolled back by restoring a
// snapshot taken when they began. Reads outside a transaction may observe
// the writes of a transaction that is still running.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/idempotency"
	"rentalcore/internal/core/tx"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/rental"
)

var (
	_ tx.ReadOnlyManager  = (*Store)(nil)
	_ tx.SavepointManager = (*Store)(nil)
)

type state struct {
	customers  map[id.ID]customer.Customer
	products   map[id.ID]product.Product
	agreements map[id.ID]rental.Agreement
	items      map[id.ID]itemRow
	itemSeq    int64
	payments   []payment.Payment
	invoices   map[id.ID]invoice.Invoice // by agreement
	sequences  map[string]int64
	outbox     []outboxRecord
	audit      []AuditEntry
	idem       map[string]idemRecord
}

func newState() *state {
	return &state{
		customers:  map[id.ID]customer.Customer{},
		products:   map[id.ID]product.Product{},
		agreements: map[id.ID]rental.Agreement{},
		items:      map[id.ID]itemRow{},
		invoices:   map[id.ID]invoice.Invoice{},
		sequences:  map[string]int64{},
		idem:       map[string]idemRecord{},
	}
}

func (s *state) clone() *state {
	return &state{
		customers:  maps.Clone(s.customers),
		products:   maps.Clone(s.products),
		agreements: maps.Clone(s.agreements),
		items:      maps.Clone(s.items),
		itemSeq:    s.itemSeq,
		payments:   slices.Clone(s.payments),
		invoices:   maps.Clone(s.invoices),
		sequences:  maps.Clone(s.sequences),
		outbox:     slices.Clone(s.outbox),
		audit:      slices.Clone(s.audit),
		idem:       maps.Clone(s.idem),
	}
}

// Store holds all in-memory data.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state

	clock func() time.Time
}

// Option customizes Store.
type Option func(*Store)

// WithClock overrides the time source used for bookkeeping timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{data: newState(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type txKey struct{}

// RunInTransaction implements tx.Manager. Nested calls join the running
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// RunInSavepoint implements tx.SavepointManager. Inside a transaction a
// failing fn restores the state captured when the savepoint began.
func (s *Store) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if !inTx(ctx) {
		return s.RunInTransaction(ctx, fn)
	}

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// write applies fn. Outside a transaction it runs as its own transaction so
// that a concurrent rollback cannot discard it.
func (s *Store) write(ctx context.Context, fn func(d *state)) {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// Repositories bundles the store's repository views.
type Repositories struct {
	Customers   *CustomerRepo
	Products    *ProductRepo
	Stock       *StockRepo
	Agreements  *AgreementRepo
	Payments    *PaymentRepo
	Invoices    *InvoiceRepo
	Numerator   *Numerator
	Outbox      *OutboxPublisher
	Audit       *AuditLog
	Idempotency *IdempotencyStore
}

// Repositories returns repository views over the store.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Customers:   &CustomerRepo{s},
		Products:    &ProductRepo{s},
		Stock:       &StockRepo{s},
		Agreements:  &AgreementRepo{s},
		Payments:    &PaymentRepo{s},
		Invoices:    &InvoiceRepo{s},
		Numerator:   &Numerator{s},
		Outbox:      &OutboxPublisher{s},
		Audit:       &AuditLog{s},
		Idempotency: &IdempotencyStore{store: s, ttl: 24 * time.Hour},
	}
}

var (
	_ domain.EventPublisher = (*OutboxPublisher)(nil)
	_ domain.AuditRecorder  = (*AuditLog)(nil)
	_ idempotency.Store     = (*IdempotencyStore)(nil)
)
