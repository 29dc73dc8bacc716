// Package app assembles storage, domain services and the HTTP router from
// configuration. Both binaries and the end-to-end tests build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"rentalcore/internal/config"
	"rentalcore/internal/core/idempotency"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/tx"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/registers/stock"
	"rentalcore/internal/domain/rental"
	"rentalcore/internal/infrastructure/http/v1/handlers"
	pgnumerator "rentalcore/internal/infrastructure/numerator"
	"rentalcore/internal/infrastructure/storage/memory"
	"rentalcore/internal/infrastructure/storage/postgres"
	"rentalcore/internal/infrastructure/storage/postgres/catalog_repo"
	"rentalcore/internal/infrastructure/storage/postgres/document_repo"
	"rentalcore/internal/infrastructure/storage/postgres/register_repo"
	"rentalcore/pkg/logger"
)

// AuditLog records and reads entity history.
type AuditLog interface {
	domain.AuditRecorder
	domain.AuditReader
}

// OutboxRelay delivers a batch of pending events.
type OutboxRelay interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// Storage is one backend: either PostgreSQL or the in-process store.
type Storage struct {
	Customers   customer.Repository
	Products    product.Repository
	Stock       stock.Repository
	Agreements  rental.Repository
	Payments    payment.Repository
	Invoices    invoice.Repository
	Numerator   numerator.Generator
	Events      domain.EventPublisher
	Audit       AuditLog
	Idempotency idempotency.Store
	TxManager   tx.Manager

	// DB is nil for the in-process store.
	DB handlers.Pinger

	newRelay    func(batchSize int, handler domain.OutboxHandler) OutboxRelay
	maintenance []MaintenanceJob
	close       func()
}

// MaintenanceJob is periodic housekeeping specific to a backend.
type MaintenanceJob struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Relay creates an outbox relay delivering to handler.
func (s *Storage) Relay(batchSize int, handler domain.OutboxHandler) OutboxRelay {
	return s.newRelay(batchSize, handler)
}

// Maintenance lists the housekeeping jobs of the backend.
func (s *Storage) Maintenance() []MaintenanceJob {
	return s.maintenance
}

// Backend names the storage kind for logs and health output.
func (s *Storage) Backend() string {
	if s.DB == nil {
		return "memory"
	}
	return "postgres"
}

// Close releases backend resources.
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// NewMemoryStorage builds storage on the in-process store.
func NewMemoryStorage(opts ...memory.Option) *Storage {
	store := memory.New(opts...)
	repos := store.Repositories()

	return &Storage{
		Customers:   repos.Customers,
		Products:    repos.Products,
		Stock:       repos.Stock,
		Agreements:  repos.Agreements,
		Payments:    repos.Payments,
		Invoices:    repos.Invoices,
		Numerator:   repos.Numerator,
		Events:      repos.Outbox,
		Audit:       repos.Audit,
		Idempotency: repos.Idempotency,
		TxManager:   store,
		newRelay: func(batchSize int, handler domain.OutboxHandler) OutboxRelay {
			return memory.NewOutboxRelay(store, batchSize, handler)
		},
	}
}

// NewPostgresStorage connects to PostgreSQL and builds the repositories.
// Transactions are retried on serialization failures and deadlocks.
func NewPostgresStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)

	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init audit: %w", err)
	}

	retryLog := log.WithComponent("tx")
	retrying := tx.NewRetryingManager(txm, cfg.Retry.Policy(), postgres.IsRetryable,
		func(ctx context.Context, err error, attempt int, wait time.Duration) {
			retryLog.Warnw("retrying transaction", "attempt", attempt, "wait", wait, "error", err)
		})

	idem := postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
	numbers := pgnumerator.NewFromSource(func(ctx context.Context) pgnumerator.Querier {
		return txm.GetQuerier(ctx)
	})

	return &Storage{
		Customers:   catalog_repo.NewCustomerRepo(txm),
		Products:    catalog_repo.NewProductRepo(txm),
		Stock:       register_repo.NewStockRepo(txm),
		Agreements:  document_repo.NewAgreementRepo(txm),
		Payments:    document_repo.NewPaymentRepo(txm),
		Invoices:    document_repo.NewInvoiceRepo(txm),
		Numerator:   numbers,
		Events:      postgres.NewOutboxPublisher(txm),
		Audit:       audit,
		Idempotency: idem,
		TxManager:   retrying,
		DB:          pool,
		newRelay: func(batchSize int, handler domain.OutboxHandler) OutboxRelay {
			return postgres.NewOutboxRelay(txm, batchSize, handler)
		},
		maintenance: []MaintenanceJob{
			{Name: "idempotency_cleanup", Run: idem.CleanupExpired},
			{Name: "outbox_dlq", Run: postgres.NewOutboxRelay(txm, cfg.Worker.OutboxBatchSize, nil).MoveToDLQ},
		},
		close: func() {
			pool.LogStats(context.Background())
			pool.Close()
		},
	}, nil
}

// OpenStorage picks PostgreSQL when a DSN is configured and the in-process
// store otherwise.
func OpenStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database configured, using in-memory storage")
		return NewMemoryStorage(), nil
	}
	return NewPostgresStorage(ctx, cfg, log)
}
