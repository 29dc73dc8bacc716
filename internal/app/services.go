package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"rentalcore/internal/config"
	"rentalcore/internal/domain/auth"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/registers/stock"
	"rentalcore/internal/domain/rental"
	v1 "rentalcore/internal/infrastructure/http/v1"
	"rentalcore/pkg/logger"
)

// Services are the domain services over one Storage.
type Services struct {
	Customers *customer.Service
	Products  *product.Service
	Stock     *stock.Service
	Rentals   *rental.Service
}

// NewServices wires the domain services. clock may be nil.
func NewServices(s *Storage, clock func() time.Time) *Services {
	if clock == nil {
		clock = time.Now
	}

	stockSvc := stock.NewService(s.Stock, s.Products)

	return &Services{
		Customers: customer.NewService(s.Customers, s.TxManager),
		Products:  product.NewService(s.Products, s.Stock, s.TxManager),
		Stock:     stockSvc,
		Rentals: rental.NewService(rental.Deps{
			Repo:      s.Agreements,
			Customers: s.Customers,
			Products:  s.Products,
			Stock:     stockSvc,
			Payments:  payment.NewLedger(s.Payments, s.Numerator, s.TxManager).WithClock(clock),
			Invoices:  invoice.NewReconciler(s.Invoices, s.Numerator).WithClock(clock),
			Numerator: s.Numerator,
			Events:    s.Events,
			Audit:     s.Audit,
			TxManager: s.TxManager,
		}, rental.WithClock(clock)),
	}
}

// Version is stamped at build time with -ldflags.
var Version = "dev"

// NewRouter builds the HTTP API over the services.
func NewRouter(cfg *config.Config, s *Storage, svc *Services, log *logger.Logger) *gin.Engine {
	rc := v1.RouterConfig{
		Logger:    log,
		Customers: svc.Customers,
		Products:  svc.Products,
		Stock:     svc.Stock,
		Rentals:   svc.Rentals,
		Audit:     s.Audit,
		DB:        s.DB,
		Version:   Version,
		Debug:     cfg.Env == "development" && cfg.Log.Level == "debug",
	}
	if cfg.Auth.JWTSecret != "" {
		rc.JWTValidator = auth.NewJWTService(cfg.Auth.JWT())
	}
	if cfg.Idempotency.Enabled {
		rc.Idempotency = s.Idempotency
	}
	return v1.NewRouter(rc)
}
