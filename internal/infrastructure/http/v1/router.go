// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"rentalcore/internal/core/idempotency"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/auth"
	"rentalcore/internal/domain/catalogs/customer"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/registers/stock"
	"rentalcore/internal/domain/rental"
	"rentalcore/internal/infrastructure/http/v1/handlers"
	"rentalcore/internal/infrastructure/http/v1/middleware"
	"rentalcore/pkg/logger"
)

// RouterConfig holds the services behind the API.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation; nil disables authentication
	JWTValidator middleware.JWTValidator

	Customers *customer.Service
	Products  *product.Service
	Stock     *stock.Service
	Rentals   *rental.Service
	Audit     domain.AuditReader

	// Idempotency stores Idempotency-Key responses; nil disables replay
	Idempotency idempotency.Store

	// DB is pinged by the readiness check; nil for in-memory storage
	DB      handlers.Pinger
	Version string

	// Debug enables gin debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	baseHandler := handlers.NewBaseHandler()
	registerCatalogRoutes(api, baseHandler, cfg)
	registerAgreementRoutes(api, baseHandler, cfg)
	registerAdminRoutes(api, baseHandler, cfg)

	return router
}

// registerCatalogRoutes registers customer and product endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	RegisterCatalogRoutes(rg.Group("/customers"), handlers.NewCustomerHandler(base, cfg.Customers))

	productHandler := handlers.NewProductHandler(base, cfg.Products, cfg.Stock)
	products := rg.Group("/products")
	RegisterCatalogRoutes(products, productHandler)
	products.GET("/:id/availability", productHandler.Availability)
	products.POST("/:id/stock", productHandler.AdjustStock)
}

// registerAgreementRoutes registers rental agreement endpoints.
func registerAgreementRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewAgreementHandler(base, cfg.Rentals, cfg.Audit)

	agreements := rg.Group("/agreements")
	{
		agreements.GET("", h.List)
		agreements.POST("", h.Create)
		agreements.GET("/:id", h.Get)
		agreements.GET("/:id/balance", h.Balance)
		agreements.GET("/:id/history", h.History)

		agreements.POST("/:id/items", h.AddItem)
		agreements.PATCH("/:id/items/:itemId", h.UpdateItem)
		agreements.DELETE("/:id/items/:itemId", h.RemoveItem)
		agreements.PATCH("/:id/terms", h.UpdateTerms)

		agreements.POST("/:id/payments", h.RecordPayment)
		agreements.GET("/:id/payments", h.ListPayments)

		agreements.GET("/:id/return-quote", h.QuoteReturn)
		agreements.POST("/:id/return", h.Return)
		agreements.POST("/:id/cancel", h.Cancel)

		agreements.POST("/:id/invoice", h.IssueInvoice)
		agreements.GET("/:id/invoice", h.Invoice)
	}
}

// registerAdminRoutes registers maintenance endpoints.
func registerAdminRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewAdminHandler(base, cfg.Rentals)

	admin := rg.Group("/admin")
	admin.Use(middleware.RequireRole(cfg.JWTValidator != nil, auth.RoleAdmin))
	admin.POST("/sweep-overdue", h.SweepOverdue)
}
