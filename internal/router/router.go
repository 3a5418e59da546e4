// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/handlers"
	"github.com/javajoker/retail-backend/internal/middleware"
	"github.com/javajoker/retail-backend/internal/services"
)

// Services holds the domain services shared by the HTTP layer, the queue
// workers and the refresh scheduler.
type Services struct {
	Auth          *services.AuthService
	Authorization *services.AuthorizationService
	Catalog       *services.CatalogService
	Import        *services.ImportService
	Shop          *services.ShopService
	Order         *services.OrderService
	Contact       *services.ContactService
}

// BuildServices wires the domain services. Notification observers are
// subscribed by the caller since they depend on the chosen queue backend.
func BuildServices(db *gorm.DB, cfg *config.Config, storage *services.StorageService) *Services {
	authorizationService := services.NewAuthorizationService(db)
	orderService := services.NewOrderService(db, authorizationService)

	return &Services{
		Auth:          services.NewAuthService(db, cfg.JWT, cfg.Account),
		Authorization: authorizationService,
		Catalog:       services.NewCatalogService(db),
		Import: services.NewImportService(db, authorizationService,
			services.NewPriceListSource(cfg.Ingestion, storage), storage, cfg.Ingestion),
		Shop:    services.NewShopService(db, authorizationService),
		Order:   orderService,
		Contact: services.NewContactService(db, authorizationService, orderService),
	}
}

func Initialize(db *gorm.DB, cfg *config.Config, svc *Services) *gin.Engine {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog)
	partnerHandler := handlers.NewPartnerHandler(svc.Import, svc.Shop, svc.Order, cfg.Ingestion.MaxDocumentSize)
	basketHandler := handlers.NewBasketHandler(svc.Order)
	orderHandler := handlers.NewOrderHandler(svc.Order)
	contactHandler := handlers.NewContactHandler(svc.Contact)
	confirmHandler := handlers.NewConfirmHandler(svc.Order)

	generalLimiter := middleware.NewRateLimiter(rateLimit(cfg.RateLimit.GeneralPerSecond), cfg.RateLimit.GeneralBurst)
	authLimiter := middleware.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst)
	confirmLimiter := middleware.PerMinute(cfg.RateLimit.ConfirmPerMinute, cfg.RateLimit.ConfirmBurst)
	ingestLimiter := middleware.PerMinute(cfg.RateLimit.IngestPerMinute, cfg.RateLimit.IngestBurst)

	authz := svc.Authorization
	capability := func(c services.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(authz, c)
	}

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(generalLimiter.Middleware())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authLimiter.Middleware(), authHandler.Register)
			auth.POST("/login", authLimiter.Middleware(), authHandler.Login)
			// Emailed activation link, authenticated by the key itself
			auth.GET("/activate", confirmLimiter.Middleware(), authHandler.Activate)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Public catalog
		v1.GET("/categories", catalogHandler.ListCategories)
		v1.GET("/shops", catalogHandler.ListShops)
		v1.GET("/listings", catalogHandler.SearchListings)
		v1.GET("/listings/:id", catalogHandler.GetListing)

		// Emailed confirmation link, authenticated by the key itself
		v1.GET("/confirm/order", confirmLimiter.Middleware(), confirmHandler.ConfirmOrder)

		// Shop operator routes
		partner := v1.Group("/partner")
		partner.Use(middleware.AuthRequired())
		{
			partner.POST("/update", ingestLimiter.Middleware(), capability(services.CapIngestPriceList), partnerHandler.UpdatePriceList)
			partner.GET("/state", capability(services.CapManageShopState), partnerHandler.GetState)
			partner.PUT("/state", capability(services.CapManageShopState), partnerHandler.SetState)
			partner.GET("/orders", capability(services.CapViewShopOrders), partnerHandler.ListOrders)
			partner.PUT("/orders/:id/state", capability(services.CapAdvanceOrders), partnerHandler.AdvanceOrderState)
		}

		// Buyer routes
		contact := v1.Group("/contact")
		contact.Use(middleware.AuthRequired(), capability(services.CapManageContact))
		{
			contact.GET("", contactHandler.GetContact)
			contact.POST("", contactHandler.CreateContact)
			contact.PUT("", contactHandler.UpdateContact)
			contact.DELETE("", contactHandler.DeleteContact)
		}

		basket := v1.Group("/basket")
		basket.Use(middleware.AuthRequired(), capability(services.CapManageBasket))
		{
			basket.GET("", basketHandler.GetBasket)
			basket.POST("", basketHandler.AddItems)
			basket.PUT("", basketHandler.UpdateItems)
			basket.DELETE("", basketHandler.RemoveItems)
			basket.POST("/submit", capability(services.CapPlaceOrder), basketHandler.Submit)
		}

		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired(), capability(services.CapViewOwnOrders))
		{
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
		}
	}

	return r
}

// rateLimit treats a non-positive setting as unlimited.
func rateLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}
