package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/service/checkout"
	customersvc "chocolate-storefront/internal/service/customer"
	"chocolate-storefront/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type sessionProvider interface {
	NewID() string
	Get(ctx context.Context, sid string) (*session.Session, error)
}

type catalogService interface {
	Products() []domain.Product
	Product(id string) (domain.Product, bool)
	Shipping() domain.ShippingSettings
	Stale() bool
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)
}

type customerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*domain.Customer, error)
	Login(ctx context.Context, email, password string) (*domain.Customer, error)
	Get(ctx context.Context, id string) (*domain.Customer, error)
	AddAddress(ctx context.Context, customerID string, in customersvc.AddressInput) (domain.Address, error)
}

type orderService interface {
	ConfirmPayment(ctx context.Context, id, reference string) (*domain.Order, error)
}

// Deps carries the services the router needs.
type Deps struct {
	Sessions    sessionProvider
	Catalog     catalogService
	Customers   customerService
	Checkout    *checkout.Service
	Orders      orderService
	Stream      *CatalogStream
	RelayLimits *RateLimiter

	AdminAPIKey          string
	PaymentWebhookSecret string
	CORSOrigins          []string
	PublicBaseURL        string
	SecureCookies        bool
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if deps.Sessions == nil || deps.Catalog == nil {
		return nil, errors.New("sessions and catalog are required")
	}
	if deps.RelayLimits == nil {
		deps.RelayLimits = NewRateLimiter(5, 10)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", adminKeyHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	var dbCheck pinger
	if db != nil {
		dbCheck = db
	}
	router.GET("/readyz", readyHandler(dbCheck, deps.Catalog))

	h := &handlers{deps: deps, logger: logger}

	router.GET("/api/catalog/stream", h.catalogStream)
	router.PATCH("/api/admin/products/:id", adminKeyMiddleware(deps.AdminAPIKey), h.updateProduct)
	router.POST("/api/orders/:id/payment-confirmation", webhookSecretMiddleware(deps.PaymentWebhookSecret), h.confirmPayment)

	api := router.Group("/api", sessionMiddleware(deps.Sessions, deps.PublicBaseURL, deps.SecureCookies, logger))
	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/shipping", h.getShipping)

	api.GET("/cart", h.getCart)
	api.POST("/cart/items", h.addCartItem)
	api.PATCH("/cart/items/:productId", h.updateCartItem)
	api.DELETE("/cart/items/:productId", h.removeCartItem)
	api.DELETE("/cart", h.clearCart)
	api.PUT("/cart/gift", h.setGift)
	api.PUT("/cart/open", h.setCartOpen)

	api.GET("/favorites", h.listFavorites)
	api.POST("/favorites/:productId/toggle", h.toggleFavorite)

	api.GET("/consent", h.getConsent)
	api.PUT("/consent", h.saveConsent)

	api.POST("/auth/signup", h.signup)
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)
	api.GET("/me", h.me)
	api.POST("/me/addresses", h.addAddress)

	api.POST("/checkout/begin", h.beginCheckout)
	api.POST("/checkout", h.submitCheckout)

	api.POST("/conversions", deps.RelayLimits.Middleware(), h.relayConversion)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}
