package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cardpay/internal/handler"
	"cardpay/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	CardHandler     *handler.CardHandler
	CheckoutHandler *handler.CheckoutHandler
	UserHandler     *handler.UserHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
	Logger          *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.TransactionAttributes())
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// User routes.
		users := v1.Group("/users")
		{
			users.POST("/register", deps.UserHandler.Register)
		}

		// Card routes, restricted to the caller's own cards.
		cards := v1.Group("/cards", middleware.RequireUser())
		{
			cards.POST("", deps.CardHandler.CreateCard)
			cards.GET("", deps.CardHandler.ListCards)
			cards.DELETE("/:id", deps.CardHandler.RemoveCard)
		}

		// Checkout routes.
		checkout := v1.Group("/payments/checkout")
		{
			checkout.POST("/start", deps.CheckoutHandler.StartCheckout)
			checkout.POST("/status", deps.CheckoutHandler.CheckStatus)
			checkout.POST("/callback", deps.CheckoutHandler.Callback)
		}
	}

	return router
}
