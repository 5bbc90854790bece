package transport

import (
	"context"
	"net/http"
	"time"

	"onetee-be/internal/auth"
	"onetee-be/internal/logger"
	"onetee-be/internal/metrics"
	"onetee-be/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth    *AuthHandler
	Shop    *ShopHandler
	Admin   *AdminHandler
	Webhook http.Handler
}

type RouterConfig struct {
	Tokens  middleware.TokenParser
	Limiter *middleware.RateLimiter
	Metrics *metrics.Metrics
	// Ping reports database health for /health; nil skips the check.
	Ping func(ctx context.Context) error
	// DBTimeout bounds catalog and account requests.
	DBTimeout time.Duration
}

// NewRouter builds the gin engine and wraps it in the request id, access log,
// auth and rate limit middlewares, outermost first.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Metrics != nil {
		r.Use(metricsMiddleware(cfg.Metrics))
	}

	r.GET("/health", health(cfg.Ping))
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	bounded := timeoutMiddleware(cfg.DBTimeout)

	authGroup := r.Group("/auth", bounded)
	{
		authGroup.POST("/signup", h.Auth.Signup)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/me", requireUser, h.Auth.Me)
	}

	shop := r.Group("/shop")
	{
		catalog := shop.Group("", bounded)
		catalog.GET("/products", h.Shop.ListProducts)
		catalog.GET("/products/search", h.Shop.SearchProducts)
		catalog.GET("/products/:id", h.Shop.GetProduct)
		catalog.GET("/tags", h.Shop.ListTags)
		catalog.GET("/collections", h.Shop.ListCollections)

		shop.POST("/orders", h.Shop.CreateOrder)
		shop.GET("/orders", requireUser, h.Shop.ListOrders)
		shop.GET("/orders/:id", requireUser, h.Shop.GetOrder)
		shop.POST("/orders/:id/checkout", requireUser, h.Shop.StartCheckout)

		if h.Webhook != nil {
			shop.POST("/webhook/stripe", gin.WrapH(h.Webhook))
		}
	}

	admin := r.Group("/admin", requireAdmin)
	{
		products := admin.Group("/products", bounded)
		products.POST("", h.Admin.CreateProduct)
		products.DELETE("/:id", h.Admin.DeleteProduct)
		products.POST("/:id/tags", h.Admin.AssignTags)
		products.POST("/:id/collections", h.Admin.AssignCollections)
		products.POST("/:id/images", h.Admin.PresignImage)

		tags := admin.Group("/tags", bounded)
		tags.POST("", h.Admin.CreateTag)
		tags.PUT("/:id", h.Admin.UpdateTag)
		tags.DELETE("/:id", h.Admin.DeleteTag)

		collections := admin.Group("/collections", bounded)
		collections.POST("", h.Admin.CreateCollection)
		collections.PUT("/:id", h.Admin.UpdateCollection)
		collections.DELETE("/:id", h.Admin.DeleteCollection)

		admin.PATCH("/variants/:id/stock", bounded, h.Admin.SetVariantStock)
		admin.PATCH("/orders/:id/status", h.Admin.UpdateOrderStatus)
	}

	var handler http.Handler = r
	if cfg.Limiter != nil {
		handler = cfg.Limiter.Middleware(handler)
	}
	handler = middleware.AuthMiddleware(cfg.Tokens)(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}

func health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.FromCtx(ctx).Warn("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requireUser(c *gin.Context) {
	if _, ok := auth.IdentityFrom(c.Request.Context()); !ok {
		writeError(c, errUnauthenticated)
		return
	}
	c.Next()
}

func requireAdmin(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		writeError(c, errUnauthenticated)
		return
	}
	if !id.IsAdmin {
		writeError(c, errAdminOnly)
		return
	}
	c.Next()
}

// identity returns the caller, or the zero Identity for guests.
func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c.Request.Context())
	return id
}
