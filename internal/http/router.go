// Package apphttp assembles the JSON API: middleware chain, route table and
// the handlers behind them.
package apphttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shirly.shop/app/internal/http/handlers"
	"shirly.shop/app/internal/http/metrics"
	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/http/ticket"
	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/modules/analytics"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/modules/checkout"
	"shirly.shop/app/internal/modules/email"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/reviews"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/internal/modules/wishlist"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/internal/shared/apperr"
)

// Deps is everything the router wires into handlers. Metrics, Email and the
// rate limiters are optional.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string

	// Base is cancelled on shutdown and ends open websockets.
	Base context.Context

	DB           *gorm.DB
	HealthChecks map[string]handlers.Check

	// Static maps URL prefixes to directories (local image storage).
	Static map[string]string

	Auth          *auth.Service
	Email         *email.Service
	Products      *products.Service
	Cart          *cart.Service
	Wishlist      *wishlist.Service
	Addresses     *addresses.Service
	Reviews       *reviews.Service
	Checkout      *checkout.Service
	Orders        *orders.Service
	AdminOrders   *orders.AdminService
	Shipments     *shipping.Repo
	Payments      *payments.Service
	Refunds       *payments.RefundService
	Webhooks      *payments.WebhookService
	Chat          *chat.Service
	Broker        realtime.Broker
	Tickets       *ticket.Codec
	Notifications *notifications.Service
	Analytics     *analytics.Service

	AuthLimiter *middleware.RateLimiter
	ChatLimiter *middleware.RateLimiter
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := d.Base
	if base == nil {
		base = context.Background()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.ContextWithFallback = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.Recovery(logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(middleware.Authenticate(d.Auth))

	r.NoRoute(func(c *gin.Context) { middleware.Fail(c, apperr.NotFoundErr("route not found")) })
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	for prefix, dir := range d.Static {
		r.Static(prefix, dir)
	}

	checks := map[string]handlers.Check{}
	if d.DB != nil {
		checks["db"] = handlers.DBCheck(d.DB)
	}
	for name, fn := range d.HealthChecks {
		checks[name] = fn
	}
	health := &handlers.HealthHandler{Checks: checks}
	r.GET("/healthz", health.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	var authLimit gin.HandlerFunc = passThrough
	if d.AuthLimiter != nil {
		if d.Metrics != nil {
			d.AuthLimiter.OnReject = d.Metrics.RateLimited
		}
		authLimit = d.AuthLimiter.Handler()
	}
	var chatLimit gin.HandlerFunc = passThrough
	if d.ChatLimiter != nil {
		if d.Metrics != nil {
			d.ChatLimiter.OnReject = d.Metrics.RateLimited
		}
		chatLimit = d.ChatLimiter.Handler()
	}

	requireAuth := middleware.RequireAuth()

	api := r.Group("/api")

	authH := handlers.NewAuthHandler(d.Auth, d.Email)
	{
		g := api.Group("/auth")
		g.POST("/signup", authLimit, authH.Signup)
		g.POST("/login", authLimit, authH.Login)
		g.POST("/logout", requireAuth, authH.Logout)
		g.GET("/me", requireAuth, authH.Me)
		g.PATCH("/me", requireAuth, authH.UpdateMe)
		g.POST("/password", authLimit, requireAuth, authH.ChangePassword)
	}

	productsH := handlers.NewProductsHandler(d.Products)
	reviewsH := handlers.NewReviewsHandler(d.Reviews)
	api.GET("/products", productsH.List)
	api.GET("/products/:slug", productsH.Show)
	api.GET("/categories", productsH.Categories)
	api.GET("/products/:slug/reviews", reviewsH.List)
	api.POST("/products/:slug/reviews", requireAuth, reviewsH.Create)
	api.PATCH("/reviews/:id", requireAuth, reviewsH.Update)
	api.DELETE("/reviews/:id", requireAuth, reviewsH.Delete)

	me := api.Group("", requireAuth)

	cartH := handlers.NewCartHandler(d.Cart, d.Wishlist)
	me.GET("/cart", cartH.Get)
	me.POST("/cart", cartH.Add)
	me.DELETE("/cart", cartH.Clear)
	me.PATCH("/cart/items/:productId", cartH.SetQty)
	me.DELETE("/cart/items/:productId", cartH.Remove)
	me.GET("/wishlist", cartH.WishlistList)
	me.POST("/wishlist", cartH.WishlistAdd)
	me.DELETE("/wishlist/:productId", cartH.WishlistRemove)
	me.POST("/wishlist/:productId/move-to-cart", cartH.WishlistMoveToCart)

	addrH := handlers.NewAddressesHandler(d.Addresses)
	me.GET("/addresses", addrH.List)
	me.POST("/addresses", addrH.Create)
	me.PATCH("/addresses/:id", addrH.Update)
	me.DELETE("/addresses/:id", addrH.Delete)
	me.POST("/addresses/:id/default", addrH.SetDefault)

	checkoutH := handlers.NewCheckoutHandler(d.Checkout)
	ordersH := handlers.NewOrdersHandler(d.Orders, d.Shipments)
	me.POST("/checkout", checkoutH.Create)
	me.GET("/orders", ordersH.List)
	me.GET("/orders/:id", ordersH.Show)
	me.POST("/orders/:id/cancel", ordersH.Cancel)
	me.POST("/orders/:id/pay", checkoutH.Pay)

	chatH := handlers.NewChatHandler(d.Chat, d.Broker, d.Tickets, d.AllowedOrigins, logger)
	chatH.Base = base
	if d.ChatLimiter != nil {
		chatH.Limiter = d.ChatLimiter
	}
	if d.Metrics != nil {
		chatH.OnOpen = d.Metrics.WSOpened
		chatH.OnClose = d.Metrics.WSClosed
	}
	me.GET("/orders/:id/messages", chatH.List)
	me.POST("/orders/:id/messages", chatLimit, chatH.Send)
	me.POST("/orders/:id/messages/read", chatH.MarkRead)
	me.GET("/orders/:id/messages/unread-count", chatH.UnreadCount)
	me.POST("/orders/:id/chat/ticket", chatH.Ticket)
	// Browsers cannot set headers on websocket upgrades; the ticket authenticates.
	api.GET("/orders/:id/chat/ws", chatH.WS)

	notifH := handlers.NewNotificationsHandler(d.Notifications)
	me.GET("/notifications", notifH.List)
	me.GET("/notifications/unread-count", notifH.UnreadCount)
	me.POST("/notifications/read-all", notifH.MarkAllRead)
	me.POST("/notifications/:id/read", notifH.MarkRead)

	admin := api.Group("/admin", middleware.RequireAdmin())

	adminOrders := &handlers.AdminOrdersHandler{
		Orders:    d.AdminOrders,
		Payments:  d.Payments,
		Refunds:   d.Refunds,
		Users:     d.Auth,
		Shipments: d.Shipments,
	}
	admin.GET("/orders", adminOrders.List)
	admin.POST("/orders/bulk", adminOrders.Bulk)
	admin.GET("/orders/:id", adminOrders.Detail)
	admin.POST("/orders/:id/refund", adminOrders.Refund)
	admin.POST("/orders/:id/:action", adminOrders.Transition)

	analyticsH := &handlers.AnalyticsHandler{Analytics: d.Analytics}
	admin.GET("/analytics", analyticsH.Dashboard)

	admin.GET("/products", productsH.AdminList)
	admin.GET("/products/:id", productsH.AdminShow)
	admin.POST("/products", productsH.Create)
	admin.PATCH("/products/:id", productsH.Update)
	admin.DELETE("/products/:id", productsH.Archive)
	admin.POST("/products/:id/images", productsH.UploadImage)
	admin.DELETE("/products/:id/images/:imageId", productsH.DeleteImage)
	admin.POST("/categories", productsH.CreateCategory)
	admin.DELETE("/categories/:slug", productsH.DeleteCategory)

	if d.Payments != nil {
		provider := d.Payments.Provider()
		webhookH := handlers.NewWebhookHandler(logger, provider, d.Webhooks)
		if d.Metrics != nil {
			webhookH.OnResult = d.Metrics.Webhook
		}
		r.POST("/webhooks/:provider", webhookH.Handle)

		if mock, ok := provider.(*payments.MockProvider); ok {
			mockH := handlers.NewMockCheckoutHandler(mock, webhookH)
			r.GET("/mock-checkout/:ref", mockH.Show)
		}
	}

	return r
}

func passThrough(c *gin.Context) { c.Next() }
