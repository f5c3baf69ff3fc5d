package routes

import (
	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/handlers"
	"bookstore_back_end/internal/handlers/admin"
	"bookstore_back_end/internal/metrics"
	"bookstore_back_end/internal/middleware"
)

type Deps struct {
	API            *handlers.Handler
	Admin          *admin.Handler
	JWTSecret      []byte
	CallbackSecret string
	Limiter        *middleware.RateLimiter
	Health         handlers.HealthFunc
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h, a, limiter := d.API, d.Admin, d.Limiter

	r.GET("/health", handlers.Health(d.Health))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api", limiter.API())
	auth := middleware.AuthRequired(d.JWTSecret)

	// Catalogue et suivi : publics
	api.GET("/books", h.ListBooks)
	api.GET("/books/search", limiter.Search(), h.SearchBooks)
	api.GET("/books/suggest", limiter.Search(), h.SuggestBooks)
	api.GET("/books/:id", h.GetBook)
	api.GET("/books/:id/comments", h.ListComments)
	api.GET("/shipments/track/:code", h.TrackShipment)

	// Passerelles de paiement : authentifiées par secret partagé ou signature
	api.POST("/payments/callback", middleware.CallbackSecret(d.CallbackSecret), h.PaymentCallback)
	api.POST("/payments/stripe/webhook", h.StripeWebhook)

	// Websocket : le navigateur passe le token en query
	api.GET("/ws/notifications", middleware.TokenFromQuery(), auth, h.NotificationsSocket)

	user := api.Group("", auth)
	{
		cart := user.Group("/cart")
		cart.GET("", h.GetCart)
		cart.GET("/quote", h.QuoteCart)
		cart.POST("/items", limiter.Cart(), h.AddCartItem)
		cart.PATCH("/items/:bookId", limiter.Cart(), h.UpdateCartItem)
		cart.DELETE("/items/:bookId", limiter.Cart(), h.RemoveCartItem)
		cart.DELETE("", h.ClearCart)

		user.GET("/coupons/validate", h.ValidateCoupon)

		orders := user.Group("/orders")
		orders.POST("", limiter.Checkout(), h.Checkout)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
		orders.POST("/:id/payments", limiter.Checkout(), h.InitiatePayment)
		orders.GET("/:id/payment", h.LatestPayment)
		orders.GET("/:id/invoice", h.GetInvoice)

		user.POST("/books/:id/comments", h.CreateComment)
		user.DELETE("/comments/:id", h.DeleteComment)

		user.GET("/notifications", h.ListNotifications)
		user.PATCH("/notifications/:id/read", h.MarkNotificationRead)

		shipper := user.Group("/shipments", middleware.RequireRole(middleware.RoleShipper))
		shipper.PATCH("/:id/status", h.UpdateShipmentStatus)
		shipper.POST("/:id/points", h.AddTrackingPoint)
	}

	adm := user.Group("/admin", middleware.RequireAdmin)
	{
		adm.POST("/books", a.CreateBook)
		adm.GET("/books/:id", a.GetBook)
		adm.PUT("/books/:id", a.UpdateBook)

		adm.GET("/coupons", a.ListCoupons)
		adm.POST("/coupons", a.CreateCoupon)
		adm.PATCH("/coupons/:code", a.UpdateCoupon)

		adm.GET("/shipments/:id", a.GetShipment)
		adm.POST("/shipments/:id/assign", a.AssignShipper)
		adm.POST("/payments/expire", a.ExpirePayments)
		adm.POST("/orders/:id/refund", a.RefundOrder)

		adm.GET("/audit/:resource/:resource_id", a.GetAuditLogsByResource)
	}
}
