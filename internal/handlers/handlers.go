package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/services"
)

// Handler regroupe les services exposés par l'API client et publique
type Handler struct {
	Carts         *services.CartService
	Orders        *services.OrderService
	Payments      *services.PaymentService
	Shipments     *services.ShipmentService
	Catalog       *services.CatalogService
	Comments      *services.CommentService
	Invoices      *services.InvoiceService
	Notifications *services.NotificationService
	Subscriber    services.Subscriber
}

// parseID lit un paramètre d'URL UUID ; en cas d'échec l'erreur est déjà posée
func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		_ = c.Error(apperr.BadRequest("Identifiant invalide"))
		return uuid.Nil, false
	}
	return id, true
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(middleware.BindError(err))
		return false
	}
	return true
}

// intQuery lit un entier positif, def si absent ou invalide
func intQuery(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
