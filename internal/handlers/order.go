package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
)

// 🛒 POST /api/orders : la commande est créée même si l'initiation du paiement échoue
func (h *Handler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Orders.Checkout(c.Request.Context(), middleware.UserID(c), middleware.Email(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/orders
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.Orders.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

// GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	o, err := h.Orders.Get(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// POST /api/orders/:id/cancel : corps optionnel {"reason": "..."}
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.CancelOrderRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	o, err := h.Orders.Cancel(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /api/orders/:id/invoice : lien présigné si la facture est archivée, sinon le document
func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.Invoices.Generate(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if inv.URL != "" {
		c.JSON(http.StatusOK, inv)
		return
	}
	c.Header("Content-Disposition", "inline; filename=facture-"+inv.OrderNumber+"."+inv.Format)
	c.Data(http.StatusOK, inv.ContentType(), inv.Content)
}
