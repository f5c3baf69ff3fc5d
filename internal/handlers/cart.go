package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
)

// 🟢 GET /api/cart
func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.Carts.GetOrCreateActive(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🟢 POST /api/cart/items
func (h *Handler) AddCartItem(c *gin.Context) {
	var req models.AddCartItemRequest
	if !bind(c, &req) {
		return
	}
	cart, err := h.Carts.AddItem(c.Request.Context(), middleware.UserID(c), req.BookID, req.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🟡 PATCH /api/cart/items/:bookId
func (h *Handler) UpdateCartItem(c *gin.Context) {
	bookID, ok := parseID(c, "bookId")
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if !bind(c, &req) {
		return
	}
	cart, err := h.Carts.UpdateQuantity(c.Request.Context(), middleware.UserID(c), bookID, req.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🔴 DELETE /api/cart/items/:bookId
func (h *Handler) RemoveCartItem(c *gin.Context) {
	bookID, ok := parseID(c, "bookId")
	if !ok {
		return
	}
	cart, err := h.Carts.RemoveItem(c.Request.Context(), middleware.UserID(c), bookID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🔴 DELETE /api/cart
func (h *Handler) ClearCart(c *gin.Context) {
	cart, err := h.Carts.Clear(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// GET /api/cart/quote?coupon=CODE
func (h *Handler) QuoteCart(c *gin.Context) {
	q, err := h.Carts.Quote(c.Request.Context(), middleware.UserID(c), c.Query("coupon"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// GET /api/coupons/validate?code=CODE : verdict calculé sur le panier courant
func (h *Handler) ValidateCoupon(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		_ = c.Error(apperr.FieldError("code", "Champ requis"))
		return
	}
	q, err := h.Carts.Quote(c.Request.Context(), middleware.UserID(c), code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, q.Coupon)
}
