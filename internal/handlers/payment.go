package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
)

// Taille maximale acceptée pour un webhook Stripe
const maxWebhookBody = 65536

// 💳 POST /api/orders/:id/payments : nouvelle tentative après échec ou expiration
func (h *Handler) InitiatePayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.InitiatePaymentRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	p, err := h.Payments.Initiate(c.Request.Context(), id, middleware.UserID(c), req.Provider)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GET /api/orders/:id/payment
func (h *Handler) LatestPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.Payments.Latest(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// POST /api/payments/callback : notification de la passerelle de virement.
// Un rejeu renvoie 200 avec transitioned=false.
func (h *Handler) PaymentCallback(c *gin.Context) {
	var cb models.CallbackPayload
	if !bind(c, &cb) {
		return
	}
	res, err := h.Payments.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// 🔔 POST /api/payments/stripe/webhook
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Printf("❌ Erreur lecture webhook Stripe: %v", err)
		_ = c.Error(apperr.BadRequest("Corps illisible"))
		return
	}
	res, err := h.Payments.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	c.JSON(http.StatusOK, res)
}
