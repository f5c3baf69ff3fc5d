package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/services"
)

// Handler regroupe les opérations réservées aux administrateurs
type Handler struct {
	Catalog     *services.CatalogService
	Pricing     *services.PricingService
	Shipments   *services.ShipmentService
	Payments    *services.PaymentService
	Audit       audit.Logger
	ExpireAfter time.Duration
}

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

// =============================================
// LIVRES
// =============================================

// POST /api/admin/books
func (h *Handler) CreateBook(c *gin.Context) {
	var req models.BookRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.Catalog.Create(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// PUT /api/admin/books/:id
func (h *Handler) UpdateBook(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.BookRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.Catalog.Update(c.Request.Context(), id, req, middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/admin/books/:id : visible même inactif
func (h *Handler) GetBook(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.Catalog.Get(c.Request.Context(), id, true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// =============================================
// COUPONS
// =============================================

// GET /api/admin/coupons
func (h *Handler) ListCoupons(c *gin.Context) {
	coupons, err := h.Pricing.ListCoupons(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons, "total": len(coupons)})
}

// POST /api/admin/coupons
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req models.CouponRequest
	if !bind(c, &req) {
		return
	}
	cp, err := h.Pricing.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.NewEntry(audit.ResourceCoupon, cp.Code, audit.ActionCouponCreate,
		middleware.UserID(c), nil, cp))
	c.JSON(http.StatusCreated, cp)
}

// PATCH /api/admin/coupons/:code
func (h *Handler) UpdateCoupon(c *gin.Context) {
	var upd models.CouponUpdate
	if !bind(c, &upd) {
		return
	}
	cp, err := h.Pricing.UpdateCoupon(c.Request.Context(), c.Param("code"), upd)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.NewEntry(audit.ResourceCoupon, cp.Code, audit.ActionCouponUpdate,
		middleware.UserID(c), nil, upd))
	c.JSON(http.StatusOK, cp)
}

// =============================================
// EXPÉDITIONS & PAIEMENTS
// =============================================

// POST /api/admin/shipments/:id/assign
func (h *Handler) AssignShipper(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.AssignShipperRequest
	if !bind(c, &req) {
		return
	}
	sh, err := h.Shipments.Assign(c.Request.Context(), id, req.ShipperID, middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// GET /api/admin/shipments/:id
func (h *Handler) GetShipment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sh, err := h.Shipments.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// ⏱️ POST /api/admin/payments/expire : balayage immédiat, sans attendre le worker
func (h *Handler) ExpirePayments(c *gin.Context) {
	n, err := h.Payments.ExpireStale(c.Request.Context(), h.ExpireAfter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}

// 💰 POST /api/admin/orders/:id/refund
func (h *Handler) RefundOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.Payments.Refund(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}
