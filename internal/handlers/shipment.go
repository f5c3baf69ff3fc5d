package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
)

// 📦 GET /api/shipments/track/:code (public)
func (h *Handler) TrackShipment(c *gin.Context) {
	info, err := h.Shipments.Track(c.Request.Context(), c.Param("code"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// PATCH /api/shipments/:id/status (livreur assigné ou admin)
func (h *Handler) UpdateShipmentStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateShipmentStatusRequest
	if !bind(c, &req) {
		return
	}
	sh, err := h.Shipments.UpdateStatus(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// POST /api/shipments/:id/points
func (h *Handler) AddTrackingPoint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.TrackingPointRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Shipments.AddTrackingPoint(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}
