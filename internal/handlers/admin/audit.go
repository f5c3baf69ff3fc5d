package admin

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/apperr"
)

// GetAuditLogsByResource récupère l'historique d'une ressource, du plus récent au plus ancien
// GET /api/admin/audit/:resource/:resource_id?limit=
func (h *Handler) GetAuditLogsByResource(c *gin.Context) {
	resource := c.Param("resource")
	resourceID := c.Param("resource_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	logs, err := h.Audit.List(c.Request.Context(), resource, resourceID, limit)
	if err != nil {
		log.Printf("❌ Erreur récupération logs audit: %v", err)
		_ = c.Error(apperr.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource":    resource,
		"resource_id": resourceID,
		"logs":        logs,
		"total":       len(logs),
	})
}
