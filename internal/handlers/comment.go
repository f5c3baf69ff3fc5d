package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
)

// 💬 GET /api/books/:id/comments : fil complet, réponses imbriquées
func (h *Handler) ListComments(c *gin.Context) {
	bookID, ok := parseID(c, "id")
	if !ok {
		return
	}
	thread, err := h.Comments.Thread(c.Request.Context(), bookID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": thread})
}

// POST /api/books/:id/comments
func (h *Handler) CreateComment(c *gin.Context) {
	bookID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req models.CommentRequest
	if !bind(c, &req) {
		return
	}
	cm, err := h.Comments.Create(c.Request.Context(), bookID, middleware.UserID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

// DELETE /api/comments/:id
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.Comments.Delete(c.Request.Context(), id, middleware.UserID(c), middleware.IsAdmin(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
