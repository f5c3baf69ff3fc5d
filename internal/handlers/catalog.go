package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 📚 GET /api/books?limit=&offset=
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.Catalog.List(c.Request.Context(), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books, "total": len(books)})
}

// GET /api/books/:id
func (h *Handler) GetBook(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.Catalog.Get(c.Request.Context(), id, false)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// 🔍 GET /api/books/search?q=
func (h *Handler) SearchBooks(c *gin.Context) {
	q := c.Query("q")
	books, err := h.Catalog.Search(c.Request.Context(), q, intQuery(c, "limit", 20))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "books": books, "total": len(books)})
}

// GET /api/books/suggest?q= : complétion sur le préfixe du titre
func (h *Handler) SuggestBooks(c *gin.Context) {
	books, err := h.Catalog.Suggest(c.Request.Context(), c.Query("q"), intQuery(c, "limit", 10))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": books})
}
