package middleware

import (
	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/apperr"
)

// RequireRole laisse passer les rôles listés ; admin est toujours accepté
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden("Accès refusé pour le rôle "+role))
	}
}

// RequireAdmin vérifie que l'utilisateur a le rôle "admin"
func RequireAdmin(c *gin.Context) {
	if !IsAdmin(c) {
		abort(c, apperr.Forbidden("Accès réservé aux administrateurs"))
		return
	}
	c.Next()
}
