package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthFunc renvoie l'état ("up" | "down") de chaque dépendance configurée
type HealthFunc func(ctx context.Context) map[string]string

// Health : 503 dès qu'une dépendance est down
func Health(check HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := map[string]string{}
		if check != nil {
			deps = check(c.Request.Context())
		}
		code, status := http.StatusOK, "ok"
		for _, s := range deps {
			if s != "up" {
				code, status = http.StatusServiceUnavailable, "degraded"
				break
			}
		}
		c.JSON(code, gin.H{"status": status, "dependencies": deps})
	}
}
