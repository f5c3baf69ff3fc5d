package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/apperr"
)

const CallbackSecretHeader = "X-Callback-Secret"

// CallbackSecret protège le callback de la passerelle par un secret partagé.
// Sans secret configuré le contrôle est désactivé (mode test).
func CallbackSecret(secret string) gin.HandlerFunc {
	if secret == "" {
		log.Println("⚠️ Pas de PAYMENT_CALLBACK_SECRET, callback non authentifié")
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(CallbackSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			log.Printf("❌ Callback refusé depuis %s: secret invalide", c.ClientIP())
			abort(c, apperr.Unauthorized("Secret de callback invalide"))
			return
		}
		c.Next()
	}
}
