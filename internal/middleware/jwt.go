package middleware

import (
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bookstore_back_end/internal/apperr"
)

const (
	RoleCustomer = "customer"
	RoleShipper  = "shipper"
	RoleAdmin    = "admin"
)

// Clés du contexte gin
const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
)

// AuthRequired vérifie le bearer HS256 et place user_id, email et role dans le contexte.
// L'émission des tokens est faite par le service d'authentification.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperr.Unauthorized("Token manquant"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("❌ Format Authorization invalide: %v parties", len(parts))
			abort(c, apperr.Unauthorized("Format Authorization invalide"))
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("méthode de signature inattendue: %v", token.Header["alg"])
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
		if err != nil {
			log.Printf("❌ Erreur parsing JWT: %v", err)
			abort(c, apperr.Unauthorized("Token invalide ou expiré"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			abort(c, apperr.Unauthorized("Token invalide"))
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			log.Println("❌ user_id manquant dans les claims")
			abort(c, apperr.Unauthorized("user_id manquant"))
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = RoleCustomer
		}
		email, _ := claims["email"].(string)

		c.Set(ctxUserID, userID)
		c.Set(ctxEmail, email)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// TokenFromQuery recopie ?token= dans l'en-tête Authorization (websocket navigateur)
func TokenFromQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if token := c.Query("token"); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }

func Email(c *gin.Context) string { return c.GetString(ctxEmail) }

func Role(c *gin.Context) string { return c.GetString(ctxRole) }

func IsAdmin(c *gin.Context) bool { return Role(c) == RoleAdmin }

func abort(c *gin.Context, err *apperr.Error) {
	_ = c.Error(err)
	c.Abort()
}
