package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// Limites par fenêtre d'une minute
	APIMaxRequests      = 100
	CartMaxRequests     = 20
	SearchMaxRequests   = 30
	CheckoutMaxRequests = 5

	rateWindow = time.Minute
)

// RateLimiter compte les requêtes dans Redis ; sans client Redis tout passe
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// API limite le nombre de requêtes par IP (général)
func (r *RateLimiter) API() gin.HandlerFunc {
	return r.limit("api_requests", APIMaxRequests, "Trop de requêtes. Réessayez dans 1 minute", byIP)
}

// Cart limite les modifications du panier (anti-spam)
func (r *RateLimiter) Cart() gin.HandlerFunc {
	return r.limit("cart_add", CartMaxRequests, "Trop d'ajouts au panier. Ralentissez un peu", byUser)
}

// Search limite les recherches par IP
func (r *RateLimiter) Search() gin.HandlerFunc {
	return r.limit("search_requests", SearchMaxRequests, "Trop de recherches. Réessayez dans 1 minute", byIP)
}

// Checkout limite les passages de commande par utilisateur
func (r *RateLimiter) Checkout() gin.HandlerFunc {
	return r.limit("checkout_requests", CheckoutMaxRequests, "Trop de commandes en peu de temps. Réessayez dans 1 minute", byUser)
}

func byIP(c *gin.Context) string { return c.ClientIP() }

func byUser(c *gin.Context) string { return UserID(c) }

func (r *RateLimiter) limit(prefix string, max int, message string, keyOf func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := keyOf(c)
		if r == nil || r.client == nil || id == "" {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		key := prefix + ":" + id

		pipe := r.client.Pipeline()
		incr := pipe.Incr(ctx, key)
		ttl := pipe.TTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("⚠️ Rate limit indisponible (%s): %v", prefix, err)
			c.Next()
			return
		}
		count := int(incr.Val())
		if ttl.Val() < 0 {
			r.client.Expire(ctx, key, rateWindow)
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", max))
		if count > max {
			retry := int(ttl.Val().Seconds())
			if retry <= 0 {
				retry = int(rateWindow.Seconds())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       message,
				"retry_after": retry,
			})
			return
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", max-count))
		c.Next()
	}
}
