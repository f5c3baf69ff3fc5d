package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bookstore_back_end/internal/metrics"
)

// Metrics compte les requêtes par route (modèle gin, pas l'URL brute)
func Metrics(m *metrics.ServerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.Requests.WithLabelValues(handler, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}
