package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/pkg/logger"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
)

// secretHeader authenticates callers of the verification endpoints.
const secretHeader = "x-reacher-secret"

// SecretAuth rejects requests whose secret header does not match the
// configured value. Comparison is constant-time; an empty configured
// secret disables the check.
func SecretAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing secret"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs each request and feeds the HTTP latency histogram.
// Log lines carry the trace id of the surrounding span when one exists.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(status), duration)

		if path == "/healthz" || path == "/metrics" {
			return
		}
		logger.WithTrace(c.Request.Context(), base).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
