// Package httpserver assembles the gin engine and the HTTP server
// lifecycle around the api handlers.
package httpserver

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/api"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
)

// NewRouter builds the engine. headerSecret guards the verification
// groups; an empty secret leaves them open, for single-tenant
// deployments behind their own gateway.
func NewRouter(check *api.CheckHandler, bulk *api.BulkHandler, admin *api.AdminHandler, headerSecret string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	// The otel middleware runs first so the request logger can join log
	// lines to the span.
	r.Use(gin.Recovery(), otel.GinMiddleware(), RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v0 := r.Group("/v0", SecretAuth(headerSecret))
	{
		v0.POST("/check_email", check.CheckInline)
	}

	v1 := r.Group("/v1", SecretAuth(headerSecret))
	{
		v1.POST("/check_email", check.CheckQueued)
		v1.POST("/bulk", bulk.CreateBulk)
		v1.GET("/bulk/:job_id", bulk.GetBulkStatus)
		v1.GET("/bulk/:job_id/results", bulk.GetBulkResults)
		v1.POST("/outbox/replay", admin.ReplayOutbox)
	}

	return r
}
