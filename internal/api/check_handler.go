// Package api holds the gin handlers of the HTTP surface: synchronous
// and queued single checks plus the bulk job endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/internal/provider"
	"github.com/salmanbareesh039/check-if-email-exists/internal/syntax"
)

// rpcTimeout bounds a queued single check: queue wait plus the 60 s
// verification budget plus slack.
const rpcTimeout = 90 * time.Second

// pipeline is the verification entry point; satisfied by
// *verifier.Verifier.
type pipeline interface {
	Check(ctx context.Context, input string) model.Verdict
}

// rpcCaller publishes a task and waits for the worker's reply;
// satisfied by *mq.RPC.
type rpcCaller interface {
	Call(ctx context.Context, routingKey string, payload any) (json.RawMessage, error)
}

type CheckHandler struct {
	pipeline pipeline
	rpc      rpcCaller
	logger   *zap.Logger
}

func NewCheckHandler(pipeline pipeline, rpc rpcCaller, logger *zap.Logger) *CheckHandler {
	return &CheckHandler{
		pipeline: pipeline,
		rpc:      rpc,
		logger:   logger,
	}
}

type checkRequest struct {
	ToEmail string `json:"to_email" binding:"required"`
}

// CheckInline handles POST /v0/check_email: the verification runs in
// the request goroutine and the verdict is the response body.
func (h *CheckHandler) CheckInline(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_email is required"})
		return
	}

	verdict := h.pipeline.Check(c.Request.Context(), req.ToEmail)
	c.JSON(http.StatusOK, verdict)
}

// CheckQueued handles POST /v1/check_email: the task goes through the
// provider queue of its domain and a worker answers on the reply queue,
// so the check runs under the worker's throttle and egress identity.
func (h *CheckHandler) CheckQueued(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_email is required"})
		return
	}
	if h.rpc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue backend not configured"})
		return
	}

	// Routing happens before any DNS work, so only the domain can
	// decide; inconclusive domains share the everything_else lane.
	queue := model.QueueEverythingElse
	if parsed := syntax.Check(req.ToEmail); parsed.IsValid {
		tag, _ := provider.ClassifyDomain(parsed.Domain)
		queue = model.QueueFor(tag)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), rpcTimeout)
	defer cancel()

	reply, err := h.rpc.Call(ctx, queue, model.Task{Input: req.ToEmail})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "verification timed out"})
			return
		}
		h.logger.Error("Queued check failed", zap.String("queue", queue), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "verification backend unavailable"})
		return
	}

	c.Data(http.StatusOK, "application/json", reply)
}
