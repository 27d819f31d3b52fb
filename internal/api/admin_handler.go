package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultReplayLimit = 100
	maxReplayLimit     = 1000
)

// failedReplayer requeues parked outbox events; satisfied by
// *outbox.ReplayService.
type failedReplayer interface {
	ReplayFailed(ctx context.Context, limit int) (int, error)
}

// AdminHandler covers the operator endpoints.
type AdminHandler struct {
	replayer failedReplayer
	logger   *zap.Logger
}

func NewAdminHandler(replayer failedReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{replayer: replayer, logger: logger}
}

// ReplayOutbox handles POST /v1/outbox/replay: it returns failed
// completion events to the dispatcher after a webhook outage.
func (h *AdminHandler) ReplayOutbox(c *gin.Context) {
	if h.replayer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outbox not configured"})
		return
	}

	limit := intQuery(c, "limit", defaultReplayLimit)
	if limit < 1 || limit > maxReplayLimit {
		limit = defaultReplayLimit
	}

	replayed, err := h.replayer.ReplayFailed(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Outbox replay failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay outbox events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"replayed": replayed})
}
