package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/internal/provider"
	"github.com/salmanbareesh039/check-if-email-exists/internal/syntax"
)

const (
	maxBulkInput       = 100_000
	defaultResultLimit = 50
	maxResultLimit     = 500
)

type jobStore interface {
	CreateJob(ctx context.Context, totalRecords int) (int64, error)
	FindJobByID(ctx context.Context, id int64) (*model.Job, error)
}

type resultStore interface {
	ListByJob(ctx context.Context, jobID int64, limit, offset int) ([]model.TaskResult, error)
	CountByJob(ctx context.Context, jobID int64) (int, error)
}

type taskPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type BulkHandler struct {
	jobs      jobStore
	results   resultStore
	publisher taskPublisher
	logger    *zap.Logger
}

func NewBulkHandler(jobs jobStore, results resultStore, publisher taskPublisher, logger *zap.Logger) *BulkHandler {
	return &BulkHandler{
		jobs:      jobs,
		results:   results,
		publisher: publisher,
		logger:    logger,
	}
}

type bulkRequest struct {
	Input   []string           `json:"input" binding:"required,min=1"`
	Webhook *model.TaskWebhook `json:"webhook"`
}

// CreateBulk handles POST /v1/bulk: it opens a job covering the whole
// input and fans the addresses out to their provider queues. Publish
// failures after job creation leave gaps that show up as an unfinished
// job; the caller can resubmit those addresses.
func (h *BulkHandler) CreateBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input must be a non-empty list of addresses"})
		return
	}
	if len(req.Input) > maxBulkInput {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many addresses in one job"})
		return
	}
	if h.publisher == nil || h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue backend not configured"})
		return
	}

	ctx := c.Request.Context()
	jobID, err := h.jobs.CreateJob(ctx, len(req.Input))
	if err != nil {
		h.logger.Error("Failed to create bulk job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	published := 0
	for _, email := range req.Input {
		queue := model.QueueEverythingElse
		if parsed := syntax.Check(email); parsed.IsValid {
			tag, _ := provider.ClassifyDomain(parsed.Domain)
			queue = model.QueueFor(tag)
		}
		task := model.Task{
			Input:   email,
			JobID:   jobID,
			Attempt: 1,
			Webhook: req.Webhook,
		}
		if err := h.publisher.Publish(ctx, queue, task); err != nil {
			h.logger.Error("Failed to publish bulk task",
				zap.Int64("job_id", jobID),
				zap.String("email", email),
				zap.Error(err),
			)
			continue
		}
		published++
	}

	c.JSON(http.StatusCreated, gin.H{
		"job_id":        jobID,
		"total_records": len(req.Input),
		"published":     published,
	})
}

// GetBulkStatus handles GET /v1/bulk/:job_id.
func (h *BulkHandler) GetBulkStatus(c *gin.Context) {
	if h.jobs == nil || h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	job, err := h.jobs.FindJobByID(ctx, jobID)
	if err != nil {
		if err == pgx.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("Failed to load job", zap.Int64("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	processed, err := h.results.CountByJob(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to count job results", zap.Int64("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":          job.ID,
		"created_at":      job.CreatedAt,
		"total_records":   job.TotalRecords,
		"total_processed": processed,
		"finished":        processed >= job.TotalRecords,
	})
}

// GetBulkResults handles GET /v1/bulk/:job_id/results with limit and
// offset paging.
func (h *BulkHandler) GetBulkResults(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store not configured"})
		return
	}
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", defaultResultLimit)
	if limit < 1 || limit > maxResultLimit {
		limit = defaultResultLimit
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	results, err := h.results.ListByJob(c.Request.Context(), jobID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list job results", zap.Int64("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":  jobID,
		"results": results,
	})
}

func (h *BulkHandler) jobIDParam(c *gin.Context) (int64, bool) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil || jobID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return jobID, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
