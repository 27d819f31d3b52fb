package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper remembers which tasks already produced a persisted result, so
// a redelivered message can be acked without probing the mailbox again.
// Redis being down never blocks processing: the result table's unique
// key still guarantees a single row.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func dedupKey(jobID int64, email string) string {
	return fmt.Sprintf("dedup:%d:%s", jobID, strings.ToLower(email))
}

// IsDone reports whether the task was already completed and persisted.
func (d *Deduper) IsDone(ctx context.Context, jobID int64, email string) bool {
	if d == nil || d.rdb == nil {
		return false
	}

	n, err := d.rdb.Exists(ctx, dedupKey(jobID, email)).Result()
	if err != nil {
		// Fail open: process the task and let the DB conflict handling
		// absorb the duplicate.
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.Int64("job_id", jobID),
				zap.String("email", email),
				zap.Error(err),
			)
		}
		return false
	}
	return n > 0
}

// MarkDone records a completed task after its row was written.
func (d *Deduper) MarkDone(ctx context.Context, jobID int64, email string) {
	if d == nil || d.rdb == nil {
		return
	}

	if err := d.rdb.Set(ctx, dedupKey(jobID, email), 1, d.ttl).Err(); err != nil && d.logger != nil {
		d.logger.Warn("Failed to record dedup marker",
			zap.Int64("job_id", jobID),
			zap.String("email", email),
			zap.Error(err),
		)
	}
}
