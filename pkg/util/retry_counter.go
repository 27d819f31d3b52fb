package util

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter tracks redeliveries of a task across worker restarts.
// The broker's redelivered flag only says "seen before", not how often;
// the counter makes the poison cap enforceable.
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// IncrementAndGet increments the counter for a key and returns the new
// count.
func (r *RetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// Expiration is set on first increment only.
	if count == 1 {
		r.rdb.Expire(ctx, key, r.ttl)
	}

	return count, nil
}

// Reset clears the counter once the task's row is persisted.
func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// FormatRetryKey builds the redelivery counter key for one task.
func FormatRetryKey(queue string, jobID int64, email string) string {
	return fmt.Sprintf("retry:%s:%d:%s", queue, jobID, strings.ToLower(email))
}
