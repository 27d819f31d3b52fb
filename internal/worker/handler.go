package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/internal/provider"
	"github.com/salmanbareesh039/check-if-email-exists/internal/syntax"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/outbox"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/util"
)

// The insert retry does capped doubling from the base; after the last
// attempt the message goes back to the broker.
const (
	persistAttempts = 5
	persistBase     = time.Second
	persistCap      = 60 * time.Second
)

// HandleDelivery owns the disposition of one message: every path acks
// or nacks exactly once. The fast checks (decode, redirect, dedupe)
// run inline on the consumer loop; the verification itself runs on its
// own goroutine once throttle and semaphore clear.
func (w *Worker) HandleDelivery(ctx context.Context, queue string, d amqp091.Delivery) {
	received := time.Now()

	if ctx.Err() != nil {
		// Shutdown drain: hand the message back untouched.
		w.nack(queue, d, true)
		return
	}

	ctx = otel.ExtractMQHeaders(ctx, d.Headers)
	ctx, span := otel.MQConsumeSpan(ctx, queue)
	defer span.End()

	var task model.Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		w.dropPoisoned(ctx, queue, d, fmt.Sprintf("malformed task body: %v", err))
		return
	}
	if task.Attempt < 1 {
		task.Attempt = 1
	}

	logger := w.logger.With(
		zap.String("queue", queue),
		zap.String("email", task.Input),
		zap.Int64("job_id", task.JobID),
	)

	// Single-shot RPC requests answer on their reply queue and skip
	// every bulk concern: routing, throttle, dedupe, persistence.
	if d.ReplyTo != "" && d.CorrelationId != "" {
		w.handleSingleShot(ctx, queue, d, task, logger)
		return
	}

	if w.redirect(ctx, queue, d, task, logger) {
		return
	}

	if w.overRedeliveryCap(ctx, queue, d, task, logger) {
		return
	}

	if w.deduper.IsDone(ctx, task.JobID, task.Input) {
		logger.Debug("Task already persisted, acking redelivery")
		w.ack(queue, d)
		return
	}

	// Throttle first: a blocked acquirer must not sit on a permit.
	if err := w.limiter.Acquire(ctx); err != nil {
		w.nack(queue, d, true)
		return
	}
	if err := w.sem.Acquire(ctx, 1); err != nil {
		w.nack(queue, d, true)
		return
	}

	w.inflight.Add(1)
	metrics.TasksInFlight.Inc()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				logger.Error("Verification panicked", zap.Any("panic", r))
				w.nack(queue, d, true)
			}
			metrics.TasksInFlight.Dec()
			w.sem.Release(1)
			w.inflight.Done()
			metrics.RecordMQConsumeLatency(queue, time.Since(received))
		}()
		taskCtx, cancel := context.WithTimeout(w.processCtx(ctx), taskBudget)
		defer cancel()
		w.process(taskCtx, queue, d, task, logger)
	}()
}

// process runs one bulk verification to the end: verdict, persistence
// with bounded retry, webhook, ack.
func (w *Worker) process(ctx context.Context, queue string, d amqp091.Delivery, task model.Task, logger *zap.Logger) {
	verdict := w.checker.Check(ctx, task.Input)

	// A transient unknown gets one shot at redelivery before it is
	// persisted as-is; the state of the mailbox was never observed.
	if verdict.SMTP.Outcome.IsTransient() && !d.Redelivered {
		logger.Info("Requeueing transient verification",
			zap.String("reason", string(verdict.SMTP.Reason)))
		w.nack(queue, d, true)
		return
	}

	body, err := json.Marshal(verdict)
	if err != nil {
		w.dropPoisoned(ctx, queue, d, fmt.Sprintf("verdict not serializable: %v", err))
		return
	}

	if !w.persistWithRetry(ctx, task, body, logger) {
		w.nack(queue, d, true)
		return
	}

	w.deduper.MarkDone(ctx, task.JobID, task.Input)
	if w.retries != nil {
		// The row is in; a later redelivery of the same task starts
		// with a clean poison count.
		if err := w.retries.Reset(ctx, util.FormatRetryKey(queue, task.JobID, task.Input)); err != nil {
			logger.Debug("Failed to reset redelivery counter", zap.Error(err))
		}
	}
	w.recordCompletionIfDone(ctx, task, logger)
	w.postWebhook(ctx, task, body, logger)
	w.ack(queue, d)

	logger.Info("Done check",
		zap.String("is_reachable", string(verdict.IsReachable)),
		zap.Int("attempt", task.Attempt),
	)
}

// handleSingleShot answers an RPC-style request over the reply queue.
func (w *Worker) handleSingleShot(ctx context.Context, queue string, d amqp091.Delivery, task model.Task, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(w.processCtx(ctx), taskBudget)
	defer cancel()

	verdict := w.checker.Check(ctx, task.Input)

	if err := w.publisher.PublishReply(ctx, d.ReplyTo, d.CorrelationId, verdict); err != nil {
		logger.Error("Failed to publish RPC reply", zap.Error(err))
		w.nack(queue, d, !d.Redelivered)
		return
	}
	w.ack(queue, d)
}

// redirect republishes a task that arrived on the wrong provider
// queue. Only a conclusive domain classification can justify the hop;
// a domain that needs MX evidence is verified in place, wherever it
// landed. One hop only: a task whose stamped routing queue differs
// from the consume queue was already redirected and is processed in
// place to avoid ping-pong between stale routing tables.
func (w *Worker) redirect(ctx context.Context, queue string, d amqp091.Delivery, task model.Task, logger *zap.Logger) bool {
	parsed := syntax.Check(task.Input)
	if !parsed.IsValid {
		return false // the pipeline will produce the invalid verdict
	}

	tag, conclusive := provider.ClassifyDomain(parsed.Domain)
	if !conclusive {
		return false
	}
	derived := model.QueueFor(tag)
	if derived == queue {
		return false
	}
	if task.RoutingQueue != "" && task.RoutingQueue != queue {
		logger.Debug("Routing mismatch on an already-redirected task, processing in place",
			zap.String("derived", derived))
		return false
	}

	if task.RoutingQueue == "" {
		task.RoutingQueue = queue
	}
	if err := w.publisher.Publish(ctx, derived, task); err != nil {
		logger.Error("Failed to redirect task", zap.Error(err))
		w.nack(queue, d, true)
		return true
	}

	metrics.IncrementMQDisposition(queue, "redirect")
	logger.Info("Redirected task to provider queue", zap.String("to", derived))
	w.ack(queue, d)
	return true
}

// overRedeliveryCap drops a task that keeps bouncing. Without Redis
// the count is unknowable and the broker's policy is trusted instead.
func (w *Worker) overRedeliveryCap(ctx context.Context, queue string, d amqp091.Delivery, task model.Task, logger *zap.Logger) bool {
	if !d.Redelivered || w.retries == nil {
		return false
	}

	key := util.FormatRetryKey(queue, task.JobID, task.Input)
	count, err := w.retries.IncrementAndGet(ctx, key)
	if err != nil {
		logger.Warn("Redelivery counter unavailable, processing anyway", zap.Error(err))
		return false
	}
	if count < maxRedeliveries {
		return false
	}

	// Write an error row so the job still converges to total_records.
	taskErr := fmt.Sprintf("dropped after %d redeliveries", count)
	if _, err := w.results.SaveError(ctx, task.JobID, task.Input, w.backendName, taskErr); err != nil {
		logger.Error("Failed to persist error row for dropped task", zap.Error(err))
	}
	w.dropPoisoned(ctx, queue, d, taskErr)
	return true
}

// persistWithRetry writes the verdict row, backing off on transient
// store trouble. Permanent errors and an exhausted budget both leave
// the message to redelivery; the unique key keeps the row single.
func (w *Worker) persistWithRetry(ctx context.Context, task model.Task, body []byte, logger *zap.Logger) bool {
	delay := persistBase
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		inserted, err := w.results.SaveResult(ctx, task.JobID, task.Input, w.backendName, body)
		if err == nil {
			if !inserted {
				logger.Debug("Result row already present, treating as persisted")
			}
			return true
		}

		retryable, kind := util.IsRetryableError(err)
		logger.Warn("Failed to persist result",
			zap.Int("attempt", attempt),
			zap.String("kind", kind),
			zap.Error(err),
		)
		if !retryable {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay *= 2
		if delay > persistCap {
			delay = persistCap
		}
	}
	return false
}

// recordCompletionIfDone writes the job-completed outbox event once
// every task of the job has a persisted row. The outbox's unique key
// absorbs the race when several workers finish the last rows together.
func (w *Worker) recordCompletionIfDone(ctx context.Context, task model.Task, logger *zap.Logger) {
	if task.JobID <= 0 || w.jobs == nil || w.completions == nil {
		return
	}

	job, err := w.jobs.FindJobByID(ctx, task.JobID)
	if err != nil {
		logger.Warn("Failed to load job for completion check", zap.Error(err))
		return
	}
	count, err := w.results.CountByJob(ctx, task.JobID)
	if err != nil {
		logger.Warn("Failed to count job results", zap.Error(err))
		return
	}
	if count < job.TotalRecords {
		return
	}

	inserted, err := w.completions.RecordJobCompleted(ctx, outbox.JobCompletedPayload{
		JobID:        job.ID,
		TotalRecords: job.TotalRecords,
		BackendName:  w.backendName,
		CompletedAt:  time.Now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to record job completion", zap.Error(err))
		return
	}
	if inserted {
		logger.Info("Bulk job completed", zap.Int("total_records", job.TotalRecords))
	}
}

// postWebhook fires the per-result webhook when one is configured,
// either on the task or as the worker default. Failures are logged
// only; the row is already persisted and the ack must go through.
func (w *Worker) postWebhook(ctx context.Context, task model.Task, body []byte, logger *zap.Logger) {
	url := w.defaultHook
	if task.Webhook != nil && task.Webhook.URL != "" {
		url = task.Webhook.URL
	}
	if url == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Warn("Webhook request build failed", zap.Error(err))
		metrics.IncrementWebhookPost("failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.webhookSecret != "" {
		req.Header.Set("X-Backend-Secret", w.webhookSecret)
	}

	resp, err := w.webhook.Do(req)
	if err != nil {
		logger.Warn("Webhook POST failed", zap.Error(err))
		metrics.IncrementWebhookPost("failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn("Webhook POST rejected", zap.Int("status", resp.StatusCode))
		metrics.IncrementWebhookPost("failed")
		return
	}
	metrics.IncrementWebhookPost("success")
}

// dropPoisoned parks the message on the dead letter queue with the
// failure attached, then acks the original so it stops looping.
func (w *Worker) dropPoisoned(ctx context.Context, queue string, d amqp091.Delivery, reason string) {
	if err := w.publisher.PublishToDLQ(ctx, queue, d.Body, reason); err != nil {
		w.logger.Error("Failed to publish to DLQ, requeueing instead",
			zap.String("queue", queue), zap.Error(err))
		w.nack(queue, d, true)
		return
	}
	metrics.IncrementMQDisposition(queue, "drop")
	w.logger.Warn("Dropped poisoned message", zap.String("queue", queue), zap.String("reason", reason))
	w.ack(queue, d)
}

func (w *Worker) ack(queue string, d amqp091.Delivery) {
	if err := d.Ack(false); err != nil {
		w.logger.Error("Failed to ack", zap.String("queue", queue), zap.Error(err))
		return
	}
	metrics.IncrementMQDisposition(queue, "ack")
}

func (w *Worker) nack(queue string, d amqp091.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		w.logger.Error("Failed to nack", zap.String("queue", queue), zap.Error(err))
		return
	}
	if requeue {
		metrics.IncrementMQDisposition(queue, "requeue")
	}
}
