// Package worker runs the bulk verification loop: it consumes tasks
// from the per-provider queues, paces them through the throttle and
// the concurrency semaphore, dispatches each to the verification
// pipeline and persists the verdicts.
package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/salmanbareesh039/check-if-email-exists/internal/config"
	"github.com/salmanbareesh039/check-if-email-exists/internal/model"
	"github.com/salmanbareesh039/check-if-email-exists/internal/throttle"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/mq"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/outbox"
	"github.com/salmanbareesh039/check-if-email-exists/pkg/util"
)

const (
	// drainGrace bounds how long shutdown waits for in-flight
	// verifications before the remaining messages are left to the
	// broker for redelivery.
	drainGrace = 30 * time.Second

	// maxRedeliveries drops a task to the DLQ once it keeps coming
	// back; enforced through the Redis counter when one is configured.
	maxRedeliveries = 3

	// taskBudget bounds one dispatched task end to end: the 60 s
	// verification plus persistence retries and the webhook.
	taskBudget = 3 * time.Minute

	webhookTimeout = 10 * time.Second
)

// Checker is the verification pipeline; satisfied by
// *verifier.Verifier.
type Checker interface {
	Check(ctx context.Context, input string) model.Verdict
}

// resultStore is the slice of the repository the worker needs.
type resultStore interface {
	SaveResult(ctx context.Context, jobID int64, email, backendName string, result json.RawMessage) (bool, error)
	SaveError(ctx context.Context, jobID int64, email, backendName, taskErr string) (bool, error)
	CountByJob(ctx context.Context, jobID int64) (int, error)
}

// jobStore supplies the job size for completion detection.
type jobStore interface {
	FindJobByID(ctx context.Context, id int64) (*model.Job, error)
}

// CompletionRecorder writes the job-completed outbox event; satisfied
// by *outbox.Repository. Exported so main can wire it conditionally.
type CompletionRecorder interface {
	RecordJobCompleted(ctx context.Context, payload outbox.JobCompletedPayload) (bool, error)
}

// taskPublisher covers redirects, RPC replies and the dead letter
// queue; satisfied by *mq.Publisher.
type taskPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	PublishReply(ctx context.Context, replyTo, correlationID string, payload any) error
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error
}

// Worker owns the consumers of the configured queue subset.
type Worker struct {
	backendName   string
	webhookSecret string
	defaultHook   string
	queues        []string
	concurrency   int64

	checker     Checker
	results     resultStore
	jobs        jobStore
	completions CompletionRecorder
	publisher   taskPublisher
	limiter     *throttle.Limiter
	sem         *semaphore.Weighted
	deduper     *util.Deduper
	retries     *util.RetryCounter
	webhook     *http.Client

	// taskCtx is what dispatched verifications run under: decoupled
	// from consume cancellation so shutdown drains in-flight work,
	// hard-cancelled only when the drain grace expires.
	taskCtx    context.Context
	taskCancel context.CancelFunc

	inflight sync.WaitGroup
	logger   *zap.Logger
}

// New assembles a worker. deduper and retries may be nil when Redis is
// not configured; the result table's unique key and the broker's
// redelivery policy then carry those concerns alone. jobs and
// completions may be nil when the completion outbox is disabled.
func New(cfg *config.Config, checker Checker, results resultStore, jobs jobStore, completions CompletionRecorder, publisher taskPublisher, deduper *util.Deduper, retries *util.RetryCounter, logger *zap.Logger) *Worker {
	return &Worker{
		backendName:   cfg.BackendName,
		webhookSecret: cfg.WebhookSecret,
		defaultHook:   cfg.Worker.Webhook.OnEachEmail.URL,
		queues:        cfg.Worker.Queues,
		concurrency:   int64(cfg.Worker.Concurrency),
		checker:       checker,
		results:       results,
		jobs:          jobs,
		completions:   completions,
		publisher:     publisher,
		limiter:       throttle.New(cfg.Worker.Throttle),
		sem:           semaphore.NewWeighted(int64(cfg.Worker.Concurrency)),
		deduper:       deduper,
		retries:       retries,
		webhook:       &http.Client{Timeout: webhookTimeout},
		logger:        logger,
	}
}

// Run consumes until ctx is cancelled, then drains in-flight
// verifications within the grace window. Prefetch equals the
// concurrency, so the worker never holds more unacked messages than it
// can run.
func (w *Worker) Run(ctx context.Context, conn *amqp091.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := mq.DeclareDLQExchange(ch); err != nil {
		ch.Close()
		return err
	}
	for _, q := range w.queues {
		if _, err := mq.DeclareDLQQueue(ch, q); err != nil {
			ch.Close()
			return err
		}
	}
	ch.Close()

	w.taskCtx, w.taskCancel = context.WithCancel(context.WithoutCancel(ctx))
	defer w.taskCancel()

	var consumers []*mq.Consumer
	for _, q := range w.queues {
		c, err := mq.NewConsumer(conn, q, int(w.concurrency), w.logger)
		if err != nil {
			return err
		}
		queue := q
		c.SetHandler(func(ctx context.Context, d amqp091.Delivery) {
			w.HandleDelivery(ctx, queue, d)
		})
		consumers = append(consumers, c)
	}

	var loops sync.WaitGroup
	for _, c := range consumers {
		loops.Add(1)
		go func(c *mq.Consumer) {
			defer loops.Done()
			if err := c.Start(ctx); err != nil {
				w.logger.Error("Consumer stopped", zap.String("queue", c.Queue()), zap.Error(err))
			}
		}(c)
	}

	<-ctx.Done()
	w.logger.Info("Worker shutting down, draining in-flight verifications")

	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("Worker drained cleanly")
	case <-time.After(drainGrace):
		w.taskCancel()
		w.logger.Warn("Worker drain grace expired, leaving the rest to redelivery")
	}

	loops.Wait()
	for _, c := range consumers {
		c.Close()
	}
	return nil
}

// processCtx builds the context one dispatched task runs under. It is
// detached from the consume context's cancellation but keeps the
// delivery's trace context, so shutdown drains instead of aborting.
func (w *Worker) processCtx(ctx context.Context) context.Context {
	base := w.taskCtx
	if base == nil {
		base = context.Background()
	}
	return trace.ContextWithSpanContext(base, trace.SpanContextFromContext(ctx))
}
