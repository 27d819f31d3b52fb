package outbox

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/pkg/metrics"
)

// Sink delivers one event to its consumer.
type Sink interface {
	Deliver(ctx context.Context, event *Event) error
}

// WebhookSink posts event payloads to a fixed URL, authenticated the
// same way as the per-result webhook.
type WebhookSink struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewWebhookSink(url, secret string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Deliver(ctx context.Context, event *Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(event.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Secret != "" {
		req.Header.Set("X-Backend-Secret", s.Secret)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher polls the outbox and drains pending events into the sink.
type Dispatcher struct {
	repo        *Repository
	sink        Sink
	logger      *zap.Logger
	maxAttempts int
	interval    time.Duration
	batchSize   int
}

func NewDispatcher(repo *Repository, sink Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		sink:        sink,
		logger:      logger,
		maxAttempts: 5,
		interval:    time.Second,
		batchSize:   100,
	}
}

func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	d.maxAttempts = n
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	d.batchSize = n
	return d
}

// Start polls until ctx is done. Run it on its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher",
		zap.Int("max_attempts", d.maxAttempts),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.drainPending(ctx)
		}
	}
}

func (d *Dispatcher) drainPending(ctx context.Context) {
	events, err := d.repo.PendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to load pending outbox events", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		if err := d.sink.Deliver(ctx, event); err != nil {
			d.logger.Warn("Failed to deliver outbox event",
				zap.Int64("event_id", event.ID),
				zap.Int64("job_id", event.JobID),
				zap.String("kind", event.Kind),
				zap.Error(err),
			)
			metrics.IncrementWebhookPost("failed")
			if err := d.repo.MarkFailed(ctx, event.ID, d.maxAttempts); err != nil {
				d.logger.Error("Failed to record delivery failure",
					zap.Int64("event_id", event.ID), zap.Error(err))
			}
			continue
		}

		metrics.IncrementWebhookPost("success")
		if err := d.repo.MarkDelivered(ctx, event.ID); err != nil {
			// The next poll re-delivers; the consumer must tolerate
			// a duplicate notification.
			d.logger.Error("Failed to mark outbox event delivered",
				zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}
}
