package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/salmanbareesh039/check-if-email-exists/pkg/otel"
)

// replyToQueue is RabbitMQ's direct reply-to pseudo-queue. Consuming
// from it (auto-ack, exclusive to the channel) lets one channel serve
// any number of concurrent RPC calls without declaring reply queues.
const replyToQueue = "amq.rabbitmq.reply-to"

var ErrRPCClosed = errors.New("mq: rpc client closed")

// RPC turns a task queue into a request/response channel: it publishes
// a task stamped with reply_to and correlation_id, then waits for the
// worker's answer.
type RPC struct {
	channel *amqp091.Channel
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]chan []byte
	closed  bool
}

func NewRPC(conn *amqp091.Connection, logger *zap.Logger) (*RPC, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	deliveries, err := ch.Consume(replyToQueue, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume reply-to queue: %w", err)
	}

	r := &RPC{
		channel: ch,
		logger:  logger,
		pending: make(map[string]chan []byte),
	}
	go r.dispatch(deliveries)
	return r, nil
}

func (r *RPC) dispatch(deliveries <-chan amqp091.Delivery) {
	for d := range deliveries {
		r.mu.Lock()
		waiter, ok := r.pending[d.CorrelationId]
		if ok {
			delete(r.pending, d.CorrelationId)
		}
		r.mu.Unlock()

		if !ok {
			// The caller gave up before the worker answered.
			r.logger.Debug("Dropping uncorrelated RPC reply",
				zap.String("correlation_id", d.CorrelationId))
			continue
		}
		waiter <- d.Body
	}

	r.mu.Lock()
	r.closed = true
	for id, waiter := range r.pending {
		close(waiter)
		delete(r.pending, id)
	}
	r.mu.Unlock()
}

// Call publishes payload to routingKey and blocks for the correlated
// reply or ctx expiry. Requests are transient: a caller that is gone
// has no use for a late answer.
func (r *RPC) Call(ctx context.Context, routingKey string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	corrID := uuid.NewString()
	waiter := make(chan []byte, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRPCClosed
	}
	r.pending[corrID] = waiter
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, corrID)
		r.mu.Unlock()
	}()

	pctx, span := otel.MQPublishSpan(ctx, routingKey, ExchangeName)
	headers := amqp091.Table{}
	otel.InjectMQHeaders(pctx, headers)
	err = r.channel.PublishWithContext(pctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:   "application/json",
			CorrelationId: corrID,
			ReplyTo:       replyToQueue,
			Body:          body,
			Headers:       headers,
		},
	)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("failed to publish RPC request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply, ok := <-waiter:
		if !ok {
			return nil, ErrRPCClosed
		}
		return reply, nil
	}
}

func (r *RPC) Close() {
	if r.channel != nil {
		_ = r.channel.Close()
	}
}
