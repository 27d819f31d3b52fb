package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DeliveryHandler receives raw deliveries. The handler owns the
// disposition: it must ack or nack every delivery it is given, possibly
// from another goroutine after the verification finishes.
type DeliveryHandler func(ctx context.Context, d amqp091.Delivery)

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   amqp091.Queue
	tag     string
	handler DeliveryHandler
	logger  *zap.Logger
}

// NewConsumer declares and binds the queue and opens a consuming channel
// with the given prefetch. Prefetch bounds unacked deliveries, so it is
// set to the worker concurrency.
func NewConsumer(conn *amqp091.Connection, queueName string, prefetch int, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		queueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
		zap.Int("prefetch", prefetch),
	)

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q,
		tag:     "backend." + queueName,
		logger:  logger,
	}, nil
}

func (c *Consumer) SetHandler(h DeliveryHandler) {
	c.handler = h
}

func (c *Consumer) Queue() string {
	return c.queue.Name
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
}

// Start consumes until ctx is cancelled. Cancellation stops the broker
// from pushing new deliveries; deliveries already buffered still reach
// the handler, which nacks them during drain. Blocks; run in a
// goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = c.channel.Cancel(c.tag, false)
	}()

	c.logger.Info("Consumer started consuming messages",
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		func() {
			// A handler panic must not leave the delivery unacked
			// forever; requeue it and keep the loop alive.
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("Handler panic recovered",
						zap.String("queue", c.queue.Name),
						zap.Any("panic", r),
					)
					if err := msg.Nack(false, true); err != nil {
						c.logger.Error("Failed to nack message after panic",
							zap.String("queue", c.queue.Name),
							zap.Error(err),
						)
					}
				}
			}()

			c.logger.Debug("Received message",
				zap.String("queue", c.queue.Name),
				zap.Int("message_size", len(msg.Body)),
			)

			c.handler(ctx, msg)
		}()
	}

	return nil
}
