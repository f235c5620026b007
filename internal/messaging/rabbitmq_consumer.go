package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/tracing"
)

// RabbitConsumer is the pull-path worker: a long-lived connection to a
// durable shared queue, prefetch of exactly one so handler execution is
// strictly sequential per worker. Scale by running more workers on disjoint
// queues, not by sharing this one across goroutines.
type RabbitConsumer struct {
	queue  string
	router *consumer.Router
	conn   *amqp.Connection
	ch     *amqp.Channel

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewRabbitConsumer connects, declares the exchange and the shared durable
// queue, and binds the queue to every topic the router knows.
func NewRabbitConsumer(url, exchange, queue string, router *consumer.Router) (*RabbitConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	for _, topic := range router.Topics() {
		if err := ch.QueueBind(queue, topic, exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue to topic %s: %w", topic, err)
		}
		slog.Info("Bound queue to topic", "queue", queue, "topic", topic)
	}

	// Exactly one unacknowledged message in flight per worker.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	return &RabbitConsumer{queue: queue, router: router, conn: conn, ch: ch, quit: make(chan struct{})}, nil
}

// Start begins consuming in a background goroutine.
func (c *RabbitConsumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming from %s: %w", c.queue, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		slog.InfoContext(ctx, "RabbitMQ consumer started", "queue", c.queue)
		for {
			select {
			case <-ctx.Done():
				slog.InfoContext(ctx, "RabbitMQ consumer stopping", "queue", c.queue)
				return
			case <-c.quit:
				slog.InfoContext(ctx, "RabbitMQ consumer shutting down", "queue", c.queue)
				return
			case d, ok := <-deliveries:
				if !ok {
					slog.WarnContext(ctx, "Delivery channel closed", "queue", c.queue)
					return
				}
				c.handleDelivery(ctx, d)
			}
		}
	}()
	return nil
}

// handleDelivery dispatches one message and applies the acknowledgement
// policy: discard-class failures can never succeed and are acknowledged;
// transient handler failures are negatively acknowledged with requeue.
func (c *RabbitConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	// The stop signal must not cancel a delivery already being handled; the
	// message drains and the receive loop exits afterwards.
	ctx = context.WithoutCancel(ctx)
	if d.CorrelationId != "" {
		ctx = tracing.WithCorrelationID(ctx, d.CorrelationId)
	}

	err := c.router.Dispatch(ctx, d.RoutingKey, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			slog.ErrorContext(ctx, "Failed to ack message", "topic", d.RoutingKey, "error", ackErr)
		}
	case consumer.IsDiscard(err):
		// Already logged where it was classified.
		if ackErr := d.Ack(false); ackErr != nil {
			slog.ErrorContext(ctx, "Failed to ack discarded message", "topic", d.RoutingKey, "error", ackErr)
		}
	default:
		slog.ErrorContext(ctx, "Handler failed, requeueing message", "topic", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			slog.ErrorContext(ctx, "Failed to nack message", "topic", d.RoutingKey, "error", nackErr)
		}
	}
}

// Stop drains the in-flight message and closes the transport.
func (c *RabbitConsumer) Stop() {
	close(c.quit)
	c.wg.Wait()
	if err := c.ch.Close(); err != nil {
		slog.Error("Error closing AMQP channel", "error", err)
	}
	if err := c.conn.Close(); err != nil {
		slog.Error("Error closing RabbitMQ connection", "error", err)
	}
}
