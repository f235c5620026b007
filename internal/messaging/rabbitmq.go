package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xshopai/product-service/internal/event"
)

// RabbitProvider publishes directly to a durable topic exchange over a
// long-lived AMQP connection.
type RabbitProvider struct {
	exchange string
	conn     *amqp.Connection

	mu sync.Mutex // amqp channels are not safe for concurrent publish
	ch *amqp.Channel
}

// NewRabbitProvider connects to the broker and declares the exchange.
func NewRabbitProvider(url, exchange string) (*RabbitProvider, error) {
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

	return &RabbitProvider{exchange: exchange, conn: conn, ch: ch}, nil
}

// Publish sends the envelope with the topic as routing key, persistent, with
// the correlation id attached as message metadata.
func (p *RabbitProvider) Publish(ctx context.Context, topic string, env event.Envelope, correlationID string) bool {
	body, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal event envelope",
			"provider", "rabbitmq", "topic", topic, "error", err)
		return false
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: correlationID,
		Body:          body,
	})
	p.mu.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish event via RabbitMQ",
			"provider", "rabbitmq", "topic", topic, "exchange", p.exchange, "error", err)
		return false
	}

	slog.InfoContext(ctx, "Published event",
		"provider", "rabbitmq", "topic", topic, "exchange", p.exchange, "correlationId", correlationID)
	return true
}

// Close shuts the channel and the connection down.
func (p *RabbitProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			slog.Error("Error closing RabbitMQ connection", "error", err)
		}
	}
}
