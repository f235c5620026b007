package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/xshopai/product-service/internal/event"
)

// ServiceBusProvider publishes to a named Azure Service Bus topic. Used on
// hosting targets where no sidecar is available.
type ServiceBusProvider struct {
	topicName string
	client    *azservicebus.Client
	sender    *azservicebus.Sender
}

// NewServiceBusProvider opens a client and a sender against the topic.
func NewServiceBusProvider(connectionString, topicName string) (*ServiceBusProvider, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(topicName, nil)
	if err != nil {
		client.Close(context.Background())
		return nil, fmt.Errorf("failed to create sender for topic %s: %w", topicName, err)
	}

	return &ServiceBusProvider{topicName: topicName, client: client, sender: sender}, nil
}

// Publish sends the envelope with the event topic as the message subject.
func (p *ServiceBusProvider) Publish(ctx context.Context, topic string, env event.Envelope, correlationID string) bool {
	body, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal event envelope",
			"provider", "servicebus", "topic", topic, "error", err)
		return false
	}

	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &topic,
	}
	if correlationID != "" {
		msg.CorrelationID = &correlationID
	}

	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event via Service Bus",
			"provider", "servicebus", "topic", topic, "serviceBusTopic", p.topicName, "error", err)
		return false
	}

	slog.InfoContext(ctx, "Published event",
		"provider", "servicebus", "topic", topic, "serviceBusTopic", p.topicName, "correlationId", correlationID)
	return true
}

// Close shuts the sender and the client down.
func (p *ServiceBusProvider) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.sender.Close(ctx); err != nil {
		slog.Error("Error closing Service Bus sender", "error", err)
	}
	if err := p.client.Close(ctx); err != nil {
		slog.Error("Error closing Service Bus client", "error", err)
	}
}
