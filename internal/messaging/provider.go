// Package messaging provides the broker abstraction: one publish contract
// with three interchangeable transports, selected once at process start.
package messaging

import (
	"context"
	"fmt"

	"github.com/xshopai/product-service/internal/config"
	"github.com/xshopai/product-service/internal/event"
)

// Provider is the uniform publish contract business code is written against.
// Publish is best-effort: failures are logged by the implementation and
// reported as false, never raised. Durability comes from the broker's queue,
// not from the publisher retrying.
type Provider interface {
	Publish(ctx context.Context, topic string, env event.Envelope, correlationID string) bool
	Close()
}

// Kind names a concrete transport. The set is sealed: these three are the
// only implementations, resolved once at startup and injected.
type Kind string

const (
	KindDapr       Kind = "dapr"
	KindRabbitMQ   Kind = "rabbitmq"
	KindServiceBus Kind = "servicebus"
)

// New builds the provider selected by the configuration.
func New(cfg config.Config) (Provider, error) {
	switch Kind(cfg.MessagingProvider) {
	case KindDapr:
		return NewDaprProvider(cfg.DaprPubSubName, cfg.DaprHTTPPort), nil
	case KindRabbitMQ:
		return NewRabbitProvider(cfg.RabbitURL, cfg.RabbitExchange)
	case KindServiceBus:
		return NewServiceBusProvider(cfg.ServiceBusConnectionString, cfg.ServiceBusTopic)
	default:
		return nil, fmt.Errorf("invalid messaging provider %q: must be dapr, rabbitmq or servicebus", cfg.MessagingProvider)
	}
}
