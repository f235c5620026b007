// Package config is centralized process configuration. Infra values live here
// and typed config is passed into builders.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every environment-driven setting the service reads at startup.
type Config struct {
	ServiceName string
	HTTPPort    string

	PostgresDSN string
	RedisAddr   string

	// MessagingProvider selects the transport: "dapr", "rabbitmq" or "servicebus".
	MessagingProvider string

	DaprHTTPPort   int
	DaprPubSubName string

	RabbitURL      string
	RabbitExchange string
	RabbitQueue    string

	ServiceBusConnectionString string
	ServiceBusTopic            string

	LowStockThreshold int
}

// Load reads configuration from the environment, applying defaults and
// validating the settings required by the selected messaging provider.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:       envOr("SERVICE_NAME", "product-service"),
		HTTPPort:          envOr("HTTP_PORT", "8080"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		MessagingProvider: envOr("MESSAGING_PROVIDER", "dapr"),

		DaprPubSubName: envOr("DAPR_PUBSUB_NAME", "pubsub"),

		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		RabbitExchange: envOr("RABBITMQ_EXCHANGE", "xshopai.events"),
		RabbitQueue:    envOr("RABBITMQ_QUEUE", "product-service-events"),

		ServiceBusConnectionString: os.Getenv("SERVICEBUS_CONNECTION_STRING"),
		ServiceBusTopic:            os.Getenv("SERVICEBUS_TOPIC"),
	}

	var err error
	cfg.DaprHTTPPort, err = envIntOr("DAPR_HTTP_PORT", 3500)
	if err != nil {
		return Config{}, err
	}
	cfg.LowStockThreshold, err = envIntOr("LOW_STOCK_THRESHOLD", 5)
	if err != nil {
		return Config{}, err
	}

	switch cfg.MessagingProvider {
	case "dapr":
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			return Config{}, fmt.Errorf("RABBITMQ_URL is required when MESSAGING_PROVIDER=rabbitmq")
		}
	case "servicebus":
		if cfg.ServiceBusConnectionString == "" {
			return Config{}, fmt.Errorf("SERVICEBUS_CONNECTION_STRING is required when MESSAGING_PROVIDER=servicebus")
		}
		if cfg.ServiceBusTopic == "" {
			return Config{}, fmt.Errorf("SERVICEBUS_TOPIC is required when MESSAGING_PROVIDER=servicebus")
		}
	default:
		return Config{}, fmt.Errorf("invalid MESSAGING_PROVIDER %q: must be dapr, rabbitmq or servicebus", cfg.MessagingProvider)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
