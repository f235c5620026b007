package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xshopai/product-service/internal/event"
)

// DaprProvider publishes through the local sidecar's HTTP API. The sidecar
// fans out to whatever broker its pub/sub component is configured with, so
// this transport never knows the broker technology.
type DaprProvider struct {
	pubsubName string
	baseURL    string
	client     *http.Client
}

// NewDaprProvider creates a provider talking to the sidecar on the given
// local port.
func NewDaprProvider(pubsubName string, httpPort int) *DaprProvider {
	return &DaprProvider{
		pubsubName: pubsubName,
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", httpPort),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends the envelope to the sidecar's publish endpoint. A sidecar
// that cannot be reached is a false outcome, never an error to the caller.
func (p *DaprProvider) Publish(ctx context.Context, topic string, env event.Envelope, correlationID string) bool {
	body, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal event envelope",
			"provider", "dapr", "topic", topic, "error", err)
		return false
	}

	url := fmt.Sprintf("%s/v1.0/publish/%s/%s", p.baseURL, p.pubsubName, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build sidecar publish request",
			"provider", "dapr", "topic", topic, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish event via sidecar",
			"provider", "dapr", "topic", topic, "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// Dapr answers 204 on success.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.ErrorContext(ctx, "Sidecar rejected publish",
			"provider", "dapr", "topic", topic, "status", resp.StatusCode)
		return false
	}

	slog.InfoContext(ctx, "Published event",
		"provider", "dapr", "topic", topic, "correlationId", correlationID)
	return true
}

// Close releases idle sidecar connections.
func (p *DaprProvider) Close() {
	p.client.CloseIdleConnections()
}
