// Package publisher builds outbound domain events and hands them to the
// active messaging provider.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xshopai/product-service/internal/event"
	"github.com/xshopai/product-service/internal/messaging"
	"github.com/xshopai/product-service/internal/tracing"
)

// Publisher wraps domain events in the standard envelope. Delivery is
// best-effort: the boolean outcome is the caller's to log, the triggering
// business transaction never fails because of it.
type Publisher struct {
	provider messaging.Provider
	source   string
	now      func() time.Time
}

// New creates a Publisher emitting events as the given source service.
func New(provider messaging.Provider, source string) *Publisher {
	return &Publisher{provider: provider, source: source, now: time.Now}
}

// Publish wraps data in an envelope and sends it on the topic named by the
// event type. The correlation id is the explicit one when given, otherwise
// the one in the ambient tracing context.
func (p *Publisher) Publish(ctx context.Context, eventType string, data any, correlationID string) bool {
	if correlationID == "" {
		correlationID = tracing.CorrelationID(ctx)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal event data",
			"eventType", eventType, "error", err)
		return false
	}

	env := event.Envelope{
		SpecVersion:     event.SpecVersion,
		Type:            eventType,
		Source:          p.source,
		ID:              uuid.NewString(),
		Time:            p.now().UTC(),
		DataContentType: "application/json",
		CorrelationID:   correlationID,
		Data:            payload,
	}

	ok := p.provider.Publish(ctx, eventType, env, correlationID)
	if ok {
		slog.InfoContext(ctx, "Published event",
			"eventType", eventType, "eventID", env.ID, "correlationId", correlationID)
	}
	return ok
}

// ProductCreated publishes a product.created event.
func (p *Publisher) ProductCreated(ctx context.Context, productID string, product map[string]any, createdBy, correlationID string) bool {
	return p.Publish(ctx, event.TypeProductCreated, map[string]any{
		"productId": productID,
		"product":   product,
		"createdBy": createdBy,
		"timestamp": p.timestamp(),
	}, correlationID)
}

// ProductUpdated publishes a product.updated event.
func (p *Publisher) ProductUpdated(ctx context.Context, productID string, product map[string]any, updatedBy, correlationID string) bool {
	return p.Publish(ctx, event.TypeProductUpdated, map[string]any{
		"productId": productID,
		"product":   product,
		"updatedBy": updatedBy,
		"timestamp": p.timestamp(),
	}, correlationID)
}

// ProductDeleted publishes a product.deleted event.
func (p *Publisher) ProductDeleted(ctx context.Context, productID, deletedBy, correlationID string) bool {
	return p.Publish(ctx, event.TypeProductDeleted, map[string]any{
		"productId": productID,
		"deletedBy": deletedBy,
		"timestamp": p.timestamp(),
	}, correlationID)
}

// ProductPriceChanged publishes a product.price.changed event.
func (p *Publisher) ProductPriceChanged(ctx context.Context, productID string, oldPrice, newPrice float64, updatedBy, correlationID string) bool {
	return p.Publish(ctx, event.TypePriceChanged, map[string]any{
		"productId": productID,
		"oldPrice":  oldPrice,
		"newPrice":  newPrice,
		"updatedBy": updatedBy,
		"timestamp": p.timestamp(),
	}, correlationID)
}

// BadgeAssigned publishes a product.badge.assigned event. expiresAt may be
// empty for badges that do not expire.
func (p *Publisher) BadgeAssigned(ctx context.Context, productID, badgeType, badgeLabel, assignedBy, expiresAt, correlationID string) bool {
	data := map[string]any{
		"productId":  productID,
		"badgeType":  badgeType,
		"badgeLabel": badgeLabel,
		"assignedBy": assignedBy,
		"timestamp":  p.timestamp(),
	}
	if expiresAt != "" {
		data["expiresAt"] = expiresAt
	}
	return p.Publish(ctx, event.TypeBadgeAssigned, data, correlationID)
}

// BadgeRemoved publishes a product.badge.removed event.
func (p *Publisher) BadgeRemoved(ctx context.Context, productID, badgeType, removedBy, correlationID string) bool {
	return p.Publish(ctx, event.TypeBadgeRemoved, map[string]any{
		"productId": productID,
		"badgeType": badgeType,
		"removedBy": removedBy,
		"timestamp": p.timestamp(),
	}, correlationID)
}

func (p *Publisher) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}
