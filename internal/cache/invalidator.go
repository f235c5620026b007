// Package cache drops stale product read-cache entries after the event
// pipeline mutates denormalized state.
package cache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "product:"

// Invalidator removes cached product views so the next read sees the freshly
// written aggregates. The cache is advisory: failures are logged and never
// propagated into the event pipeline.
type Invalidator struct {
	client *redis.Client
}

// New creates an Invalidator. A nil client disables invalidation entirely,
// which keeps deployments without Redis wiring-free.
func New(client *redis.Client) *Invalidator {
	return &Invalidator{client: client}
}

// InvalidateProduct deletes the cached view of one product.
func (i *Invalidator) InvalidateProduct(ctx context.Context, productID string) {
	if i == nil || i.client == nil || productID == "" {
		return
	}
	if err := i.client.Del(ctx, productKeyPrefix+productID).Err(); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate cached product", "productId", productID, "error", err)
		return
	}
	slog.DebugContext(ctx, "Invalidated cached product", "productId", productID)
}

// Close releases the underlying connection.
func (i *Invalidator) Close() {
	if i == nil || i.client == nil {
		return
	}
	if err := i.client.Close(); err != nil {
		slog.Warn("Error closing redis client", "error", err)
	}
}
