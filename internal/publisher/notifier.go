package publisher

import (
	"context"
	"log/slog"

	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/domain"
	"github.com/xshopai/product-service/internal/event"
)

// ProductGetter loads the current state of a product for the outbound
// notification.
type ProductGetter interface {
	GetByID(ctx context.Context, id string) (domain.Product, error)
}

// Notifier emits a product.updated event after the pipeline rewrites a
// product's denormalized state, so downstream read models and search indexes
// resync without polling. Like the publisher it rides on, it is best-effort:
// the committed mutation stands whether or not the notification goes out.
type Notifier struct {
	publisher *Publisher
	store     ProductGetter
}

func NewNotifier(publisher *Publisher, store ProductGetter) *Notifier {
	return &Notifier{publisher: publisher, store: store}
}

// AfterApplied is the pipeline hook: it reloads the product the event touched
// and publishes its fresh state.
func (n *Notifier) AfterApplied(ctx context.Context, env event.Envelope, receipt consumer.Receipt) {
	if receipt.SubjectID == "" {
		return
	}

	product, err := n.store.GetByID(ctx, receipt.SubjectID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load product for change notification",
			"productId", receipt.SubjectID, "trigger", env.Type, "error", err)
		return
	}

	n.publisher.ProductUpdated(ctx, product.ID, map[string]any{
		"id":                product.ID,
		"sku":               product.SKU,
		"name":              product.Name,
		"review_aggregates": product.ReviewAggregates,
		"inventory":         product.Inventory,
	}, n.publisher.source, env.Correlation())
}
