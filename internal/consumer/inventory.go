package consumer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/xshopai/product-service/internal/domain"
	"github.com/xshopai/product-service/internal/event"
	"github.com/xshopai/product-service/internal/tracing"
)

// InventoryConsumer maintains the inventory denormalization from the
// inventory service's events. Writes replace the whole snapshot, so a
// redelivered event lands on the same state it produced the first time.
type InventoryConsumer struct {
	pipeline     *Pipeline
	store        ProductStore
	lowThreshold int
	now          func() time.Time
}

func NewInventoryConsumer(pipeline *Pipeline, store ProductStore, lowThreshold int) *InventoryConsumer {
	return &InventoryConsumer{pipeline: pipeline, store: store, lowThreshold: lowThreshold, now: time.Now}
}

// Register binds the inventory topics on the router.
func (c *InventoryConsumer) Register(r *Router) {
	r.Register(event.TypeStockUpdated, c.HandleStockUpdated)
	r.Register(event.TypeLowStock, c.HandleLowStock)
	r.Register(event.TypeOutOfStock, c.HandleOutOfStock)
}

// HandleStockUpdated processes an inventory.stock.updated event.
func (c *InventoryConsumer) HandleStockUpdated(ctx context.Context, env event.Envelope) error {
	return c.pipeline.Handle(ctx, env, c.applyStockUpdated)
}

// HandleLowStock processes an inventory.low.stock event.
func (c *InventoryConsumer) HandleLowStock(ctx context.Context, env event.Envelope) error {
	return c.pipeline.Handle(ctx, env, c.applyLowStock)
}

// HandleOutOfStock processes an inventory.out.of.stock event.
func (c *InventoryConsumer) HandleOutOfStock(ctx context.Context, env event.Envelope) error {
	return c.pipeline.Handle(ctx, env, c.applyOutOfStock)
}

func (c *InventoryConsumer) applyStockUpdated(ctx context.Context, env event.Envelope) (Receipt, error) {
	payload, err := event.ParseStockUpdated(env.Data)
	if err != nil {
		return Receipt{}, Discard("invalid inventory.stock.updated payload", err)
	}

	product, err := c.loadBySKU(ctx, payload.SKU)
	if err != nil {
		return Receipt{}, err
	}

	inv := domain.ApplyStockUpdated(payload.Quantity, c.lowThreshold, c.now())
	return c.writeInventory(ctx, product, inv, payload.SKU, payload.Quantity)
}

func (c *InventoryConsumer) applyLowStock(ctx context.Context, env event.Envelope) (Receipt, error) {
	payload, err := event.ParseLowStock(env.Data)
	if err != nil {
		return Receipt{}, Discard("invalid inventory.low.stock payload", err)
	}

	product, err := c.loadBySKU(ctx, payload.SKU)
	if err != nil {
		return Receipt{}, err
	}

	inv := domain.ApplyLowStock(payload.Quantity, c.now())
	return c.writeInventory(ctx, product, inv, payload.SKU, payload.Quantity)
}

func (c *InventoryConsumer) applyOutOfStock(ctx context.Context, env event.Envelope) (Receipt, error) {
	payload, err := event.ParseOutOfStock(env.Data)
	if err != nil {
		return Receipt{}, Discard("invalid inventory.out.of.stock payload", err)
	}

	product, err := c.loadBySKU(ctx, payload.SKU)
	if err != nil {
		return Receipt{}, err
	}

	inv := domain.ApplyOutOfStock(c.now())
	return c.writeInventory(ctx, product, inv, payload.SKU, 0)
}

func (c *InventoryConsumer) writeInventory(ctx context.Context, product domain.Product, inv domain.Inventory, sku string, quantity int) (Receipt, error) {
	if err := c.store.UpdateInventory(ctx, product.ID, inv); err != nil {
		return Receipt{}, err
	}

	slog.InfoContext(ctx, "Updated inventory status",
		"productId", product.ID, "sku", sku, "status", inv.Status, "quantity", inv.AvailableQuantity)

	return Receipt{
		SubjectID: product.ID,
		Metadata: map[string]string{
			"sku":           sku,
			"quantity":      strconv.Itoa(quantity),
			"status":        string(inv.Status),
			"correlationId": tracing.CorrelationID(ctx),
		},
	}, nil
}

func (c *InventoryConsumer) loadBySKU(ctx context.Context, sku string) (domain.Product, error) {
	product, err := c.store.GetBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			slog.WarnContext(ctx, "No product matches SKU for inventory event", "sku", sku)
			return domain.Product{}, Discard("no product for sku "+sku, err)
		}
		return domain.Product{}, err
	}
	return product, nil
}
