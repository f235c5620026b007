package consumer_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/domain"
	"github.com/xshopai/product-service/internal/event"
)

func inventoryEnvelope(t *testing.T, id, eventType string, payload map[string]any) event.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return event.Envelope{
		SpecVersion: event.SpecVersion,
		ID:          id,
		Type:        eventType,
		Source:      "inventory-service",
		Data:        data,
	}
}

func newInventoryFixture(t *testing.T) (*consumer.InventoryConsumer, *fakeProductStore, *fakeLedger) {
	t.Helper()
	ledger := newFakeLedger()
	store := newFakeProductStore(seedProduct("prod-1", "SKU-1"))
	pipeline := consumer.NewPipeline(ledger, fakeTransactor{}, consumer.WithMaxElapsedTime(5*time.Second))
	return consumer.NewInventoryConsumer(pipeline, store, 5), store, ledger
}

func TestInventoryConsumer_StockUpdatedDerivesStatus(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		want     domain.StockStatus
	}{
		{name: "above threshold is in stock", quantity: 12, want: domain.StockInStock},
		{name: "at threshold is low stock", quantity: 5, want: domain.StockLowStock},
		{name: "zero is out of stock", quantity: 0, want: domain.StockOutOfStock},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ic, store, _ := newInventoryFixture(t)

			env := inventoryEnvelope(t, "evt-1", event.TypeStockUpdated, map[string]any{
				"sku": "SKU-1", "quantity": tc.quantity,
			})
			require.NoError(t, ic.HandleStockUpdated(context.Background(), env))

			p, err := store.GetByID(context.Background(), "prod-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Inventory.Status)
			assert.Equal(t, tc.quantity, p.Inventory.AvailableQuantity)
		})
	}
}

func TestInventoryConsumer_LowStockSignalWins(t *testing.T) {
	ic, store, _ := newInventoryFixture(t)

	// Quantity alone would say in_stock; the explicit signal overrides.
	env := inventoryEnvelope(t, "evt-1", event.TypeLowStock, map[string]any{
		"sku": "SKU-1", "quantity": 50,
	})
	require.NoError(t, ic.HandleLowStock(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StockLowStock, p.Inventory.Status)
	assert.Equal(t, 50, p.Inventory.AvailableQuantity)
}

func TestInventoryConsumer_OutOfStockZeroesQuantity(t *testing.T) {
	ic, store, _ := newInventoryFixture(t)

	env := inventoryEnvelope(t, "evt-1", event.TypeOutOfStock, map[string]any{"sku": "SKU-1"})
	require.NoError(t, ic.HandleOutOfStock(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StockOutOfStock, p.Inventory.Status)
	assert.Equal(t, 0, p.Inventory.AvailableQuantity)
}

func TestInventoryConsumer_UnknownSKUDiscarded(t *testing.T) {
	ic, _, ledger := newInventoryFixture(t)

	env := inventoryEnvelope(t, "evt-1", event.TypeStockUpdated, map[string]any{
		"sku": "SKU-ghost", "quantity": 3,
	})
	err := ic.HandleStockUpdated(context.Background(), env)

	assert.True(t, consumer.IsDiscard(err))
	assert.Empty(t, ledger.processed)
}

func TestInventoryConsumer_RedeliveryIsIdempotent(t *testing.T) {
	ic, store, _ := newInventoryFixture(t)

	env := inventoryEnvelope(t, "evt-1", event.TypeStockUpdated, map[string]any{
		"sku": "SKU-1", "quantity": 7,
	})
	require.NoError(t, ic.HandleStockUpdated(context.Background(), env))
	require.NoError(t, ic.HandleStockUpdated(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Inventory.AvailableQuantity)
	assert.Equal(t, domain.StockInStock, p.Inventory.Status)
}
