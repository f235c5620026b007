package consumer_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/domain"
	"github.com/xshopai/product-service/internal/event"
)

// fakeProductStore keeps products in memory and enforces the same optimistic
// versioning contract as the real store. conflictsLeft injects version
// conflicts to exercise the retry path.
type fakeProductStore struct {
	mu            sync.Mutex
	products      map[string]domain.Product // keyed by id
	conflictsLeft int
}

func newFakeProductStore(products ...domain.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *fakeProductStore) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (s *fakeProductStore) UpdateReviewAggregates(ctx context.Context, id string, agg domain.ReviewAggregates, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return domain.ErrVersionConflict
	}
	p, ok := s.products[id]
	if !ok || p.AggregatesVersion != expectedVersion {
		return domain.ErrVersionConflict
	}
	p.ReviewAggregates = agg
	p.AggregatesVersion++
	s.products[id] = p
	return nil
}

func (s *fakeProductStore) UpdateInventory(ctx context.Context, id string, inv domain.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Inventory = inv
	s.products[id] = p
	return nil
}

func seedProduct(id, sku string) domain.Product {
	return domain.Product{
		ID:               id,
		SKU:              sku,
		Name:             "Trail Runner",
		ReviewAggregates: domain.NewReviewAggregates(),
	}
}

func reviewEnvelope(t *testing.T, id, eventType string, payload map[string]any) event.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return event.Envelope{
		SpecVersion: event.SpecVersion,
		ID:          id,
		Type:        eventType,
		Source:      "review-service",
		Data:        data,
	}
}

func newReviewFixture(t *testing.T) (*consumer.ReviewConsumer, *fakeProductStore, *fakeLedger) {
	t.Helper()
	ledger := newFakeLedger()
	store := newFakeProductStore(seedProduct("prod-1", "SKU-1"))
	pipeline := consumer.NewPipeline(ledger, fakeTransactor{}, consumer.WithMaxElapsedTime(5*time.Second))
	return consumer.NewReviewConsumer(pipeline, store), store, ledger
}

func TestReviewConsumer_CreatedUpdatesAggregates(t *testing.T) {
	rc, store, ledger := newReviewFixture(t)

	env := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId":          "prod-1",
		"reviewId":           "rev-1",
		"rating":             5,
		"isVerifiedPurchase": true,
		"createdAt":          "2025-06-01T10:00:00Z",
	})
	require.NoError(t, rc.HandleCreated(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.ReviewAggregates.AverageRating)
	assert.Equal(t, 1, p.ReviewAggregates.TotalReviewCount)
	assert.Equal(t, 1, p.ReviewAggregates.VerifiedReviewCount)
	assert.Equal(t, int64(1), p.AggregatesVersion)
	assert.Equal(t, "prod-1", ledger.processed["evt-1"])
}

func TestReviewConsumer_RedeliveryAppliesOnce(t *testing.T) {
	rc, store, _ := newReviewFixture(t)

	env := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId": "prod-1",
		"reviewId":  "rev-1",
		"rating":    4,
		"createdAt": "2025-06-01T10:00:00Z",
	})
	require.NoError(t, rc.HandleCreated(context.Background(), env))
	require.NoError(t, rc.HandleCreated(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewAggregates.TotalReviewCount, "redelivery must not double-count")
	assert.Equal(t, 4.0, p.ReviewAggregates.AverageRating)
}

func TestReviewConsumer_VersionConflictRetriesWithFreshRead(t *testing.T) {
	rc, store, ledger := newReviewFixture(t)
	store.conflictsLeft = 1

	env := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId": "prod-1",
		"reviewId":  "rev-1",
		"rating":    3,
		"createdAt": "2025-06-01T10:00:00Z",
	})
	require.NoError(t, rc.HandleCreated(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewAggregates.TotalReviewCount)
	assert.Equal(t, "prod-1", ledger.processed["evt-1"])
}

func TestReviewConsumer_UnknownProductDiscarded(t *testing.T) {
	rc, _, ledger := newReviewFixture(t)

	env := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId": "prod-ghost",
		"reviewId":  "rev-1",
		"rating":    5,
		"createdAt": "2025-06-01T10:00:00Z",
	})
	err := rc.HandleCreated(context.Background(), env)

	assert.True(t, consumer.IsDiscard(err))
	assert.Empty(t, ledger.processed)
}

func TestReviewConsumer_InvalidPayloadDiscarded(t *testing.T) {
	rc, _, _ := newReviewFixture(t)

	env := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId": "prod-1",
		// rating missing
		"reviewId":  "rev-1",
		"createdAt": "2025-06-01T10:00:00Z",
	})
	err := rc.HandleCreated(context.Background(), env)

	assert.True(t, consumer.IsDiscard(err))
}

func TestReviewConsumer_UpdatedMovesAverage(t *testing.T) {
	rc, store, _ := newReviewFixture(t)

	created := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId": "prod-1",
		"reviewId":  "rev-1",
		"rating":    2,
		"createdAt": "2025-06-01T10:00:00Z",
	})
	require.NoError(t, rc.HandleCreated(context.Background(), created))

	updated := reviewEnvelope(t, "evt-2", event.TypeReviewUpdated, map[string]any{
		"productId":      "prod-1",
		"reviewId":       "rev-1",
		"rating":         5,
		"previousRating": 2,
	})
	require.NoError(t, rc.HandleUpdated(context.Background(), updated))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.ReviewAggregates.AverageRating)
	assert.Equal(t, 1, p.ReviewAggregates.TotalReviewCount)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 1}, p.ReviewAggregates.RatingDistribution)
}

func TestReviewConsumer_UnchangedRatingStillMarksProcessed(t *testing.T) {
	rc, store, ledger := newReviewFixture(t)

	env := reviewEnvelope(t, "evt-1", event.TypeReviewUpdated, map[string]any{
		"productId":      "prod-1",
		"reviewId":       "rev-1",
		"rating":         4,
		"previousRating": 4,
	})
	require.NoError(t, rc.HandleUpdated(context.Background(), env))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.AggregatesVersion, "no mutation for an unchanged rating")
	assert.Equal(t, "prod-1", ledger.processed["evt-1"])
}

func TestReviewConsumer_DeletedRemovesContribution(t *testing.T) {
	rc, store, _ := newReviewFixture(t)

	created := reviewEnvelope(t, "evt-1", event.TypeReviewCreated, map[string]any{
		"productId":          "prod-1",
		"reviewId":           "rev-1",
		"rating":             5,
		"isVerifiedPurchase": true,
		"createdAt":          "2025-06-01T10:00:00Z",
	})
	require.NoError(t, rc.HandleCreated(context.Background(), created))

	deleted := reviewEnvelope(t, "evt-2", event.TypeReviewDeleted, map[string]any{
		"productId":          "prod-1",
		"reviewId":           "rev-1",
		"rating":             5,
		"isVerifiedPurchase": true,
	})
	require.NoError(t, rc.HandleDeleted(context.Background(), deleted))

	p, err := store.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.ReviewAggregates.TotalReviewCount)
	assert.Equal(t, 0, p.ReviewAggregates.VerifiedReviewCount)
	assert.Equal(t, 0.0, p.ReviewAggregates.AverageRating)
	assert.Empty(t, p.ReviewAggregates.RecentReviews)
}
