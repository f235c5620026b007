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

// ProductStore is the catalog-entity boundary the consumers mutate through.
type ProductStore interface {
	GetByID(ctx context.Context, id string) (domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (domain.Product, error)
	UpdateReviewAggregates(ctx context.Context, id string, agg domain.ReviewAggregates, expectedVersion int64) error
	UpdateInventory(ctx context.Context, id string, inv domain.Inventory) error
}

// ReviewConsumer folds review lifecycle events into the review aggregates of
// the affected product.
type ReviewConsumer struct {
	pipeline *Pipeline
	store    ProductStore
	now      func() time.Time
}

func NewReviewConsumer(pipeline *Pipeline, store ProductStore) *ReviewConsumer {
	return &ReviewConsumer{pipeline: pipeline, store: store, now: time.Now}
}

// Register binds the review topics on the router.
func (c *ReviewConsumer) Register(r *Router) {
	r.Register(event.TypeReviewCreated, c.HandleCreated)
	r.Register(event.TypeReviewUpdated, c.HandleUpdated)
	r.Register(event.TypeReviewDeleted, c.HandleDeleted)
}

// HandleCreated processes a review.created event.
func (c *ReviewConsumer) HandleCreated(ctx context.Context, env event.Envelope) error {
	return c.pipeline.Handle(ctx, env, c.applyCreated)
}

// HandleUpdated processes a review.updated event.
func (c *ReviewConsumer) HandleUpdated(ctx context.Context, env event.Envelope) error {
	return c.pipeline.Handle(ctx, env, c.applyUpdated)
}

// HandleDeleted processes a review.deleted event.
func (c *ReviewConsumer) HandleDeleted(ctx context.Context, env event.Envelope) error {
	return c.pipeline.Handle(ctx, env, c.applyDeleted)
}

func (c *ReviewConsumer) applyCreated(ctx context.Context, env event.Envelope) (Receipt, error) {
	payload, err := event.ParseReviewCreated(env.Data)
	if err != nil {
		return Receipt{}, Discard("invalid review.created payload", err)
	}

	product, err := c.loadProduct(ctx, payload.ProductID, payload.ReviewID)
	if err != nil {
		return Receipt{}, err
	}

	agg := domain.ApplyReviewCreated(
		product.ReviewAggregates,
		payload.ReviewID,
		payload.Rating,
		payload.IsVerifiedPurchase,
		payload.CreatedAt,
		c.now(),
	)
	if err := c.store.UpdateReviewAggregates(ctx, product.ID, agg, product.AggregatesVersion); err != nil {
		return Receipt{}, err
	}

	slog.InfoContext(ctx, "Updated review aggregates",
		"productId", product.ID, "reviewId", payload.ReviewID,
		"newAverageRating", agg.AverageRating, "newTotalCount", agg.TotalReviewCount)

	return Receipt{
		SubjectID: product.ID,
		Metadata: map[string]string{
			"reviewId":      payload.ReviewID,
			"rating":        strconv.Itoa(payload.Rating),
			"correlationId": tracing.CorrelationID(ctx),
		},
	}, nil
}

func (c *ReviewConsumer) applyUpdated(ctx context.Context, env event.Envelope) (Receipt, error) {
	payload, err := event.ParseReviewUpdated(env.Data)
	if err != nil {
		return Receipt{}, Discard("invalid review.updated payload", err)
	}

	receipt := Receipt{
		SubjectID: payload.ProductID,
		Metadata: map[string]string{
			"reviewId":      payload.ReviewID,
			"oldRating":     strconv.Itoa(payload.PreviousRating),
			"newRating":     strconv.Itoa(payload.Rating),
			"correlationId": tracing.CorrelationID(ctx),
		},
	}

	// A rating that did not change moves nothing, but the event is still
	// marked processed so redelivery loops stop.
	if payload.Rating == payload.PreviousRating {
		slog.InfoContext(ctx, "Review rating unchanged, marking event processed",
			"productId", payload.ProductID, "reviewId", payload.ReviewID)
		return receipt, nil
	}

	product, err := c.loadProduct(ctx, payload.ProductID, payload.ReviewID)
	if err != nil {
		return Receipt{}, err
	}

	agg := domain.ApplyReviewUpdated(product.ReviewAggregates, payload.PreviousRating, payload.Rating, c.now())
	if err := c.store.UpdateReviewAggregates(ctx, product.ID, agg, product.AggregatesVersion); err != nil {
		return Receipt{}, err
	}

	slog.InfoContext(ctx, "Updated review aggregates",
		"productId", product.ID, "reviewId", payload.ReviewID, "newAverageRating", agg.AverageRating)

	receipt.SubjectID = product.ID
	return receipt, nil
}

func (c *ReviewConsumer) applyDeleted(ctx context.Context, env event.Envelope) (Receipt, error) {
	payload, err := event.ParseReviewDeleted(env.Data)
	if err != nil {
		return Receipt{}, Discard("invalid review.deleted payload", err)
	}

	product, err := c.loadProduct(ctx, payload.ProductID, payload.ReviewID)
	if err != nil {
		return Receipt{}, err
	}

	agg := domain.ApplyReviewDeleted(
		product.ReviewAggregates,
		payload.ReviewID,
		payload.Rating,
		payload.IsVerifiedPurchase,
		c.now(),
	)
	if err := c.store.UpdateReviewAggregates(ctx, product.ID, agg, product.AggregatesVersion); err != nil {
		return Receipt{}, err
	}

	slog.InfoContext(ctx, "Updated review aggregates",
		"productId", product.ID, "reviewId", payload.ReviewID,
		"newAverageRating", agg.AverageRating, "newTotalCount", agg.TotalReviewCount)

	return Receipt{
		SubjectID: product.ID,
		Metadata: map[string]string{
			"reviewId":      payload.ReviewID,
			"rating":        strconv.Itoa(payload.Rating),
			"correlationId": tracing.CorrelationID(ctx),
		},
	}, nil
}

// loadProduct resolves the subject of a review event. A missing product is
// most likely a stale or out-of-order event, so it is discarded with a
// warning rather than retried.
func (c *ReviewConsumer) loadProduct(ctx context.Context, productID, reviewID string) (domain.Product, error) {
	product, err := c.store.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			slog.WarnContext(ctx, "Product not found for review event",
				"productId", productID, "reviewId", reviewID)
			return domain.Product{}, Discard("product "+productID+" not found", err)
		}
		return domain.Product{}, err
	}
	return product, nil
}
