package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xshopai/product-service/internal/domain"
)

// ProductStore reads and writes the event-fed slices of a catalog record:
// review aggregates and the inventory denormalization.
type ProductStore struct {
	db *DB
}

func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

const productColumns = `id, sku, name, review_aggregates, aggregates_version, inventory, created_at, updated_at`

// GetByID loads a product by its catalog id.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return s.scanProduct(s.db.conn(ctx).QueryRow(ctx, query, id))
}

// GetBySKU loads a product by the SKU inventory events are keyed on.
func (s *ProductStore) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`
	return s.scanProduct(s.db.conn(ctx).QueryRow(ctx, query, sku))
}

func (s *ProductStore) scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p       domain.Product
		aggJSON []byte
		invJSON []byte
	)
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &aggJSON, &p.AggregatesVersion, &invJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("failed to load product: %w", err)
	}
	if err := json.Unmarshal(aggJSON, &p.ReviewAggregates); err != nil {
		return domain.Product{}, fmt.Errorf("failed to decode review aggregates: %w", err)
	}
	if err := json.Unmarshal(invJSON, &p.Inventory); err != nil {
		return domain.Product{}, fmt.Errorf("failed to decode inventory: %w", err)
	}
	return p, nil
}

// Create inserts a product with zero-state aggregates. The catalog CRUD layer
// owns the full record; this covers the slice the event subsystem needs.
func (s *ProductStore) Create(ctx context.Context, id, sku, name string) error {
	agg, err := json.Marshal(domain.NewReviewAggregates())
	if err != nil {
		return fmt.Errorf("failed to marshal zero aggregates: %w", err)
	}
	inv, err := json.Marshal(domain.NewInventory())
	if err != nil {
		return fmt.Errorf("failed to marshal zero inventory: %w", err)
	}

	query := `INSERT INTO products (id, sku, name, review_aggregates, inventory) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.conn(ctx).Exec(ctx, query, id, sku, name, agg, inv); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdateReviewAggregates writes a recomputed aggregate guarded by an
// optimistic version check, so concurrent deliveries for the same product
// cannot silently overwrite each other's read-modify-write.
func (s *ProductStore) UpdateReviewAggregates(ctx context.Context, id string, agg domain.ReviewAggregates, expectedVersion int64) error {
	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal review aggregates: %w", err)
	}

	query := `
        UPDATE products
        SET review_aggregates = $2, aggregates_version = aggregates_version + 1, updated_at = now()
        WHERE id = $1 AND aggregates_version = $3
    `
	tag, err := s.db.conn(ctx).Exec(ctx, query, id, payload, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update review aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// UpdateInventory writes the inventory denormalization. The write is a full
// replacement of the snapshot, so redelivery is naturally idempotent.
func (s *ProductStore) UpdateInventory(ctx context.Context, id string, inv domain.Inventory) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}

	query := `UPDATE products SET inventory = $2, updated_at = now() WHERE id = $1`
	tag, err := s.db.conn(ctx).Exec(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("failed to update inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
