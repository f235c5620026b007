package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xshopai/product-service/internal/domain"
)

// LedgerStore is the durable record of event ids already applied. It backs
// redelivery safety with a uniqueness constraint rather than an
// application-level read-then-write.
type LedgerStore struct {
	db *DB
}

func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// IsProcessed checks whether an event has already been applied.
func (s *LedgerStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)`
	err := s.db.conn(ctx).QueryRow(ctx, query, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for processed event: %w", err)
	}
	return exists, nil
}

// MarkProcessed records an applied event. It must run inside the same
// transaction as the aggregate mutation so the two commit or roll back
// together. When the event id is already in the ledger it returns
// domain.ErrEventAlreadyProcessed; the caller must treat that as a rollback
// signal, not a success.
func (s *LedgerStore) MarkProcessed(ctx context.Context, eventID, eventType, subjectID string, metadata map[string]string) error {
	meta := []byte(`{}`)
	if len(metadata) > 0 {
		var err error
		meta, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal event metadata: %w", err)
		}
	}

	query := `INSERT INTO processed_events (event_id, event_type, subject_id, metadata) VALUES ($1, $2, $3, $4)`
	_, err := s.db.conn(ctx).Exec(ctx, query, eventID, eventType, subjectID, meta)
	if err != nil {
		var pgErr *pgconn.PgError
		// "23505" is the unique_violation error code in PostgreSQL.
		// If we get this, it means another concurrent process just processed
		// the same event. Surfacing it lets the caller roll its own mutation
		// back instead of committing a double-apply.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrEventAlreadyProcessed
		}
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
