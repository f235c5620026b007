package domain

import (
	"errors"
	"time"
)

// ErrProductNotFound is returned when no product matches the given key.
var ErrProductNotFound = errors.New("product not found")

// ErrVersionConflict is returned when an aggregate write lost the optimistic
// version check against a concurrent update. Callers reload and reapply.
var ErrVersionConflict = errors.New("aggregates version conflict")

// ErrEventAlreadyProcessed is returned when the idempotency ledger already
// holds the event id, meaning a concurrent delivery committed it first.
var ErrEventAlreadyProcessed = errors.New("event already processed")

// Product is the slice of the catalog record this subsystem reads and writes:
// identity plus the denormalized state fed by events. The catalog's own
// field-level data model lives with the CRUD layer, not here.
type Product struct {
	ID                string
	SKU               string
	Name              string
	ReviewAggregates  ReviewAggregates
	AggregatesVersion int64
	Inventory         Inventory
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
