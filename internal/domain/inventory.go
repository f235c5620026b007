package domain

import "time"

// StockStatus is the denormalized availability state kept next to a product.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// Inventory is the lightweight availability snapshot maintained from
// inventory events.
type Inventory struct {
	Status            StockStatus `json:"status"`
	AvailableQuantity int         `json:"available_quantity"`
	LastUpdated       time.Time   `json:"last_updated"`
}

// NewInventory returns the state a product starts with before any inventory
// event has been seen.
func NewInventory() Inventory {
	return Inventory{Status: StockUnknown}
}

// ApplyStockUpdated derives the status from an absolute quantity reading.
// lowThreshold is the quantity at or below which the product counts as low.
func ApplyStockUpdated(quantity, lowThreshold int, now time.Time) Inventory {
	status := StockInStock
	switch {
	case quantity <= 0:
		status = StockOutOfStock
	case quantity <= lowThreshold:
		status = StockLowStock
	}
	return Inventory{Status: status, AvailableQuantity: maxInt(0, quantity), LastUpdated: now.UTC()}
}

// ApplyLowStock records an explicit low-stock signal from the inventory
// service; it wins over whatever the quantity alone would imply.
func ApplyLowStock(quantity int, now time.Time) Inventory {
	return Inventory{Status: StockLowStock, AvailableQuantity: maxInt(0, quantity), LastUpdated: now.UTC()}
}

// ApplyOutOfStock records a depletion signal; quantity is forced to zero.
func ApplyOutOfStock(now time.Time) Inventory {
	return Inventory{Status: StockOutOfStock, AvailableQuantity: 0, LastUpdated: now.UTC()}
}
