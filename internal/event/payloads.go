package event

import (
	"encoding/json"
	"fmt"
)

// ErrValidation wraps payload-level problems: the message is well-formed JSON
// but misses fields the handler cannot work without. These can never succeed
// on retry.
type ErrValidation struct {
	EventType string
	Reason    string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.EventType, e.Reason)
}

// ReviewCreated is the payload of a review.created event.
type ReviewCreated struct {
	ProductID          string `json:"productId"`
	ReviewID           string `json:"reviewId"`
	Rating             int    `json:"rating"`
	IsVerifiedPurchase bool   `json:"isVerifiedPurchase"`
	CreatedAt          string `json:"createdAt"`
}

// ParseReviewCreated extracts and validates a review.created payload.
func ParseReviewCreated(data json.RawMessage) (ReviewCreated, error) {
	var raw struct {
		ProductID          string `json:"productId"`
		ReviewID           string `json:"reviewId"`
		Rating             *int   `json:"rating"`
		IsVerifiedPurchase bool   `json:"isVerifiedPurchase"`
		CreatedAt          string `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReviewCreated{}, &ErrValidation{EventType: TypeReviewCreated, Reason: err.Error()}
	}
	if raw.ProductID == "" || raw.ReviewID == "" || raw.Rating == nil {
		return ReviewCreated{}, &ErrValidation{EventType: TypeReviewCreated, Reason: "missing productId, reviewId or rating"}
	}
	return ReviewCreated{
		ProductID:          raw.ProductID,
		ReviewID:           raw.ReviewID,
		Rating:             *raw.Rating,
		IsVerifiedPurchase: raw.IsVerifiedPurchase,
		CreatedAt:          raw.CreatedAt,
	}, nil
}

// ReviewUpdated is the payload of a review.updated event.
type ReviewUpdated struct {
	ProductID      string `json:"productId"`
	ReviewID       string `json:"reviewId"`
	Rating         int    `json:"rating"`
	PreviousRating int    `json:"previousRating"`
}

// ParseReviewUpdated extracts and validates a review.updated payload.
func ParseReviewUpdated(data json.RawMessage) (ReviewUpdated, error) {
	var raw struct {
		ProductID      string `json:"productId"`
		ReviewID       string `json:"reviewId"`
		Rating         *int   `json:"rating"`
		PreviousRating *int   `json:"previousRating"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReviewUpdated{}, &ErrValidation{EventType: TypeReviewUpdated, Reason: err.Error()}
	}
	if raw.ProductID == "" || raw.Rating == nil || raw.PreviousRating == nil {
		return ReviewUpdated{}, &ErrValidation{EventType: TypeReviewUpdated, Reason: "missing productId, rating or previousRating"}
	}
	return ReviewUpdated{
		ProductID:      raw.ProductID,
		ReviewID:       raw.ReviewID,
		Rating:         *raw.Rating,
		PreviousRating: *raw.PreviousRating,
	}, nil
}

// ReviewDeleted is the payload of a review.deleted event.
type ReviewDeleted struct {
	ProductID          string `json:"productId"`
	ReviewID           string `json:"reviewId"`
	Rating             int    `json:"rating"`
	IsVerifiedPurchase bool   `json:"isVerifiedPurchase"`
}

// ParseReviewDeleted extracts and validates a review.deleted payload.
func ParseReviewDeleted(data json.RawMessage) (ReviewDeleted, error) {
	var raw struct {
		ProductID          string `json:"productId"`
		ReviewID           string `json:"reviewId"`
		Rating             *int   `json:"rating"`
		IsVerifiedPurchase bool   `json:"isVerifiedPurchase"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReviewDeleted{}, &ErrValidation{EventType: TypeReviewDeleted, Reason: err.Error()}
	}
	if raw.ProductID == "" || raw.Rating == nil {
		return ReviewDeleted{}, &ErrValidation{EventType: TypeReviewDeleted, Reason: "missing productId or rating"}
	}
	return ReviewDeleted{
		ProductID:          raw.ProductID,
		ReviewID:           raw.ReviewID,
		Rating:             *raw.Rating,
		IsVerifiedPurchase: raw.IsVerifiedPurchase,
	}, nil
}

// StockUpdated is the payload of an inventory.stock.updated event. SKU links
// product variants to inventory records.
type StockUpdated struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// ParseStockUpdated extracts and validates an inventory.stock.updated payload.
func ParseStockUpdated(data json.RawMessage) (StockUpdated, error) {
	var raw struct {
		SKU      string `json:"sku"`
		Quantity *int   `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return StockUpdated{}, &ErrValidation{EventType: TypeStockUpdated, Reason: err.Error()}
	}
	if raw.SKU == "" || raw.Quantity == nil {
		return StockUpdated{}, &ErrValidation{EventType: TypeStockUpdated, Reason: "missing sku or quantity"}
	}
	return StockUpdated{SKU: raw.SKU, Quantity: *raw.Quantity}, nil
}

// LowStock is the payload of an inventory.low.stock event.
type LowStock struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// ParseLowStock extracts and validates an inventory.low.stock payload.
func ParseLowStock(data json.RawMessage) (LowStock, error) {
	var raw struct {
		SKU      string `json:"sku"`
		Quantity *int   `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return LowStock{}, &ErrValidation{EventType: TypeLowStock, Reason: err.Error()}
	}
	if raw.SKU == "" {
		return LowStock{}, &ErrValidation{EventType: TypeLowStock, Reason: "missing sku"}
	}
	qty := 0
	if raw.Quantity != nil {
		qty = *raw.Quantity
	}
	return LowStock{SKU: raw.SKU, Quantity: qty}, nil
}

// OutOfStock is the payload of an inventory.out.of.stock event.
type OutOfStock struct {
	SKU string `json:"sku"`
}

// ParseOutOfStock extracts and validates an inventory.out.of.stock payload.
func ParseOutOfStock(data json.RawMessage) (OutOfStock, error) {
	var raw OutOfStock
	if err := json.Unmarshal(data, &raw); err != nil {
		return OutOfStock{}, &ErrValidation{EventType: TypeOutOfStock, Reason: err.Error()}
	}
	if raw.SKU == "" {
		return OutOfStock{}, &ErrValidation{EventType: TypeOutOfStock, Reason: "missing sku"}
	}
	return raw, nil
}
