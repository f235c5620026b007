// Package event defines the cross-service event envelope and the typed
// payloads this service consumes and produces.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// SpecVersion is the envelope format version stamped on every event.
const SpecVersion = "1.0"

// Event types this service consumes (review.*, inventory.*) and produces (product.*).
const (
	TypeReviewCreated  = "review.created"
	TypeReviewUpdated  = "review.updated"
	TypeReviewDeleted  = "review.deleted"
	TypeStockUpdated   = "inventory.stock.updated"
	TypeLowStock       = "inventory.low.stock"
	TypeOutOfStock     = "inventory.out.of.stock"
	TypeProductCreated = "product.created"
	TypeProductUpdated = "product.updated"
	TypeProductDeleted = "product.deleted"
	TypePriceChanged   = "product.price.changed"
	TypeBadgeAssigned  = "product.badge.assigned"
	TypeBadgeRemoved   = "product.badge.removed"
)

// Envelope is the wire format wrapped around every event payload.
// Field names follow the CloudEvents convention shared by the other services.
type Envelope struct {
	SpecVersion     string            `json:"specversion"`
	Type            string            `json:"type"`
	Source          string            `json:"source"`
	ID              string            `json:"id"`
	Time            time.Time         `json:"time"`
	DataContentType string            `json:"datacontenttype,omitempty"`
	CorrelationID   string            `json:"correlationId,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Data            json.RawMessage   `json:"data,omitempty"`
}

// Decode parses a raw broker message into an Envelope.
func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	return env, nil
}

// maxUnwrapDepth bounds the double-wrap detection so a hostile payload cannot
// recurse indefinitely.
const maxUnwrapDepth = 3

// Unwrap returns the innermost envelope. Some producer paths (broker through
// the sidecar) deliver an envelope whose data field itself contains a second
// envelope; the nested specversion key is the detection signal. This is a
// format sniff, not a protocol guarantee, so the depth is bounded.
func (e Envelope) Unwrap() Envelope {
	current := e
	for i := 0; i < maxUnwrapDepth; i++ {
		if len(current.Data) == 0 {
			return current
		}
		var probe struct {
			SpecVersion *string `json:"specversion"`
		}
		if err := json.Unmarshal(current.Data, &probe); err != nil || probe.SpecVersion == nil {
			return current
		}
		var inner Envelope
		if err := json.Unmarshal(current.Data, &inner); err != nil {
			return current
		}
		current = inner
	}
	return current
}

// Correlation returns the tracing identifier attached to the event: the
// top-level correlationId if present, otherwise the metadata entry some
// producers use instead.
func (e Envelope) Correlation() string {
	if e.CorrelationID != "" {
		return e.CorrelationID
	}
	return e.Metadata["correlationId"]
}
