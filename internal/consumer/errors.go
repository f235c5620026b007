// Package consumer implements the idempotent event-consumption pipeline:
// routing, ledger-checked handlers and the aggregate mutations they drive.
package consumer

import (
	"errors"
	"fmt"
)

// DiscardError marks a delivery that can never succeed on retry: malformed
// envelopes, payloads missing required fields, unknown topics, or events for
// subjects this service has never heard of. The delivery paths acknowledge
// and drop these instead of requeueing them.
type DiscardError struct {
	Reason string
	Err    error
}

func (e *DiscardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discarding event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("discarding event: %s", e.Reason)
}

func (e *DiscardError) Unwrap() error { return e.Err }

// Discard wraps err as a non-retryable delivery failure.
func Discard(reason string, err error) error {
	return &DiscardError{Reason: reason, Err: err}
}

// IsDiscard reports whether err is a non-retryable delivery failure.
func IsDiscard(err error) bool {
	var d *DiscardError
	return errors.As(err, &d)
}
