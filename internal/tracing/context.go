// Package tracing carries the correlation id through a request's context so
// inbound handling and outbound publishing share one tracing identifier.
package tracing

import "context"

// correlationKey is a private key type to store the correlation id in the context.
type correlationKey struct{}

// WithCorrelationID returns a context carrying the given correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in the context, or "" if none.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
