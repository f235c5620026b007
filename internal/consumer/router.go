package consumer

import (
	"context"
	"log/slog"
	"sort"

	"github.com/xshopai/product-service/internal/event"
	"github.com/xshopai/product-service/internal/tracing"
)

// Handler processes one decoded envelope for a topic.
type Handler func(ctx context.Context, env event.Envelope) error

// Router maps inbound (topic, payload) pairs to handlers. The same table
// serves both delivery paths: the sidecar's synchronous calls and the broker
// pull worker.
type Router struct {
	routes map[string]Handler
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]Handler)}
}

// Register binds a topic to a handler. Registration happens once at startup;
// the table is read-only afterwards.
func (r *Router) Register(topic string, h Handler) {
	r.routes[topic] = h
}

// Topics returns the registered topics, sorted, for queue binding and the
// subscription declaration.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for t := range r.routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Dispatch decodes a raw message, unwraps any nested envelope and invokes the
// handler registered for the topic. Unknown topics and undecodable payloads
// come back as discard-class errors: they can never succeed, so the delivery
// paths drop them instead of retrying.
func (r *Router) Dispatch(ctx context.Context, topic string, body []byte) error {
	h, ok := r.routes[topic]
	if !ok {
		slog.WarnContext(ctx, "No handler registered for topic, discarding", "topic", topic)
		return Discard("unknown topic "+topic, nil)
	}

	env, err := event.Decode(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode event envelope, discarding",
			"topic", topic, "error", err, "payload", truncate(body, 256))
		return Discard("undecodable envelope", err)
	}
	env = env.Unwrap()
	if env.Type == "" {
		env.Type = topic
	}

	if corr := env.Correlation(); corr != "" {
		ctx = tracing.WithCorrelationID(ctx, corr)
	}

	slog.InfoContext(ctx, "Dispatching event",
		"topic", topic, "eventID", env.ID, "source", env.Source, "correlationId", env.Correlation())

	return h(ctx, env)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
