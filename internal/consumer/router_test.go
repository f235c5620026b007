package consumer_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/event"
	"github.com/xshopai/product-service/internal/tracing"
)

func TestRouter_DispatchesToRegisteredHandler(t *testing.T) {
	router := consumer.NewRouter()

	var got event.Envelope
	router.Register("review-created", func(ctx context.Context, env event.Envelope) error {
		got = env
		return nil
	})

	body, err := json.Marshal(event.Envelope{
		SpecVersion: event.SpecVersion,
		ID:          "evt-1",
		Type:        event.TypeReviewCreated,
		Source:      "review-service",
	})
	require.NoError(t, err)

	require.NoError(t, router.Dispatch(context.Background(), "review-created", body))
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, event.TypeReviewCreated, got.Type)
}

func TestRouter_UnknownTopicDiscarded(t *testing.T) {
	router := consumer.NewRouter()

	err := router.Dispatch(context.Background(), "mystery-topic", []byte(`{}`))

	assert.True(t, consumer.IsDiscard(err))
}

func TestRouter_UndecodablePayloadDiscarded(t *testing.T) {
	router := consumer.NewRouter()
	router.Register("review-created", func(ctx context.Context, env event.Envelope) error {
		t.Fatal("handler must not run for an undecodable payload")
		return nil
	})

	err := router.Dispatch(context.Background(), "review-created", []byte(`{not json`))

	assert.True(t, consumer.IsDiscard(err))
}

func TestRouter_MissingTypeFallsBackToTopic(t *testing.T) {
	router := consumer.NewRouter()

	var got event.Envelope
	router.Register("review-created", func(ctx context.Context, env event.Envelope) error {
		got = env
		return nil
	})

	require.NoError(t, router.Dispatch(context.Background(), "review-created", []byte(`{"id":"evt-1"}`)))
	assert.Equal(t, "review-created", got.Type)
}

func TestRouter_CorrelationIDEntersContext(t *testing.T) {
	router := consumer.NewRouter()

	var got string
	router.Register("review-created", func(ctx context.Context, env event.Envelope) error {
		got = tracing.CorrelationID(ctx)
		return nil
	})

	body := []byte(`{"id":"evt-1","correlationId":"corr-42"}`)
	require.NoError(t, router.Dispatch(context.Background(), "review-created", body))
	assert.Equal(t, "corr-42", got)
}

func TestRouter_TopicsSorted(t *testing.T) {
	router := consumer.NewRouter()
	noop := func(ctx context.Context, env event.Envelope) error { return nil }
	router.Register("stock-updated", noop)
	router.Register("review-created", noop)
	router.Register("low-stock-warning", noop)

	assert.Equal(t, []string{"low-stock-warning", "review-created", "stock-updated"}, router.Topics())
}
