// Package httpapi exposes the push delivery path: the sidecar calls in once
// per message, and reads the subscription declaration at startup.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/tracing"
)

// subscription is one entry of the declaration the sidecar reads to
// self-register routes at startup.
type subscription struct {
	PubSubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Server wires the push-path endpoints onto an echo instance.
type Server struct {
	router      *consumer.Router
	pubsubName  string
	serviceName string
}

func NewServer(router *consumer.Router, pubsubName, serviceName string) *Server {
	return &Server{router: router, pubsubName: pubsubName, serviceName: serviceName}
}

// Register mounts the event endpoints, the subscription declaration and the
// health probe.
func (s *Server) Register(e *echo.Echo) {
	e.Use(correlationMiddleware)
	e.GET("/health", s.handleHealth)
	e.GET("/dapr/subscribe", s.handleSubscribe)
	for _, topic := range s.router.Topics() {
		e.POST("/dapr/events/"+topic, s.eventHandler(topic))
	}
}

// eventHandler returns the push-path endpoint for one topic. Whatever happens
// inside, the response is a success acknowledgement: the sidecar retries
// aggressively on non-success, and a poison message would otherwise hammer
// the service forever. Failures are logged, not surfaced.
func (s *Server) eventHandler(topic string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read event body", "topic", topic, "error", err)
			return c.JSON(http.StatusOK, statusResponse{Status: "SUCCESS"})
		}

		if err := s.router.Dispatch(ctx, topic, body); err != nil && !consumer.IsDiscard(err) {
			slog.ErrorContext(ctx, "Event handling failed on push path", "topic", topic, "error", err)
		}
		return c.JSON(http.StatusOK, statusResponse{Status: "SUCCESS"})
	}
}

// handleSubscribe declares the (pubsub, topic, route) triples the sidecar
// binds at startup.
func (s *Server) handleSubscribe(c echo.Context) error {
	topics := s.router.Topics()
	subs := make([]subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, subscription{
			PubSubName: s.pubsubName,
			Topic:      topic,
			Route:      "/dapr/events/" + topic,
		})
	}
	return c.JSON(http.StatusOK, subs)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.serviceName,
	})
}

// correlationMiddleware puts the inbound correlation id into the request
// context, minting one when the caller sent none.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		corr := c.Request().Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.NewString()
		}
		ctx := tracing.WithCorrelationID(c.Request().Context(), corr)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set("X-Correlation-ID", corr)
		return next(c)
	}
}
