package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/xshopai/product-service/internal/cache"
	"github.com/xshopai/product-service/internal/config"
	"github.com/xshopai/product-service/internal/consumer"
	"github.com/xshopai/product-service/internal/event"
	"github.com/xshopai/product-service/internal/httpapi"
	"github.com/xshopai/product-service/internal/messaging"
	"github.com/xshopai/product-service/internal/postgres"
	"github.com/xshopai/product-service/internal/publisher"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var invalidator *cache.Invalidator
	if cfg.RedisAddr != "" {
		invalidator = cache.New(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		defer invalidator.Close()
	}

	provider, err := messaging.New(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	ledger := postgres.NewLedgerStore(db)
	products := postgres.NewProductStore(db)
	notifier := publisher.NewNotifier(publisher.New(provider, cfg.ServiceName), products)

	pipeline := consumer.NewPipeline(ledger, db,
		consumer.WithAfterApplied(func(ctx context.Context, env event.Envelope, r consumer.Receipt) {
			invalidator.InvalidateProduct(ctx, r.SubjectID)
			notifier.AfterApplied(ctx, env, r)
		}),
	)

	router := consumer.NewRouter()
	consumer.NewReviewConsumer(pipeline, products).Register(router)
	consumer.NewInventoryConsumer(pipeline, products, cfg.LowStockThreshold).Register(router)

	// The pull worker only runs when events arrive over AMQP directly; on the
	// sidecar path the broker pushes into the HTTP endpoints instead.
	if messaging.Kind(cfg.MessagingProvider) == messaging.KindRabbitMQ {
		worker, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, router)
		if err != nil {
			return err
		}
		if err := worker.Start(ctx); err != nil {
			return err
		}
		defer worker.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	httpapi.NewServer(router, cfg.DaprPubSubName, cfg.ServiceName).Register(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()
	slog.Info("Service started",
		"service", cfg.ServiceName, "port", cfg.HTTPPort, "messagingProvider", cfg.MessagingProvider)

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
