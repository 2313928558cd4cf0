package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flightdesk/reservation/internal/auth"
	"github.com/flightdesk/reservation/internal/config"
	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/flightdesk/reservation/internal/handlers"
	"github.com/flightdesk/reservation/internal/logging"
	"github.com/flightdesk/reservation/internal/observability"
	"github.com/flightdesk/reservation/internal/redisx"
	"github.com/flightdesk/reservation/internal/router"
	"github.com/flightdesk/reservation/internal/service"
	"github.com/flightdesk/reservation/internal/websocket"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reservation-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
		AuthHeader:     cfg.OtelAuthHeader,
		Insecure:       cfg.OtelInsecure,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Store
	var store database.Store
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = database.NewMemoryStore()
	default:
		pool, err := database.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := database.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		store = repo
		logger.Info("connected to database")
	}

	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	opts := []service.Option{
		service.WithLogger(logger.Named("booking")),
		service.WithSeatNotifier(hub),
		service.WithTracer(otel.Tracer(cfg.ServiceName)),
	}

	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		cache := redisx.NewCache(rdb)
		if err := cache.Ping(ctx); err != nil {
			// Search falls back to the store on every cache error.
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		opts = append(opts, service.WithSearchCache(cache))
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, logger.Named("kafka"))
		defer producer.Close()
		opts = append(opts, service.WithPublisher(producer))
	}

	if cfg.TemporalHost != "" {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHost,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			return fmt.Errorf("failed to create Temporal client: %w", err)
		}
		defer tc.Close()
		opts = append(opts, service.WithProvisioner(service.NewTemporalProvisioner(tc, cfg.TemporalTaskQueue)))
		logger.Info("flight provisioning runs on Temporal", zap.String("host", cfg.TemporalHost))
	}

	bookingService := service.NewBookingService(store, service.Config{
		ServiceFeeCents: cfg.ServiceFeeCents,
		MaxAttempts:     cfg.ReserveMaxAttempts,
		SearchCacheTTL:  cfg.SearchCacheTTL,
	}, opts...)

	if cfg.SeedDemo {
		if err := service.SeedDemoInventory(ctx, bookingService, time.Now()); err != nil {
			return fmt.Errorf("failed to seed demo inventory: %w", err)
		}
		logger.Info("demo inventory seeded")
	}

	h := handlers.NewHandler(bookingService, hub, logger.Named("http"))
	r := router.SetupRouter(h, auth.NewVerifier(cfg.JWTSecret), logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
