package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/flightdesk/reservation/internal/activities"
	"github.com/flightdesk/reservation/internal/config"
	"github.com/flightdesk/reservation/internal/database"
	"github.com/flightdesk/reservation/internal/events"
	"github.com/flightdesk/reservation/internal/logging"
	"github.com/flightdesk/reservation/internal/service"
	"github.com/flightdesk/reservation/internal/workflows"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reservation-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return errors.New("the worker requires STORE=postgres")
	}
	if cfg.TemporalHost == "" {
		cfg.TemporalHost = client.DefaultHostPort
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	repo := database.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	var publisher events.Publisher = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, logger.Named("kafka"))
		defer producer.Close()
		publisher = producer
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	defer c.Close()
	logger.Info("connected to Temporal", zap.String("host", cfg.TemporalHost))

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.ProvisionFlightWorkflow, workflow.RegisterOptions{Name: service.ProvisionFlightWorkflowName})

	acts := &activities.Activities{
		Inventory: service.NewInventory(repo, logger.Named("inventory")),
		Publisher: publisher,
	}
	w.RegisterActivityWithOptions(acts.CreateFlightInventory, activity.RegisterOptions{Name: activities.CreateFlightInventoryName})
	w.RegisterActivityWithOptions(acts.PublishFlightScheduled, activity.RegisterOptions{Name: activities.PublishFlightScheduledName})

	logger.Info("starting Temporal worker", zap.String("task_queue", cfg.TemporalTaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return nil
}
