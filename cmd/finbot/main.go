package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finbot/internal/backend"
	"finbot/internal/config"
	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/services"
	"finbot/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: cfg.SlogLevel(), Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := backend.NewFactory(logger)
	result, err := factory.CreateStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	var notifier services.Notifier = services.NopNotifier{}
	if client := factory.CreateNotifier(ctx, cfg); client != nil {
		defer client.Close()
		notifier = client
	}

	ldg := ledger.New(result.Store, logger, cfg.StoreTimeout)
	renewal := services.NewRenewalService(ldg, notifier, logger)
	scheduler := worker.NewScheduler(renewal, logger, cfg.SweepTime, cfg.ReminderTimes)

	logger.Info("Starting finbot",
		log.FieldOperation, log.OpStartup,
		log.FieldBackend, cfg.DataBackend,
		"sweep_at", cfg.SweepTime)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return scheduler.Run(ctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Finbot stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Finbot stopped gracefully", log.FieldOperation, log.OpShutdown)
}
