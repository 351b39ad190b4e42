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
	logger := log.New(log.Config{Level: cfg.SlogLevel(), Component: log.ComponentWorker})
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

	logger.Info("Starting renewal-worker",
		log.FieldOperation, log.OpStartup,
		log.FieldBackend, cfg.DataBackend,
		"sweep_at", cfg.SweepTime,
		"reminders_at", cfg.ReminderTimes)

	// Run one sweep at startup so a restart does not skip today's mark.
	if notified, charged, err := renewal.Sweep(ctx); err != nil {
		logger.Error("Initial sweep failed", log.FieldOperation, log.OpSweep, log.FieldError, err)
	} else {
		logger.Info("Initial sweep complete",
			log.FieldOperation, log.OpSweep,
			"notified", notified, "charged", charged)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return scheduler.Run(ctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Renewal-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Renewal-worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
