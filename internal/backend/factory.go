// Package backend builds the tabular store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"finbot/internal/amqp"
	"finbot/internal/config"
	"finbot/internal/log"
	"finbot/internal/tabular"
	"finbot/internal/tabular/google"
	"finbot/internal/tabular/memory"
	"finbot/internal/tabular/postgres"
	"finbot/internal/tabular/sqlite"
)

// Result bundles the created store with whatever cleanup it needs.
type Result struct {
	Store   tabular.Store
	Cleanup func() error
}

// Factory creates tabular stores from application configuration.
type Factory struct {
	log *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	return &Factory{log: logger.WithComponent(log.ComponentBackend)}
}

// CreateStore builds the store named by cfg.DataBackend.
func (f *Factory) CreateStore(ctx context.Context, cfg *config.Config) (*Result, error) {
	switch cfg.DataBackend {
	case "memory":
		f.log.InfoContext(ctx, "Initialized memory backend", log.FieldBackend, cfg.DataBackend)
		return &Result{Store: memory.New()}, nil

	case "sheets":
		store, err := google.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets backend: %w", err)
		}
		f.log.InfoContext(ctx, "Initialized Google Sheets backend", log.FieldBackend, cfg.DataBackend)
		return &Result{Store: store}, nil

	case "sqlite":
		store, err := sqlite.NewStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite backend: %w", err)
		}
		f.log.InfoContext(ctx, "Initialized SQLite backend",
			log.FieldBackend, cfg.DataBackend, "db_path", cfg.SQLiteDBPath)
		return &Result{Store: store, Cleanup: store.Close}, nil

	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("initialize PostgreSQL backend: %w", err)
		}
		f.log.InfoContext(ctx, "Initialized PostgreSQL backend", log.FieldBackend, cfg.DataBackend)
		return &Result{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}

// CreateNotifier connects to AMQP when a URL is configured. A connection
// failure is not fatal; the caller gets a nil client and keeps running
// without notifications.
func (f *Factory) CreateNotifier(ctx context.Context, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications",
			log.FieldError, err)
		return nil
	}
	f.log.InfoContext(ctx, "Initialized AMQP client",
		"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}
