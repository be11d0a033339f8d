package backend

import (
	"context"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/log"
	"expensetracker/internal/seed"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
	"expensetracker/internal/store"
	"expensetracker/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured store, seeds it, connects the event
// publisher when AMQP is configured and returns the service on top.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	if config.SeedFile != "" {
		if _, err := seed.Load(ctx, config.SeedFile, st, f.logger); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed expenses: %w", err)
		}
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = client
		}
	}

	svc := services.NewExpenseService(st, publisher, f.logger)
	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", publisher != nil)

	return &Result{
		Service: svc,
		Events:  publisher != nil,
		Cleanup: svc.Close,
	}, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (store.ExpenseStore, error) {
	switch config.Type {
	case MemoryBackend:
		return memory.New(), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.PostgresURL, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
