package backend

import (
	"context"
	"errors"
	"fmt"

	"timetracker/internal/amqp"
	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/storage"
	"timetracker/internal/storage/mysql"
	"timetracker/internal/store"
	"timetracker/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
	clock  core.Clock
	ids    core.IDGenerator
}

// NewFactory creates a new backend factory. The clock and id generator seed
// the memory backend's catalog.
func NewFactory(logger *applog.Logger, clock core.Clock, ids core.IDGenerator) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	if clock == nil {
		clock = core.RealClock{}
	}
	if ids == nil {
		ids = core.UUIDGenerator{}
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
		clock:  clock,
		ids:    ids,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		st, err = f.createSQLiteStore(config)
	case MySQLBackend:
		st, err = f.createMySQLStore(ctx, config)
	case MemoryBackend:
		st = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: st}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without entry events", applog.FieldError, err)
		} else {
			result.AMQP = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}
	result.Cleanup = func() error {
		var errs []error
		if result.AMQP != nil {
			if err := result.AMQP.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (store.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createMySQLStore(ctx context.Context, config Config) (store.Store, error) {
	repo, err := mysql.Open(ctx, config.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MySQL repository: %w", err)
	}
	f.logger.Info("Initialized MySQL backend")
	return repo, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) store.Store {
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory backend")
		return memory.New()
	}
	s := memory.NewFromFile(config.SeedFile, f.ids, f.clock)
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return s
}
