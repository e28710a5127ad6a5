package backend

import (
	"context"
	"errors"
	"fmt"

	"backoffice/internal/amqp"
	"backoffice/internal/log"
	"backoffice/internal/storage"
	"backoffice/internal/storage/jsonfile"
	"backoffice/internal/storage/memory"
	"backoffice/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured store. A broker that cannot be reached
// is logged and events stay disabled; the store is still returned.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case JSONFileBackend:
		store, err = jsonfile.New(config.DataDirectory)
	case SQLiteBackend:
		store, err = sqlite.New(config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New(nil, nil)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}
	f.logger.InfoContext(ctx, "Initialized storage backend",
		"type", config.Type, "data_dir", config.DataDirectory, "db_path", config.SQLiteDBPath)

	res := &Result{Store: store, Cleanup: store.Close}
	if config.AMQPURL == "" {
		return res, nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return res, nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange, "queue", config.AMQPQueue)
	res.Publisher = client
	res.Cleanup = func() error {
		return errors.Join(client.Close(), store.Close())
	}
	return res, nil
}
