package backend

import (
	"context"
	"fmt"
	"log/slog"

	"tripledger/internal/amqp"
	"tripledger/internal/sheets"
	gsheet "tripledger/internal/sheets/google"
	"tripledger/internal/storage"
	"tripledger/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. A sqlite backend without
// a database path degrades to the memory store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store      storage.Store
		persistent bool
	)
	switch {
	case config.Type == SQLiteBackend && config.SQLiteDBPath != "":
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store, persistent = repo, true
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case config.Type == SQLiteBackend:
		f.logger.WarnContext(ctx, "SQLite path not configured, falling back to memory backend; data will not be persisted")
		store = memory.New()
	default:
		f.logger.WarnContext(ctx, "Initialized memory backend; data will not be persisted")
		store = memory.New()
	}

	broker := f.connectBroker(ctx, config)

	return &BackendResult{
		Store:      store,
		Broker:     broker,
		Persistent: persistent,
		Cleanup: func() error {
			var errs []error
			if broker != nil {
				if err := broker.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
			if len(errs) > 0 {
				return fmt.Errorf("close backend: %v", errs)
			}
			return nil
		},
	}, nil
}

// connectBroker dials AMQP when configured. Failure is not fatal.
func (f *DefaultFactory) connectBroker(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		f.logger.InfoContext(ctx, "AMQP disabled - the sync worker relies on polling")
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without messaging", "error", err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// CreateExporter implements Factory.CreateExporter.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error) {
	if !config.SheetsEnabled() {
		f.logger.InfoContext(ctx, "Google Sheets export disabled")
		return nil, nil
	}
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: []byte(config.GoogleServiceAccountJSON),
		CredentialsFile: config.GoogleServiceAccountFile,
		Location:        config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets exporter", "sheet", config.GoogleSheetName)
	return cli, nil
}
