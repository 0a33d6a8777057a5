package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"famledger/internal/amqp"
	"famledger/internal/attachments"
	memattach "famledger/internal/attachments/memory"
	s3attach "famledger/internal/attachments/s3"
	"famledger/internal/core"
	"famledger/internal/metrics"
	"famledger/internal/services"
	"famledger/internal/store"
	memstore "famledger/internal/store/memory"
	"famledger/internal/store/postgres"
	"famledger/internal/store/sqlite"
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
	return &DefaultFactory{logger: logger}
}

// stores is the pair of maps plus the handle that owns them
type stores struct {
	families store.Map[core.Family]
	expenses store.Map[core.FamilyExpense]
	ping     func(ctx context.Context) error
	close    func() error
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := f.openStores(ctx, config)
	if err != nil {
		return nil, err
	}

	blobs, err := f.createAttachments(ctx, config)
	if err != nil {
		_ = st.close()
		return nil, err
	}

	var events services.EventPublisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			events = amqpClient
		}
	}

	rec := metrics.NewRecorder()
	rt := services.NewRuntime(events, rec)
	registry := services.NewFamilyRegistry(rt, st.families, services.RegistryOptions{
		EnforceOwnership: config.EnforceOwnership,
	})
	ledger := services.NewExpenseLedger(rt, registry, st.expenses, services.LedgerOptions{
		SnapshotFamilyName: config.SnapshotFamilyName,
	})

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"enforce_ownership", config.EnforceOwnership,
		"snapshot_family_name", config.SnapshotFamilyName,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Registry:    registry,
		Ledger:      ledger,
		Attachments: blobs,
		Metrics:     rec,
		Ready:       st.ping,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, st.close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) openStores(ctx context.Context, config Config) (*stores, error) {
	switch config.Type {
	case SQLiteBackend:
		db, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return &stores{
			families: sqlite.NewMap[core.Family](db, store.CollectionFamilies),
			expenses: sqlite.NewMap[core.FamilyExpense](db, store.CollectionExpenses),
			ping:     db.Ping,
			close:    db.Close,
		}, nil
	case PostgresBackend:
		db, err := postgres.Open(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return &stores{
			families: postgres.NewMap[core.Family](db, store.CollectionFamilies),
			expenses: postgres.NewMap[core.FamilyExpense](db, store.CollectionExpenses),
			ping:     db.Ping,
			close:    db.Close,
		}, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory store")
		return &stores{
			families: memstore.New[core.Family](),
			expenses: memstore.New[core.FamilyExpense](),
			ping:     func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAttachments(ctx context.Context, config Config) (attachments.Store, error) {
	if config.AttachmentsDriver != "s3" {
		return memattach.New(), nil
	}
	s, err := s3attach.New(ctx, s3attach.Config{
		Region:    config.AttachmentsS3Region,
		Bucket:    config.AttachmentsS3Bucket,
		Endpoint:  config.AttachmentsS3Endpoint,
		PathStyle: config.AttachmentsS3PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 attachments: %w", err)
	}
	f.logger.Info("Initialized S3 attachments", "bucket", config.AttachmentsS3Bucket)
	return s, nil
}
