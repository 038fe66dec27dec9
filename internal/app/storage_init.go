package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

// runtimeDependencies: хранилище и всё, что от него зависит при запуске.
type runtimeDependencies struct {
	store           domain.Store
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	logger = logger.WithField("storage", cfg.storageDriver())

	switch cfg.storageDriver() {
	case StorageDriverMemory:
		return openMemoryStorage(ctx, cfg, logger)
	case StorageDriverPostgres:
		return openPostgresStorage(ctx, cfg, logger)
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func openMemoryStorage(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	store := memory.NewStore()
	if cfg.SeedDemoData {
		if err := seedDemoCatalog(ctx, store); err != nil {
			return runtimeDependencies{}, fmt.Errorf("seed demo catalog: %w", err)
		}
	}
	logger.WithField("demo_data", cfg.SeedDemoData).Info("using in-memory storage")
	return newRuntimeDependencies(store, nil), nil
}

// openPostgresStorage закрывает пул, если миграции не применились.
func openPostgresStorage(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage driver")
	}

	store, err := postgres.Open(ctx, dsn, postgres.WithLogger(logger))
	if err != nil {
		return runtimeDependencies{}, err
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
		}
		state, err := store.MigrationStatus(ctx)
		if err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("read migration status: %w", err)
		}
		logger = logger.WithField("schema_version", state.Version)
	}

	logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
	return newRuntimeDependencies(store, store.Close), nil
}

func newRuntimeDependencies(store domain.Store, closeFn func() error) runtimeDependencies {
	return runtimeDependencies{
		store:           store,
		outboxRepo:      store.Outbox(),
		idempotencyRepo: store.Idempotency(),
		storageChecker:  healthcheck.NewPingChecker("storage", store),
		closeFn:         closeFn,
	}
}

func (d runtimeDependencies) close(logger *log.Entry) {
	if d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
