package app

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
)

// localConfig: memory-хранилище, mock-шлюз и случайные порты.
func localConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory
	cfg.AllowMockGateway = true
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := localConfig()
	cfg.SeedDemoData = true

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, Run(ctx, cfg), context.DeadlineExceeded)
}

func TestRun_StartupFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unsupported storage driver",
			mutate:  func(c *Config) { c.StorageDriver = "invalid-driver" },
			wantErr: "unsupported storage driver",
		},
		{
			name:    "lowercase currency",
			mutate:  func(c *Config) { c.Currency = "inr" },
			wantErr: "invalid config",
		},
		{
			name:    "negative outbox retry delay",
			mutate:  func(c *Config) { c.OutboxRetryDelay = -time.Second },
			wantErr: "outbox retry delay must not be negative",
		},
		{
			name:    "gateway keys without mock fallback",
			mutate:  func(c *Config) { c.AllowMockGateway = false },
			wantErr: "key id and key secret are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig()
			tt.mutate(&cfg)

			err := Run(context.Background(), cfg)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("MARKETPLACE_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	t.Cleanup(func() { deps.close(log.WithField("test", "postgres-init")) })

	require.NotNil(t, deps.store)
	require.NotNil(t, deps.outboxRepo)
	require.NotNil(t, deps.idempotencyRepo)
	require.NotNil(t, deps.closeFn)
	require.Equal(t, healthcheck.StatusHealthy, deps.storageChecker.Check(context.Background()).Status)
}

func TestShutdownHelpers(t *testing.T) {
	logger := log.WithField("test", "shutdown")

	cancelCalled := false
	done := make(chan struct{})
	close(done)
	shutdownWorker(func() { cancelCalled = true }, done, logger)
	require.True(t, cancelCalled)

	shutdownWorker(nil, nil, logger)

	var broker *kafkaRuntime
	broker.close(logger)
}

func TestOutboxBacklogChecker(t *testing.T) {
	ctx := context.Background()
	deps, err := initRuntimeDependencies(ctx, Config{StorageDriver: StorageDriverMemory}, log.WithField("test", "outbox-checker"))
	require.NoError(t, err)

	checker := outboxBacklogChecker(deps, 1)
	require.Equal(t, healthcheck.StatusHealthy, checker.Check(ctx).Status, "empty outbox")

	for _, orderID := range []string{"order-1", "order-2"} {
		msg, err := domain.NewOrderEvent(domain.EventOrderCreated, domain.Order{ID: orderID, Status: domain.OrderStatusPending}, nil, time.Now().UTC())
		require.NoError(t, err)
		_, err = deps.outboxRepo.Enqueue(ctx, msg)
		require.NoError(t, err)
	}

	check := checker.Check(ctx)
	require.Equal(t, healthcheck.StatusDegraded, check.Status)
	require.Equal(t, "backlog 2 exceeds 1", check.Message)
}

func TestInitKafka_LocalBroker(t *testing.T) {
	broker, err := initKafka(Config{KafkaBrokers: "localhost:9092", OutboxTopic: kafka.TopicOrderEvents}, log.WithField("test", "kafka"))
	if err != nil {
		t.Skipf("kafka is not available for integration test: %v", err)
	}
	require.Equal(t, kafka.TopicOrderEvents, broker.events.Topic())
	require.Equal(t, kafka.TopicDeadLetterQueue, broker.dlq.Topic())
	broker.close(log.WithField("test", "kafka-close"))
}
