package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска маркетплейса.
// Значение сравнимо через ==, поэтому списки хранятся строками.
type Config struct {
	HTTPAddr    string
	// GRPCAddr по умолчанию loopback: сессию в metadata проставляет auth gateway рядом с сервисом.
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedDemoData наполняет memory-хранилище демо-каталогом.
	SeedDemoData bool

	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string
	GatewayBaseURL       string
	GatewayTimeout       time.Duration
	// AllowMockGateway разрешает локальный mock шлюза, если ключи не заданы.
	AllowMockGateway bool
	Currency         string

	// KafkaBrokers — список брокеров через запятую; пусто — outbox не публикуется.
	KafkaBrokers       string
	OutboxTopic        string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending: порог backlog, выше которого /healthz отдаёт degraded.
	OutboxMaxPending int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    "127.0.0.1:50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		GatewayTimeout: 10 * time.Second,
		Currency:       "INR",

		OutboxTopic:        "marketplace.order.events",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,
		OutboxMaxPending:   1000,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// Validate собирает все ошибки конфигурации сразу.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}

	switch c.storageDriver() {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.Currency != "" && !isCurrencyCode(c.Currency) {
		errs = append(errs, fmt.Errorf("currency %q must be a 3-letter ISO code", c.Currency))
	}

	for name, d := range map[string]time.Duration{
		"gateway timeout":              c.GatewayTimeout,
		"outbox poll interval":         c.OutboxPollInterval,
		"outbox retry delay":           c.OutboxRetryDelay,
		"idempotency ttl":              c.IdempotencyTTL,
		"idempotency cleanup interval": c.IdempotencyCleanupInterval,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	for name, n := range map[string]int{
		"outbox batch size":              c.OutboxBatchSize,
		"outbox max attempts":            c.OutboxMaxAttempts,
		"outbox max pending":             c.OutboxMaxPending,
		"idempotency cleanup batch size": c.IdempotencyCleanupBatchSize,
	} {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

// storageDriver нормализует StorageDriver; пустое значение — memory.
func (c Config) storageDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if driver == "" {
		return StorageDriverMemory
	}
	return driver
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
