package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/app"
)

const (
	envHTTPAddr                    = "MARKETPLACE_HTTP_ADDR"
	envGRPCAddr                    = "MARKETPLACE_GRPC_ADDR"
	envMetricsAddr                 = "MARKETPLACE_METRICS_ADDR"
	envStorageDriver               = "MARKETPLACE_STORAGE_DRIVER"
	envPostgresDSN                 = "MARKETPLACE_POSTGRES_DSN"
	envPostgresAutoMigrate         = "MARKETPLACE_POSTGRES_AUTO_MIGRATE"
	envSeedDemoData                = "MARKETPLACE_SEED_DEMO_DATA"
	envGatewayKeyID                = "MARKETPLACE_GATEWAY_KEY_ID"
	envGatewayKeySecret            = "MARKETPLACE_GATEWAY_KEY_SECRET"
	envGatewayWebhookSecret        = "MARKETPLACE_GATEWAY_WEBHOOK_SECRET"
	envGatewayBaseURL              = "MARKETPLACE_GATEWAY_BASE_URL"
	envGatewayTimeout              = "MARKETPLACE_GATEWAY_TIMEOUT"
	envAllowMockGateway            = "MARKETPLACE_ALLOW_MOCK_GATEWAY"
	envCurrency                    = "MARKETPLACE_CURRENCY"
	envKafkaBrokers                = "MARKETPLACE_KAFKA_BROKERS"
	envOutboxTopic                 = "MARKETPLACE_OUTBOX_TOPIC"
	envOutboxPollInterval          = "MARKETPLACE_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "MARKETPLACE_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "MARKETPLACE_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "MARKETPLACE_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "MARKETPLACE_OUTBOX_MAX_PENDING"
	envIdempotencyTTL              = "MARKETPLACE_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "MARKETPLACE_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "MARKETPLACE_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

type envLookup func(string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и попадают в warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, validate func(int) bool, msg string) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		parsed, err := parseInt(v, validate, msg)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, validate func(time.Duration) bool, msg string) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		parsed, err := parseDuration(v, validate, msg)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	boolean(envSeedDemoData, &cfg.SeedDemoData)

	str(envGatewayKeyID, &cfg.GatewayKeyID)
	str(envGatewayKeySecret, &cfg.GatewayKeySecret)
	str(envGatewayWebhookSecret, &cfg.GatewayWebhookSecret)
	str(envGatewayBaseURL, &cfg.GatewayBaseURL)
	duration(envGatewayTimeout, &cfg.GatewayTimeout, positiveDuration, "must be > 0")
	boolean(envAllowMockGateway, &cfg.AllowMockGateway)
	if v, ok := lookupTrimmed(lookup, envCurrency); ok {
		cfg.Currency = strings.ToUpper(v)
	}

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envOutboxTopic, &cfg.OutboxTopic)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")

	duration(envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	integer(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")

	return cfg, warnings
}

// lookupTrimmed возвращает значение без пробелов; пустое считается незаданным.
func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, validate func(int) bool, msg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if validate != nil && !validate(v) {
		return 0, fmt.Errorf("invalid int value %d: %s", v, msg)
	}
	return v, nil
}

func parseDuration(raw string, validate func(time.Duration) bool, msg string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if validate != nil && !validate(v) {
		return 0, fmt.Errorf("invalid duration value %s: %s", v, msg)
	}
	return v, nil
}
