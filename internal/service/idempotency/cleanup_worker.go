// Package idempotency чистит просроченные ключи Idempotency-Key checkout.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// defaultMaxBatches ограничивает один проход, остаток уйдёт в следующий тик.
	defaultMaxBatches = 20
)

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) CleanupOption {
	return func(w *CleanupWorker) { w.metrics = m }
}

// WithClock подменяет источник времени для границы просрочки.
func WithClock(clock func() time.Time) CleanupOption {
	return func(w *CleanupWorker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMaxBatches задаёт число пачек за один проход.
func WithMaxBatches(n int) CleanupOption {
	return func(w *CleanupWorker) {
		if n > 0 {
			w.maxBatches = n
		}
	}
}

// CleanupResult: итог одного прохода очистки.
type CleanupResult struct {
	Deleted int
	Batches int
	// Truncated — проход упёрся в лимит пачек, просроченные ключи ещё остались.
	Truncated bool
}

// CleanupWorker периодически удаляет просроченные ключи, освобождая их для повторного checkout.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	clock      func() time.Time
	interval   time.Duration
	batchSize  int
	maxBatches int
}

func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:       repo,
		logger:     log.WithField("component", "idempotency-cleanup-worker"),
		tracer:     otel.Tracer("marketplace/idempotency"),
		clock:      func() time.Time { return time.Now().UTC() },
		interval:   defaultCleanupInterval,
		batchSize:  defaultCleanupBatchSize,
		maxBatches: defaultMaxBatches,
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run чистит ключи сразу и затем раз в interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runAndRecord(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runAndRecord(ctx context.Context) {
	result, err := w.RunOnce(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.metrics.RecordIdempotencyCleanup(err, result.Deleted)
		w.logger.WithError(err).WithField("deleted", result.Deleted).Warn("idempotency cleanup run failed")
		return
	}

	w.metrics.RecordIdempotencyCleanup(nil, result.Deleted)
	entry := w.logger.WithFields(log.Fields{"deleted": result.Deleted, "batches": result.Batches})
	if result.Truncated {
		entry.Warn("idempotency cleanup hit batch limit, backlog remains")
	} else if result.Deleted > 0 {
		entry.Info("idempotency cleanup completed")
	}
}

// RunOnce удаляет ключи, просроченные на момент clock(), пачками batchSize.
func (w *CleanupWorker) RunOnce(ctx context.Context) (result CleanupResult, err error) {
	ctx, span := w.tracer.Start(ctx, "idempotency.Cleanup", trace.WithAttributes(
		attribute.Int("cleanup.batch_size", w.batchSize),
	))
	defer func() {
		span.SetAttributes(attribute.Int("cleanup.deleted", result.Deleted))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cleanup failed")
		}
		span.End()
	}()

	before := w.clock()
	for result.Batches < w.maxBatches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return result, err
		}
		result.Batches++
		result.Deleted += deleted
		if deleted < w.batchSize {
			return result, nil
		}
	}
	result.Truncated = true
	return result, nil
}
