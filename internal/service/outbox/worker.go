// Package outbox доставляет события заказов из transactional outbox в брокер.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
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
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

// Метки результата публикации.
const (
	resultSent       = "sent"
	resultRetryError = "retry_error"
	resultFailed     = "failed"
	resultDLQFailed  = "dlq_failed"
)

// Option настраивает Worker.
type Option func(*Worker)

func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics задаёт метрики публикации и backlog.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithDLQPublisher задаёт publisher для событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

func WithBatchSize(batchSize int) Option {
	return func(w *Worker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) {
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
	}
}

// WithRetryBaseDelay задаёт первую паузу экспоненциального backoff; 0 отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay >= 0 {
			w.retryBaseDelay = delay
		}
	}
}

// BatchResult: итог одного прохода по outbox.
type BatchResult struct {
	Pulled int
	Sent   int
	Failed int
}

// Worker публикует pending-сообщения из outbox в брокер.
// Заказ и платёж уже закоммичены: сбой брокера не влияет на checkout и исполнение.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	dlq            domain.OutboxPublisher
	logger         *log.Entry
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         log.WithField("component", "outbox-worker"),
		tracer:         otel.Tracer("marketplace/outbox"),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run опрашивает outbox раз в pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает до batchSize pending-событий и публикует их по порядку.
// Событие, исчерпавшее попытки, уходит в DLQ и помечается failed.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}
	defer w.refreshBacklogMetrics(ctx)

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return result
	}
	result.Pulled = len(events)

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}

		fields := log.Fields{"outbox_id": event.ID, "event_type": event.EventType, "aggregate_id": event.AggregateID}
		if err := w.deliver(ctx, event); err != nil {
			if ctx.Err() != nil {
				break
			}
			result.Failed++
			w.logger.WithError(err).WithFields(fields).Error("outbox publish failed after retries")
			w.metrics.RecordOutboxPublish(resultFailed)
			w.deadLetter(ctx, event, err, fields)
			continue
		}

		result.Sent++
		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			w.logger.WithError(err).WithFields(fields).Warn("failed to mark outbox as sent")
		}
	}
	return result
}

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) (err error) {
	ctx, span := w.tracer.Start(ctx, "outbox.Publish", trace.WithAttributes(
		attribute.String("outbox.id", event.ID),
		attribute.String("outbox.event_type", event.EventType),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
		}
		span.End()
	}()

	for attempt := 1; ; attempt++ {
		err = w.publisher.Publish(event)
		if err == nil {
			w.metrics.RecordOutboxPublish(resultSent)
			span.SetAttributes(attribute.Int("outbox.attempts", attempt))
			return nil
		}
		w.metrics.RecordOutboxPublish(resultRetryError)

		if attempt >= w.maxAttempts {
			return fmt.Errorf("publish failed after %d attempts: %w", attempt, err)
		}
		if delay := w.backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}

// backoff удваивает паузу с каждой попыткой, не превышая maxRetryDelay.
func (w *Worker) backoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) deadLetter(ctx context.Context, event domain.OutboxMessage, publishErr error, fields log.Fields) {
	if w.dlq != nil {
		if err := w.dlq.Publish(w.dlqMessage(event, publishErr)); err != nil {
			w.logger.WithError(err).WithFields(fields).Warn("failed to publish to DLQ")
			w.metrics.RecordOutboxPublish(resultDLQFailed)
		}
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		w.logger.WithError(err).WithFields(fields).Warn("failed to mark outbox as failed")
	}
}

// dlqEnvelope: сообщение в DLQ: исходное событие плюс причина отказа.
type dlqEnvelope struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	Attempts       int             `json:"attempts"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

func (w *Worker) dlqMessage(event domain.OutboxMessage, publishErr error) domain.OutboxMessage {
	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		// битый payload всё равно доезжает до DLQ строкой
		quoted, _ := json.Marshal(string(event.Payload))
		payload = quoted
	}

	// маршалинг структуры из строк и валидного JSON не падает
	body, _ := json.Marshal(dlqEnvelope{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        payload,
		PublishError:   publishErr.Error(),
		Attempts:       w.maxAttempts,
		DLQPublishedAt: time.Now().UTC(),
	})

	return domain.OutboxMessage{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       body,
	}
}

func (w *Worker) refreshBacklogMetrics(ctx context.Context) {
	if w.metrics == nil || ctx.Err() != nil {
		return
	}

	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = time.Since(stats.OldestPendingAt)
	}
	w.metrics.SetOutboxBacklog(stats.PendingCount, age)
}
