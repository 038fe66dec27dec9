package domain

import (
	"context"
	"time"
)

// IntentRequest: параметры создания платёжного intent.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	ReceiptID   string
}

// Intent — ответ шлюза на создание intent.
type Intent struct {
	ID          string
	AmountMinor int64
	Currency    string
}

// PaymentGateway описывает взаимодействие с внешним платёжным шлюзом.
type PaymentGateway interface {
	// CreateIntent резервирует сумму к оплате и возвращает идентификатор intent.
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	// KeyID возвращает публичный ключ, нужный клиенту для открытия формы оплаты.
	KeyID() string
	// Provider возвращает код провайдера для записи в Payment.
	Provider() string
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
