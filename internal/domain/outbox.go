package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AggregateTypeOrder: агрегат, к которому относятся события заказов.
const AggregateTypeOrder = "order"

// Типы событий, публикуемых для аналитики.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
)

// OutboxStatus — состояние записи outbox. Из pending запись уходит ровно один раз.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OrderEventPayload: тело событий заказа в outbox.
type OrderEventPayload struct {
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	Status      OrderStatus `json:"status"`
	AmountMinor int64       `json:"amount_minor"`
	Currency    string      `json:"currency"`
	ShopIDs     []string    `json:"shop_ids,omitempty"`
	PaymentID   string      `json:"payment_id,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// NewOrderEvent готовит сообщение outbox о заказе.
func NewOrderEvent(eventType string, order Order, shopIDs []string, occurredAt time.Time) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		ShopIDs:     shopIDs,
		PaymentID:   order.PaymentID,
		OccurredAt:  occurredAt,
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
