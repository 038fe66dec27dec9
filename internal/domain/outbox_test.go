package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewOrderEvent(t *testing.T) {
	occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	order := Order{
		ID:          "order-1",
		CustomerID:  "cust-1",
		Status:      OrderStatusPaid,
		AmountMinor: 22500,
		Currency:    "INR",
		PaymentID:   "pay-1",
	}

	msg, err := NewOrderEvent(EventOrderPaid, order, []string{"shop-1"}, occurred)
	if err != nil {
		t.Fatalf("NewOrderEvent: %v", err)
	}
	if msg.AggregateType != AggregateTypeOrder || msg.AggregateID != "order-1" || msg.EventType != EventOrderPaid {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	var payload OrderEventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Status != OrderStatusPaid || payload.PaymentID != "pay-1" || len(payload.ShopIDs) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !payload.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred_at mismatch: %v", payload.OccurredAt)
	}
}
