package domain

import (
	"fmt"
	"strings"
	"time"
)

// Типы событий таймлайна заказа.
const (
	TimelineOrderCreated            = "OrderCreated"
	TimelinePaymentCaptured         = "PaymentCaptured"
	TimelinePaymentSignatureInvalid = "PaymentSignatureInvalid"
	TimelineStockShortage           = "StockShortage"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// Validate проверяет обязательные поля события.
func (e TimelineEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.OrderID) == "":
		return fmt.Errorf("timeline event without order id: %w", ErrInvalidRequest)
	case strings.TrimSpace(e.Type) == "":
		return fmt.Errorf("timeline event for %s without type: %w", e.OrderID, ErrInvalidRequest)
	}
	return nil
}
