package domain

import "time"

// PaymentStatus описывает состояние платежа в системе.
type PaymentStatus string

const (
	// PaymentStatusCreated — intent создан в шлюзе, подтверждения ещё нет.
	PaymentStatusCreated PaymentStatus = "created"
	// PaymentStatusSuccess: оплата подтверждена и заказ исполнен.
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusFailed — подтверждение отклонено из-за неверной подписи.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded: деньги возвращены клиенту.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment — попытка оплаты заказа, якорь идемпотентности исполнения.
type Payment struct {
	ID               string
	OrderID          string
	CustomerID       string
	Provider         string
	IntentID         string
	GatewayPaymentID string
	Signature        string
	AmountMinor      int64
	Currency         string
	Status           PaymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if p.IntentID == "" {
		errs = append(errs, ErrPaymentIntentRequired)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	return errs
}

// IsTerminal сообщает, что платёж больше не переходит между состояниями.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusCreated
}
