package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия итоговой суммы и её составляющих.
	ErrAmountMismatch = errors.New("order amount does not match price breakdown")
	// Ошибка незаполненного адреса доставки.
	ErrAddressInvalid = errors.New("shipping address is incomplete")
	// Ошибка отсутствующего идентификатора заказа в платежах и подзаказах.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора магазина.
	ErrShopRequired = errors.New("shop_id is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("product_id is required")
	// ErrInvalidRequest — запрос не прошёл валидацию на границе.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrCartEmpty: оформление заказа из пустой корзины.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartShopConflict — в корзину добавляется товар другого магазина без force.
	ErrCartShopConflict = errors.New("cart contains items from another shop")
	// ErrInsufficientStock: остатка товара не хватает на запрошенное количество.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidAmount — итоговая сумма заказа не положительна.
	ErrInvalidAmount = errors.New("charge amount must be positive")

	// ErrGatewayUnavailable: платёжный шлюз не смог создать intent.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrSignatureInvalid — подпись клиента не совпала с ожидаемой.
	ErrSignatureInvalid = errors.New("payment signature is invalid")
	// ErrWebhookSignatureInvalid: подпись webhook не совпала, состояние не меняется. Разновидность ErrUnauthorized.
	ErrWebhookSignatureInvalid = fmt.Errorf("webhook signature is invalid: %w", ErrUnauthorized)
	// ErrPaymentAmountNegative — отрицательная сумма платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be positive")
	// ErrPaymentIntentRequired: у платежа нет идентификатора intent шлюза.
	ErrPaymentIntentRequired = errors.New("payment intent_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound возвращается, если платёж по intent не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrShopNotFound возвращается, если магазин не найден.
	ErrShopNotFound = errors.New("shop not found")
	// ErrCustomerNotFound возвращается, если клиента нет в справочнике.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrAlreadyExists — запись с таким идентификатором уже есть.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrUnauthorized: нет сессии или она не распознана.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden — у сессии нет прав на ресурс.
	ErrForbidden = errors.New("forbidden")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован этим же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ уже использован другим запросом.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// InsufficientStockError указывает позицию, которую нельзя оформить.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// GatewayError несёт сообщение платёжного шлюза.
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %s: %v", e.Message, e.Err)
	}
	return "payment gateway: " + e.Message
}

// Unwrap возвращает ErrGatewayUnavailable и исходную причину.
func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGatewayUnavailable, e.Err}
	}
	return []error{ErrGatewayUnavailable}
}

// IsIdempotencyConflict проверяет, что ключ уже использован.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsNotFound объединяет все ошибки «не найдено».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrShopNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}
