package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл сводного заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена, статус терминальный.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFailed: подпись оплаты не прошла проверку.
	OrderStatusFailed OrderStatus = "failed"
)

// ShopOrderStatus описывает состояние подзаказа магазина.
type ShopOrderStatus string

const (
	ShopOrderStatusPending    ShopOrderStatus = "pending"
	ShopOrderStatusPaid       ShopOrderStatus = "paid"
	ShopOrderStatusConfirmed  ShopOrderStatus = "confirmed"
	ShopOrderStatusProcessing ShopOrderStatus = "processing"
	ShopOrderStatusShipped    ShopOrderStatus = "shipped"
	ShopOrderStatusDelivered  ShopOrderStatus = "delivered"
	ShopOrderStatusCancelled  ShopOrderStatus = "cancelled"
	ShopOrderStatusRefunded   ShopOrderStatus = "refunded"
)

// Address — адрес доставки, все поля обязательны.
type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// Validate возвращает ErrAddressInvalid, если хотя бы одно поле пустое.
func (a Address) Validate() error {
	for _, field := range []string{a.Street, a.City, a.State, a.ZipCode, a.Country} {
		if strings.TrimSpace(field) == "" {
			return ErrAddressInvalid
		}
	}
	return nil
}

// Order: сводный заказ покупателя по всем магазинам одной корзины.
type Order struct {
	ID               string
	CustomerID       string
	Status           OrderStatus
	Currency         string
	SubtotalMinor    int64
	TaxMinor         int64
	HandlingFeeMinor int64
	// AmountMinor — сумма к оплате: товары + налог + сбор.
	AmountMinor     int64
	ShippingAddress Address
	PaymentID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if o.AmountMinor <= 0 {
		errs = append(errs, ErrInvalidAmount)
	}
	if o.SubtotalMinor+o.TaxMinor+o.HandlingFeeMinor != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if err := o.ShippingAddress.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ShopOrderItem: снимок купленной позиции; не зависит от последующих правок товара.
type ShopOrderItem struct {
	ProductID  string
	Name       string
	Qty        int32
	PriceMinor int64
}

// ShopOrder — часть заказа, относящаяся к одному магазину.
type ShopOrder struct {
	ID            string
	OrderID       string
	ShopID        string
	CustomerID    string
	Items         []ShopOrderItem
	SubtotalMinor int64
	Status        ShopOrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone возвращает копию без общего слайса позиций.
func (s ShopOrder) Clone() ShopOrder {
	s.Items = append([]ShopOrderItem(nil), s.Items...)
	return s
}

// ShopOrderView: подзаказ с контактами покупателя для кабинета магазина.
type ShopOrderView struct {
	ShopOrder
	CustomerName  string
	CustomerEmail string
}

// SplitByShop группирует позиции корзины по магазинам в порядке первого появления.
func SplitByShop(orderID, customerID string, items []CartItem, shopOf func(productID string) string, now time.Time, newID func() string) []ShopOrder {
	index := make(map[string]int)
	result := make([]ShopOrder, 0, 1)

	for _, item := range items {
		shopID := shopOf(item.ProductID)
		pos, ok := index[shopID]
		if !ok {
			pos = len(result)
			index[shopID] = pos
			result = append(result, ShopOrder{
				ID:         newID(),
				OrderID:    orderID,
				ShopID:     shopID,
				CustomerID: customerID,
				Status:     ShopOrderStatusPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		result[pos].Items = append(result[pos].Items, ShopOrderItem(item))
		result[pos].SubtotalMinor += int64(item.Qty) * item.PriceMinor
	}

	return result
}
