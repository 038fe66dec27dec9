package domain

import "time"

// Product — товар магазина с неотрицательным остатком.
type Product struct {
	ID            string
	ShopID        string
	Name          string
	PriceMinor    int64
	StockQuantity int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Shop: магазин продавца.
type Shop struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// Customer — данные покупателя для отображения в заказах магазина.
type Customer struct {
	ID    string
	Name  string
	Email string
}

// InventoryReasonSale: списание остатка при оплате заказа.
const InventoryReasonSale = "sale"

// InventoryLog — неизменяемая запись об изменении остатка.
type InventoryLog struct {
	ID              string
	ProductID       string
	ShopID          string
	QuantityChanged int32
	NewQuantity     int32
	Reason          string
	ReferenceID     string
	CreatedAt       time.Time
}
