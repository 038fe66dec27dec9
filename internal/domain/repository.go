package domain

import (
	"context"
	"time"
)

// CartRepository хранит корзины покупателей.
type CartRepository interface {
	// Get возвращает корзину клиента; отсутствующая корзина считается пустой.
	Get(ctx context.Context, customerID string) (Cart, error)
	Save(ctx context.Context, cart Cart) error
	// Clear очищает корзину именно этого клиента.
	Clear(ctx context.Context, customerID string) error
}

// ProductRepository хранит товары и их остатки.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// DecrementStock атомарно уменьшает остаток, если он не меньше qty.
	// ok=false означает, что остатка не хватило и ничего не изменилось.
	DecrementStock(ctx context.Context, id string, qty int32) (newQty int32, ok bool, err error)
}

// ShopRepository хранит магазины.
type ShopRepository interface {
	Create(ctx context.Context, shop Shop) error
	Get(ctx context.Context, id string) (Shop, error)
}

// CustomerDirectory: справочник покупателей из внешнего хранилища пользователей.
type CustomerDirectory interface {
	Upsert(ctx context.Context, customer Customer) error
	Get(ctx context.Context, id string) (Customer, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrAlreadyExists при повторном ID.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента от новых к старым.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	// UpdateStatus меняет статус и привязку платежа.
	UpdateStatus(ctx context.Context, id string, status OrderStatus, paymentID string, updatedAt time.Time) error
}

// ShopOrderRepository хранит подзаказы магазинов.
type ShopOrderRepository interface {
	Create(ctx context.Context, shopOrder ShopOrder) error
	ListByOrder(ctx context.Context, orderID string) ([]ShopOrder, error)
	// ListByShop возвращает подзаказы магазина от новых к старым вместе с контактами покупателя.
	ListByShop(ctx context.Context, shopID string, limit int) ([]ShopOrderView, error)
	UpdateStatusByOrder(ctx context.Context, orderID string, status ShopOrderStatus, updatedAt time.Time) error
}

// PaymentRepository хранит платежи.
type PaymentRepository interface {
	// Create сохраняет платёж; intent_id уникален.
	Create(ctx context.Context, payment Payment) error
	GetByIntentID(ctx context.Context, intentID string) (Payment, error)
	// LockByIntentID читает платёж с блокировкой до конца транзакции.
	LockByIntentID(ctx context.Context, intentID string) (Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (Payment, error)
	Save(ctx context.Context, payment Payment) error
}

// InventoryLogRepository — append-only журнал движения остатков.
type InventoryLogRepository interface {
	Append(ctx context.Context, entry InventoryLog) error
	ListByReference(ctx context.Context, referenceID string) ([]InventoryLog, error)
	ListByProduct(ctx context.Context, productID string) ([]InventoryLog, error)
}

// Repositories объединяет репозитории, которые участвуют в одной транзакции.
type Repositories interface {
	Carts() CartRepository
	Products() ProductRepository
	Shops() ShopRepository
	Customers() CustomerDirectory
	Orders() OrderRepository
	ShopOrders() ShopOrderRepository
	Payments() PaymentRepository
	InventoryLogs() InventoryLogRepository
	Timeline() TimelineRepository
	Outbox() OutboxRepository
}

// Store: хранилище с транзакционной границей.
type Store interface {
	Repositories
	// InTx выполняет fn атомарно: ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Repositories) error) error
	Idempotency() IdempotencyRepository
	Ping(ctx context.Context) error
}
