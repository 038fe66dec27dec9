package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func seedCatalog(t *testing.T, store *Store, stock int32) domain.Product {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Shops().Create(ctx, domain.Shop{ID: "shop-1", OwnerID: "owner-1", Name: "Shop"}))
	require.NoError(t, store.Customers().Upsert(ctx, domain.Customer{ID: "cust-1", Name: "Asha", Email: "asha@example.com"}))

	product := domain.Product{ID: "prod-1", ShopID: "shop-1", Name: "Mug", PriceMinor: 10000, StockQuantity: stock}
	require.NoError(t, store.Products().Create(ctx, product))
	return product
}

func sampleOrder(id, customerID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:               id,
		CustomerID:       customerID,
		Status:           domain.OrderStatusPending,
		Currency:         "INR",
		SubtotalMinor:    20000,
		TaxMinor:         1000,
		HandlingFeeMinor: domain.HandlingFeeMinor,
		AmountMinor:      22500,
		ShippingAddress: domain.Address{
			Street: "1 MG Road", City: "Pune", State: "MH", ZipCode: "411001", Country: "IN",
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCartRepository_PostgresSaveGetClear(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := store.Carts()

	empty, err := repo.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())

	cart := domain.Cart{
		CustomerID: "cust-1",
		ShopID:     "shop-1",
		Items: []domain.CartItem{
			{ProductID: "prod-1", Name: "Mug", Qty: 2, PriceMinor: 10000},
			{ProductID: "prod-2", Name: "Cup", Qty: 1, PriceMinor: 500},
		},
	}
	require.NoError(t, repo.Save(ctx, cart))

	got, err := repo.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Equal(t, "shop-1", got.ShopID)
	require.Equal(t, cart.Items, got.Items)

	require.NoError(t, repo.Clear(ctx, "cust-1"))
	got, err = repo.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
	require.Empty(t, got.ShopID)
}

func TestProductRepository_PostgresDecrementStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedCatalog(t, store, 3)

	left, ok, err := store.Products().DecrementStock(ctx, "prod-1", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, left)

	_, ok, err = store.Products().DecrementStock(ctx, "prod-1", 2)
	require.NoError(t, err)
	require.False(t, ok)

	product, err := store.Products().Get(ctx, "prod-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, product.StockQuantity)

	_, err = store.Products().Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestStore_PostgresInTxCommitsOrderGraph(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedCatalog(t, store, 5)

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-1", "cust-1", now)
	shopOrder := domain.ShopOrder{
		ID: "so-1", OrderID: order.ID, ShopID: "shop-1", CustomerID: "cust-1",
		Items:         []domain.ShopOrderItem{{ProductID: "prod-1", Name: "Mug", Qty: 2, PriceMinor: 10000}},
		SubtotalMinor: 20000, Status: domain.ShopOrderStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	payment := domain.Payment{
		ID: "pay-1", OrderID: order.ID, CustomerID: "cust-1", Provider: "razorpay", IntentID: "order_rzp_1",
		AmountMinor: order.AmountMinor, Currency: "INR", Status: domain.PaymentStatusCreated,
		CreatedAt: now, UpdatedAt: now,
	}

	err := store.InTx(ctx, func(tx domain.Repositories) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if err := tx.ShopOrders().Create(ctx, shopOrder); err != nil {
			return err
		}
		return tx.Payments().Create(ctx, payment)
	})
	require.NoError(t, err)

	var locked domain.Payment
	err = store.InTx(ctx, func(tx domain.Repositories) error {
		var err error
		locked, err = tx.Payments().LockByIntentID(ctx, "order_rzp_1")
		if err != nil {
			return err
		}
		locked.Status = domain.PaymentStatusSuccess
		locked.GatewayPaymentID = "pay_rzp_1"
		locked.UpdatedAt = now.Add(time.Second)
		if err := tx.Payments().Save(ctx, locked); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderStatusPaid, locked.ID, locked.UpdatedAt); err != nil {
			return err
		}
		return tx.ShopOrders().UpdateStatusByOrder(ctx, order.ID, domain.ShopOrderStatusPaid, locked.UpdatedAt)
	})
	require.NoError(t, err)

	gotOrder, err := store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, gotOrder.Status)
	require.Equal(t, "pay-1", gotOrder.PaymentID)
	require.Equal(t, order.ShippingAddress, gotOrder.ShippingAddress)

	views, err := store.ShopOrders().ListByShop(ctx, "shop-1", 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, domain.ShopOrderStatusPaid, views[0].Status)
	require.Equal(t, "asha@example.com", views[0].CustomerEmail)
	require.Len(t, views[0].Items, 1)

	gotPayment, err := store.Payments().GetByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusSuccess, gotPayment.Status)
	require.Equal(t, "pay_rzp_1", gotPayment.GatewayPaymentID)
}

func TestStore_PostgresInTxRollsBackOnError(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	seedCatalog(t, store, 5)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx domain.Repositories) error {
		if _, _, err := tx.Products().DecrementStock(ctx, "prod-1", 5); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, sampleOrder("order-rb", "cust-1", time.Now().UTC())); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	product, err := store.Products().Get(ctx, "prod-1")
	require.NoError(t, err)
	require.EqualValues(t, 5, product.StockQuantity)

	_, err = store.Orders().Get(ctx, "order-rb")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPaymentRepository_PostgresDuplicateIntent(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Orders().Create(ctx, sampleOrder("order-1", "cust-1", now)))
	require.NoError(t, store.Orders().Create(ctx, sampleOrder("order-2", "cust-1", now)))

	p := domain.Payment{
		ID: "pay-1", OrderID: "order-1", CustomerID: "cust-1", Provider: "razorpay", IntentID: "intent-dup",
		AmountMinor: 22500, Currency: "INR", Status: domain.PaymentStatusCreated, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Payments().Create(ctx, p))

	p.ID, p.OrderID = "pay-2", "order-2"
	require.ErrorIs(t, store.Payments().Create(ctx, p), domain.ErrAlreadyExists)
}

func TestOutboxAndTimeline_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	stored, err := store.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	pending, err := store.Outbox().PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.Outbox().MarkSent(ctx, stored.ID))
	stats, err := store.Outbox().Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
	require.ErrorIs(t, store.Outbox().MarkSent(ctx, "missing"), domain.ErrOutboxPublish)

	base := time.Now().UTC().Round(time.Microsecond)
	require.NoError(t, store.Timeline().Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelinePaymentCaptured, Occurred: base.Add(time.Second)}))
	require.NoError(t, store.Timeline().Append(ctx, domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelineOrderCreated, Occurred: base}))

	events, err := store.Timeline().List(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.TimelineOrderCreated, events[0].Type)

	require.NoError(t, store.InventoryLogs().Append(ctx, domain.InventoryLog{
		ProductID: "prod-1", ShopID: "shop-1", QuantityChanged: -2, NewQuantity: 3,
		Reason: domain.InventoryReasonSale, ReferenceID: "order-1",
	}))
	logs, err := store.InventoryLogs().ListByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.EqualValues(t, -2, logs[0].QuantityChanged)
}
