package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

const testIntent = "order_rzp_1"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedPendingOrder кладёт в хранилище заказ на 2 × Mug в состоянии после checkout.
func seedPendingOrder(t *testing.T, stock int32) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Products().Create(ctx, domain.Product{
		ID: "mug", ShopID: "shop-a", Name: "Mug", PriceMinor: 10000, StockQuantity: stock,
	}))
	require.NoError(t, store.Carts().Save(ctx, domain.Cart{
		CustomerID: "cust-1",
		ShopID:     "shop-a",
		Items:      []domain.CartItem{{ProductID: "mug", Name: "Mug", Qty: 2, PriceMinor: 10000}},
	}))
	require.NoError(t, store.Orders().Create(ctx, domain.Order{
		ID: "order-1", CustomerID: "cust-1", Status: domain.OrderStatusPending, Currency: "INR",
		SubtotalMinor: 20000, TaxMinor: 1000, HandlingFeeMinor: 1500, AmountMinor: 22500,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
	require.NoError(t, store.ShopOrders().Create(ctx, domain.ShopOrder{
		ID: "so-1", OrderID: "order-1", ShopID: "shop-a", CustomerID: "cust-1",
		Items:         []domain.ShopOrderItem{{ProductID: "mug", Name: "Mug", Qty: 2, PriceMinor: 10000}},
		SubtotalMinor: 20000, Status: domain.ShopOrderStatusPending, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
	require.NoError(t, store.Payments().Create(ctx, domain.Payment{
		ID: "pay-1", OrderID: "order-1", CustomerID: "cust-1", Provider: "razorpay", IntentID: testIntent,
		AmountMinor: 22500, Currency: "INR", Status: domain.PaymentStatusCreated,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
	return store
}

func newTestEngine(store *memory.Store) *Engine {
	return NewEngine(store, WithClock(func() time.Time { return fixedNow }))
}

func TestEngine_FulfillTransitionsEverything(t *testing.T) {
	store := seedPendingOrder(t, 10)
	engine := newTestEngine(store)
	ctx := context.Background()

	res, err := engine.Fulfill(ctx, FulfillRequest{IntentID: testIntent, GatewayPaymentID: "pay_gw_1", Signature: "sig", Source: metrics.SourceClient})
	require.NoError(t, err)
	require.Equal(t, OutcomeFulfilled, res.Outcome)
	require.Equal(t, "order-1", res.OrderID)
	require.Empty(t, res.SkippedProducts)

	payment, err := store.Payments().GetByIntentID(ctx, testIntent)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	require.Equal(t, "pay_gw_1", payment.GatewayPaymentID)
	require.Equal(t, "sig", payment.Signature)

	order, err := store.Orders().Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, order.Status)
	require.Equal(t, "pay-1", order.PaymentID)

	shopOrders, err := store.ShopOrders().ListByOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.ShopOrderStatusPaid, shopOrders[0].Status)

	product, err := store.Products().Get(ctx, "mug")
	require.NoError(t, err)
	require.EqualValues(t, 8, product.StockQuantity)

	logs, err := store.InventoryLogs().ListByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.EqualValues(t, -2, logs[0].QuantityChanged)
	require.EqualValues(t, 8, logs[0].NewQuantity)
	require.Equal(t, domain.InventoryReasonSale, logs[0].Reason)
	require.Equal(t, "shop-a", logs[0].ShopID)

	cart, err := store.Carts().Get(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())

	events, err := store.Timeline().List(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.TimelinePaymentCaptured, events[0].Type)

	pending, err := store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderPaid, pending[0].EventType)
}

func TestEngine_FulfillIsIdempotent(t *testing.T) {
	store := seedPendingOrder(t, 10)
	engine := newTestEngine(store)
	ctx := context.Background()

	first, err := engine.Fulfill(ctx, FulfillRequest{IntentID: testIntent, GatewayPaymentID: "pay_gw_1", Source: metrics.SourceClient})
	require.NoError(t, err)
	require.Equal(t, OutcomeFulfilled, first.Outcome)

	// корзина успела наполниться заново: повтор не должен её трогать
	require.NoError(t, store.Carts().Save(ctx, domain.Cart{
		CustomerID: "cust-1", ShopID: "shop-a",
		Items: []domain.CartItem{{ProductID: "mug", Name: "Mug", Qty: 1, PriceMinor: 10000}},
	}))

	second, err := engine.Fulfill(ctx, FulfillRequest{IntentID: testIntent, GatewayPaymentID: "pay_gw_1", Source: metrics.SourceWebhook})
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyFulfilled, second.Outcome)

	product, err := store.Products().Get(ctx, "mug")
	require.NoError(t, err)
	require.EqualValues(t, 8, product.StockQuantity)

	logs, err := store.InventoryLogs().ListByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)

	cart, err := store.Carts().Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
}

func TestEngine_ConcurrentFulfillDecrementsOnce(t *testing.T) {
	store := seedPendingOrder(t, 10)
	engine := newTestEngine(store)
	ctx := context.Background()

	const attempts = 8
	outcomes := make(chan Outcome, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Fulfill(ctx, FulfillRequest{IntentID: testIntent, GatewayPaymentID: "pay_gw_1", Source: metrics.SourceWebhook})
			if err != nil {
				t.Errorf("fulfill: %v", err)
				return
			}
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	require.Equal(t, 1, counts[OutcomeFulfilled])
	require.Equal(t, attempts-1, counts[OutcomeAlreadyFulfilled])

	product, err := store.Products().Get(ctx, "mug")
	require.NoError(t, err)
	require.EqualValues(t, 8, product.StockQuantity)
}

// seedSecondOrder добавляет второй оплачиваемый заказ на те же 2 × Mug.
func seedSecondOrder(t *testing.T, store *memory.Store, intentID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Orders().Create(ctx, domain.Order{
		ID: "order-2", CustomerID: "cust-2", Status: domain.OrderStatusPending, Currency: "INR",
		SubtotalMinor: 20000, TaxMinor: 1000, HandlingFeeMinor: 1500, AmountMinor: 22500,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
	require.NoError(t, store.ShopOrders().Create(ctx, domain.ShopOrder{
		ID: "so-2", OrderID: "order-2", ShopID: "shop-a", CustomerID: "cust-2",
		Items:         []domain.ShopOrderItem{{ProductID: "mug", Name: "Mug", Qty: 2, PriceMinor: 10000}},
		SubtotalMinor: 20000, Status: domain.ShopOrderStatusPending, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
	require.NoError(t, store.Payments().Create(ctx, domain.Payment{
		ID: "pay-2", OrderID: "order-2", CustomerID: "cust-2", Provider: "razorpay", IntentID: intentID,
		AmountMinor: 22500, Currency: "INR", Status: domain.PaymentStatusCreated,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
}

func TestEngine_ConcurrentOrdersDoNotOversell(t *testing.T) {
	// остатка хватает ровно на один заказ
	store := seedPendingOrder(t, 2)
	seedSecondOrder(t, store, "order_rzp_2")
	engine := newTestEngine(store)
	ctx := context.Background()

	intents := []string{testIntent, "order_rzp_2"}
	results := make(chan FulfillResult, len(intents))
	var wg sync.WaitGroup
	for _, intent := range intents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Fulfill(ctx, FulfillRequest{IntentID: intent, Source: metrics.SourceWebhook})
			if err != nil {
				t.Errorf("fulfill %s: %v", intent, err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var short, full int
	for res := range results {
		require.Equal(t, OutcomeFulfilled, res.Outcome)
		if len(res.SkippedProducts) > 0 {
			require.Equal(t, []string{"mug"}, res.SkippedProducts)
			short++
		} else {
			full++
		}
	}
	require.Equal(t, 1, full)
	require.Equal(t, 1, short)

	product, err := store.Products().Get(ctx, "mug")
	require.NoError(t, err)
	require.Zero(t, product.StockQuantity)

	var logs int
	for _, orderID := range []string{"order-1", "order-2"} {
		entries, err := store.InventoryLogs().ListByReference(ctx, orderID)
		require.NoError(t, err)
		logs += len(entries)
	}
	require.Equal(t, 1, logs)
}

func TestStockLines_OrderedByProduct(t *testing.T) {
	lines := stockLines([]domain.ShopOrder{
		{ShopID: "shop-b", Items: []domain.ShopOrderItem{{ProductID: "zeta", Qty: 1}, {ProductID: "alpha", Qty: 2}}},
		{ShopID: "shop-a", Items: []domain.ShopOrderItem{{ProductID: "mug", Qty: 3}}},
	})

	require.Len(t, lines, 3)
	got := make([]string, 0, len(lines))
	for _, line := range lines {
		got = append(got, line.shopID+"/"+line.item.ProductID)
	}
	require.Equal(t, []string{"shop-b/alpha", "shop-a/mug", "shop-b/zeta"}, got)
	require.EqualValues(t, 2, lines[0].item.Qty)
}

func TestEngine_FulfillSkipsShortStock(t *testing.T) {
	store := seedPendingOrder(t, 1)
	engine := newTestEngine(store)
	ctx := context.Background()

	res, err := engine.Fulfill(ctx, FulfillRequest{IntentID: testIntent, Source: metrics.SourceWebhook})
	require.NoError(t, err)
	require.Equal(t, OutcomeFulfilled, res.Outcome)
	require.Equal(t, []string{"mug"}, res.SkippedProducts)

	product, err := store.Products().Get(ctx, "mug")
	require.NoError(t, err)
	require.EqualValues(t, 1, product.StockQuantity)

	logs, err := store.InventoryLogs().ListByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Empty(t, logs)

	order, err := store.Orders().Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, order.Status)

	events, err := store.Timeline().List(ctx, "order-1")
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	require.ElementsMatch(t, []string{domain.TimelineStockShortage, domain.TimelinePaymentCaptured}, types)
}

func TestEngine_FulfillUnknownIntent(t *testing.T) {
	engine := newTestEngine(seedPendingOrder(t, 10))

	_, err := engine.Fulfill(context.Background(), FulfillRequest{IntentID: "order_unknown", Source: metrics.SourceWebhook})
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestEngine_MarkFailedThenFulfillIsNoop(t *testing.T) {
	store := seedPendingOrder(t, 10)
	engine := newTestEngine(store)
	ctx := context.Background()

	changed, err := engine.MarkFailed(ctx, FulfillRequest{IntentID: testIntent, GatewayPaymentID: "pay_gw_1", Signature: "bad"}, "signature mismatch")
	require.NoError(t, err)
	require.True(t, changed)

	order, err := store.Orders().Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFailed, order.Status)

	changed, err = engine.MarkFailed(ctx, FulfillRequest{IntentID: testIntent}, "again")
	require.NoError(t, err)
	require.False(t, changed)

	res, err := engine.Fulfill(ctx, FulfillRequest{IntentID: testIntent, Source: metrics.SourceWebhook})
	require.NoError(t, err)
	require.Equal(t, OutcomePaymentFailed, res.Outcome)

	payment, err := store.Payments().GetByIntentID(ctx, testIntent)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusFailed, payment.Status)

	product, err := store.Products().Get(ctx, "mug")
	require.NoError(t, err)
	require.EqualValues(t, 10, product.StockQuantity)

	pending, err := store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderPaymentFailed, pending[0].EventType)
}
