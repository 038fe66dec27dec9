package payment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Outcome: итог попытки исполнения платежа.
type Outcome string

const (
	// OutcomeFulfilled — платёж переведён в success, заказ оплачен.
	OutcomeFulfilled Outcome = "fulfilled"
	// OutcomeAlreadyFulfilled: платёж уже был исполнен, ничего не изменилось.
	OutcomeAlreadyFulfilled Outcome = "already_fulfilled"
	// OutcomePaymentFailed — платёж ранее отклонён, подтверждение проигнорировано.
	OutcomePaymentFailed Outcome = "payment_failed"
)

// FulfillRequest: подтверждение оплаты от клиента или webhook.
type FulfillRequest struct {
	IntentID         string
	GatewayPaymentID string
	Signature        string
	// Source — metrics.SourceClient или metrics.SourceWebhook.
	Source string
}

// FulfillResult описывает, что сделало исполнение.
type FulfillResult struct {
	Outcome   Outcome
	OrderID   string
	PaymentID string
	// SkippedProducts: товары, остатка которых не хватило на списание.
	SkippedProducts []string
}

// Options — необязательные зависимости движка.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}

// Engine: единственная функция перехода платежа, общая для verify и webhook.
type Engine struct {
	store   domain.Store
	logger  *log.Entry
	metrics *metrics.Metrics
	clock   func() time.Time
	tracer  trace.Tracer
}

// NewEngine создаёт движок исполнения платежей.
func NewEngine(store domain.Store, opts ...Option) *Engine {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = log.WithField("component", "payment-engine")
	}
	clock := options.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		store:   store,
		logger:  logger,
		metrics: options.Metrics,
		clock:   clock,
		tracer:  otel.Tracer("marketplace/payment"),
	}
}

// Fulfill исполняет платёж ровно один раз: платёж, заказ и подзаказы в paid,
// списание остатков с журналом, очистка корзины, таймлайн и outbox.
// Всё выполняется в одной транзакции; повторный вызов возвращает OutcomeAlreadyFulfilled.
func (e *Engine) Fulfill(ctx context.Context, req FulfillRequest) (result FulfillResult, err error) {
	started := e.clock()
	ctx, span := e.tracer.Start(ctx, "payment.Fulfill", trace.WithAttributes(
		attribute.String("payment.intent_id", req.IntentID),
		attribute.String("payment.source", req.Source),
	))
	defer func() {
		e.metrics.RecordFulfillment(req.Source, fulfillmentResult(result.Outcome, err), e.clock().Sub(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fulfillment failed")
		} else {
			span.SetAttributes(attribute.String("payment.outcome", string(result.Outcome)))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if strings.TrimSpace(req.IntentID) == "" {
		return FulfillResult{}, fmt.Errorf("intent id: %w", domain.ErrInvalidRequest)
	}

	err = e.store.InTx(ctx, func(tx domain.Repositories) error {
		payment, err := tx.Payments().LockByIntentID(ctx, req.IntentID)
		if err != nil {
			return err
		}
		result = FulfillResult{OrderID: payment.OrderID, PaymentID: payment.ID}

		switch payment.Status {
		case domain.PaymentStatusSuccess, domain.PaymentStatusRefunded:
			result.Outcome = OutcomeAlreadyFulfilled
			return nil
		case domain.PaymentStatusFailed:
			result.Outcome = OutcomePaymentFailed
			return nil
		}

		now := e.clock()
		payment.Status = domain.PaymentStatusSuccess
		if req.GatewayPaymentID != "" {
			payment.GatewayPaymentID = req.GatewayPaymentID
		}
		if req.Signature != "" {
			payment.Signature = req.Signature
		}
		payment.UpdatedAt = now
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}

		if err := tx.Orders().UpdateStatus(ctx, payment.OrderID, domain.OrderStatusPaid, payment.ID, now); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		if err := tx.ShopOrders().UpdateStatusByOrder(ctx, payment.OrderID, domain.ShopOrderStatusPaid, now); err != nil {
			return fmt.Errorf("mark shop orders paid: %w", err)
		}

		shopOrders, err := tx.ShopOrders().ListByOrder(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("list shop orders: %w", err)
		}
		skipped, err := e.decrementStock(ctx, tx, payment.OrderID, shopOrders, now)
		if err != nil {
			return err
		}
		result.SkippedProducts = skipped

		if err := tx.Carts().Clear(ctx, payment.CustomerID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order, err := tx.Orders().Get(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelinePaymentCaptured,
			Reason:   req.Source,
			Occurred: now,
		}); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		if err := enqueueOrderEvent(ctx, tx, domain.EventOrderPaid, order, shopOrders, now); err != nil {
			return err
		}

		result.Outcome = OutcomeFulfilled
		return nil
	})
	if err != nil {
		return FulfillResult{}, err
	}

	fields := log.Fields{
		"intent_id": req.IntentID,
		"order_id":  result.OrderID,
		"source":    req.Source,
		"outcome":   result.Outcome,
	}
	switch result.Outcome {
	case OutcomePaymentFailed:
		e.logger.WithFields(fields).Warn("confirmation for failed payment ignored, needs reconciliation")
	case OutcomeFulfilled:
		if len(result.SkippedProducts) > 0 {
			fields["skipped_products"] = result.SkippedProducts
			e.metrics.RecordStockShortage(len(result.SkippedProducts))
			e.logger.WithFields(fields).Warn("payment fulfilled with stock shortage")
		} else {
			e.logger.WithFields(fields).Info("payment fulfilled")
		}
	default:
		e.logger.WithFields(fields).Debug("payment already fulfilled")
	}
	return result, nil
}

type stockLine struct {
	shopID string
	item   domain.ShopOrderItem
}

// stockLines раскладывает позиции заказа в порядке ProductID: параллельные транзакции
// берут блокировки строк products в одном порядке.
func stockLines(shopOrders []domain.ShopOrder) []stockLine {
	var lines []stockLine
	for _, so := range shopOrders {
		for _, item := range so.Items {
			lines = append(lines, stockLine{shopID: so.ShopID, item: item})
		}
	}
	slices.SortStableFunc(lines, func(a, b stockLine) int {
		return strings.Compare(a.item.ProductID, b.item.ProductID)
	})
	return lines
}

// decrementStock списывает остатки по всем позициям. Позиция, на которую не хватило
// остатка, пропускается и попадает в результат и таймлайн.
func (e *Engine) decrementStock(ctx context.Context, tx domain.Repositories, orderID string, shopOrders []domain.ShopOrder, now time.Time) ([]string, error) {
	var skipped []string
	for _, line := range stockLines(shopOrders) {
		item := line.item
		newQty, ok, err := tx.Products().DecrementStock(ctx, item.ProductID, item.Qty)
		if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
			return nil, fmt.Errorf("decrement stock %s: %w", item.ProductID, err)
		}
		if err != nil || !ok {
			skipped = append(skipped, item.ProductID)
			if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
				OrderID:  orderID,
				Type:     domain.TimelineStockShortage,
				Reason:   fmt.Sprintf("product %s qty %d", item.ProductID, item.Qty),
				Occurred: now,
			}); err != nil {
				return nil, fmt.Errorf("append timeline: %w", err)
			}
			continue
		}

		if err := tx.InventoryLogs().Append(ctx, domain.InventoryLog{
			ProductID:       item.ProductID,
			ShopID:          line.shopID,
			QuantityChanged: -item.Qty,
			NewQuantity:     newQty,
			Reason:          domain.InventoryReasonSale,
			ReferenceID:     orderID,
			CreatedAt:       now,
		}); err != nil {
			return nil, fmt.Errorf("append inventory log: %w", err)
		}
	}
	return skipped, nil
}

// MarkFailed переводит платёж created → failed и заказ в failed.
// Для платежа в терминальном статусе ничего не меняет и возвращает false.
func (e *Engine) MarkFailed(ctx context.Context, req FulfillRequest, reason string) (bool, error) {
	var changed bool
	err := e.store.InTx(ctx, func(tx domain.Repositories) error {
		payment, err := tx.Payments().LockByIntentID(ctx, req.IntentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusCreated {
			return nil
		}

		now := e.clock()
		payment.Status = domain.PaymentStatusFailed
		payment.GatewayPaymentID = req.GatewayPaymentID
		payment.Signature = req.Signature
		payment.UpdatedAt = now
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		if err := tx.Orders().UpdateStatus(ctx, payment.OrderID, domain.OrderStatusFailed, "", now); err != nil {
			return fmt.Errorf("mark order failed: %w", err)
		}

		order, err := tx.Orders().Get(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelinePaymentSignatureInvalid,
			Reason:   reason,
			Occurred: now,
		}); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		shopOrders, err := tx.ShopOrders().ListByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list shop orders: %w", err)
		}
		if err := enqueueOrderEvent(ctx, tx, domain.EventOrderPaymentFailed, order, shopOrders, now); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		e.logger.WithFields(log.Fields{
			"intent_id": req.IntentID,
			"source":    req.Source,
			"reason":    reason,
		}).Warn("payment marked failed")
	}
	return changed, nil
}

func enqueueOrderEvent(ctx context.Context, tx domain.Repositories, eventType string, order domain.Order, shopOrders []domain.ShopOrder, now time.Time) error {
	shopIDs := make([]string, 0, len(shopOrders))
	for _, so := range shopOrders {
		shopIDs = append(shopIDs, so.ShopID)
	}
	msg, err := domain.NewOrderEvent(eventType, order, shopIDs, now)
	if err != nil {
		return err
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

func fulfillmentResult(outcome Outcome, err error) string {
	if err != nil {
		return metrics.FulfillmentError
	}
	switch outcome {
	case OutcomeFulfilled:
		return metrics.FulfillmentFulfilled
	case OutcomeAlreadyFulfilled:
		return metrics.FulfillmentAlreadyFulfilled
	case OutcomePaymentFailed:
		return metrics.FulfillmentPaymentFailed
	default:
		return metrics.FulfillmentError
	}
}
