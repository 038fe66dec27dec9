package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// DefaultCurrency: валюта маркетплейса.
const DefaultCurrency = "INR"

// Request — данные оформления заказа.
type Request struct {
	CustomerID      string
	ShippingAddress domain.Address
}

// Result: созданный заказ и всё, что нужно клиенту для открытия формы оплаты.
type Result struct {
	Order       domain.Order
	ShopOrders  []domain.ShopOrder
	IntentID    string
	AmountMinor int64
	Currency    string
	// PublicKey — публичный key id шлюза; секрет наружу не отдаётся.
	PublicKey string
}

// Options: необязательные зависимости сервиса.
type Options struct {
	Logger   *log.Entry
	Metrics  *metrics.Metrics
	Clock    func() time.Time
	NewID    func() string
	Currency string
}

// Option настраивает Options.
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

// WithIDGenerator подменяет генератор идентификаторов заказов, подзаказов и платежей.
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) { o.NewID = newID }
}

func WithCurrency(currency string) Option {
	return func(o *Options) { o.Currency = currency }
}

// Service превращает корзину в заказ и платёжный intent.
type Service struct {
	store    domain.Store
	gateway  domain.PaymentGateway
	logger   *log.Entry
	metrics  *metrics.Metrics
	clock    func() time.Time
	newID    func() string
	currency string
	tracer   trace.Tracer
}

// NewService собирает сервис оформления заказа.
func NewService(store domain.Store, gateway domain.PaymentGateway, opts ...Option) *Service {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	clock := options.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	newID := options.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	currency := strings.TrimSpace(options.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	return &Service{
		store:    store,
		gateway:  gateway,
		logger:   logger,
		metrics:  options.Metrics,
		clock:    clock,
		newID:    newID,
		currency: currency,
		tracer:   otel.Tracer("marketplace/checkout"),
	}
}

// Quote считает сумму к оплате тем же расчётом, что и Checkout.
func (s *Service) Quote(ctx context.Context, customerID string) (domain.PriceBreakdown, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.PriceBreakdown{}, domain.ErrCustomerRequired
	}
	cart, err := s.store.Carts().Get(ctx, customerID)
	if err != nil {
		return domain.PriceBreakdown{}, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return domain.PriceBreakdown{}, domain.ErrCartEmpty
	}
	return domain.ComputePrice(cart.Items, s.currency)
}

// Checkout проверяет корзину и остатки, создаёт intent в шлюзе и одной транзакцией
// сохраняет Order, ShopOrders и Payment. При любой ошибке состояние не меняется.
func (s *Service) Checkout(ctx context.Context, req Request) (result Result, err error) {
	started := s.clock()
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
	))
	defer func() {
		s.metrics.RecordCheckout(checkoutResult(err), s.clock().Sub(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout failed")
		} else {
			span.SetAttributes(
				attribute.String("order.id", result.Order.ID),
				attribute.String("payment.intent_id", result.IntentID),
			)
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if strings.TrimSpace(req.CustomerID) == "" {
		return Result{}, domain.ErrCustomerRequired
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return Result{}, err
	}

	cart, err := s.store.Carts().Get(ctx, req.CustomerID)
	if err != nil {
		return Result{}, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return Result{}, domain.ErrCartEmpty
	}

	shopOf, err := s.checkStock(ctx, cart.Items)
	if err != nil {
		return Result{}, err
	}

	price, err := domain.ComputePrice(cart.Items, s.currency)
	if err != nil {
		return Result{}, err
	}

	orderID := s.newID()
	intent, err := s.createIntent(ctx, domain.IntentRequest{
		AmountMinor: price.TotalMinor,
		Currency:    price.Currency,
		ReceiptID:   orderID,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"customer_id":  req.CustomerID,
			"amount_minor": price.TotalMinor,
		}).Warn("gateway intent creation failed")
		return Result{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:               orderID,
		CustomerID:       req.CustomerID,
		Status:           domain.OrderStatusPending,
		Currency:         price.Currency,
		SubtotalMinor:    price.SubtotalMinor,
		TaxMinor:         price.TaxMinor,
		HandlingFeeMinor: price.HandlingFeeMinor,
		AmountMinor:      price.TotalMinor,
		ShippingAddress:  req.ShippingAddress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	shopOrders := domain.SplitByShop(order.ID, order.CustomerID, cart.Items, func(productID string) string {
		return shopOf[productID]
	}, now, s.newID)
	payment := domain.Payment{
		ID:          s.newID(),
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Provider:    s.gateway.Provider(),
		IntentID:    intent.ID,
		AmountMinor: price.TotalMinor,
		Currency:    price.Currency,
		Status:      domain.PaymentStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return Result{}, fmt.Errorf("order invariants: %w", errors.Join(errs...))
	}
	if errs := payment.Validate(); len(errs) > 0 {
		return Result{}, fmt.Errorf("payment invariants: %w", errors.Join(errs...))
	}

	err = s.store.InTx(ctx, func(tx domain.Repositories) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		shopIDs := make([]string, 0, len(shopOrders))
		for _, so := range shopOrders {
			if err := tx.ShopOrders().Create(ctx, so); err != nil {
				return fmt.Errorf("create shop order: %w", err)
			}
			shopIDs = append(shopIDs, so.ShopID)
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineOrderCreated,
			Reason:   "intent " + intent.ID,
			Occurred: now,
		}); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		msg, err := domain.NewOrderEvent(domain.EventOrderCreated, order, shopIDs, now)
		if err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
			return fmt.Errorf("enqueue order.created: %w", err)
		}
		return nil
	})
	if err != nil {
		// intent в шлюзе остаётся неиспользованным и истекает на его стороне
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"intent_id": intent.ID,
		}).Error("persist checkout failed")
		return Result{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"intent_id":    intent.ID,
		"amount_minor": order.AmountMinor,
		"shop_orders":  len(shopOrders),
	}).Info("checkout created")

	return Result{
		Order:       order,
		ShopOrders:  shopOrders,
		IntentID:    intent.ID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		PublicKey:   s.gateway.KeyID(),
	}, nil
}

// checkStock перечитывает каждый товар и возвращает product_id → shop_id.
func (s *Service) checkStock(ctx context.Context, items []domain.CartItem) (map[string]string, error) {
	shopOf := make(map[string]string, len(items))
	for _, item := range items {
		if item.Qty <= 0 {
			return nil, fmt.Errorf("cart item %s: %w", item.ProductID, domain.ErrItemQtyInvalid)
		}
		product, err := s.store.Products().Get(ctx, item.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, &domain.InsufficientStockError{ProductID: item.ProductID, Name: item.Name, Requested: item.Qty}
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		if product.StockQuantity < item.Qty {
			return nil, &domain.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: item.Qty,
				Available: product.StockQuantity,
			}
		}
		shopOf[product.ID] = product.ShopID
	}
	return shopOf, nil
}

func (s *Service) createIntent(ctx context.Context, req domain.IntentRequest) (domain.Intent, error) {
	started := s.clock()
	intent, err := s.gateway.CreateIntent(ctx, req)
	s.metrics.RecordGatewayCall(err, s.clock().Sub(started))
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return domain.Intent{}, err
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			return domain.Intent{}, err
		}
		return domain.Intent{}, &domain.GatewayError{Message: err.Error(), Err: err}
	}
	if intent.ID == "" {
		return domain.Intent{}, &domain.GatewayError{Message: "empty intent id"}
	}
	return intent, nil
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return metrics.CheckoutSuccess
	case errors.Is(err, domain.ErrCartEmpty):
		return metrics.CheckoutCartEmpty
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.CheckoutOutOfStock
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return metrics.CheckoutGatewayError
	case errors.Is(err, domain.ErrAddressInvalid),
		errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrInvalidAmount):
		return metrics.CheckoutInvalid
	default:
		return metrics.CheckoutError
	}
}
