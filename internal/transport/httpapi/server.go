package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
	"github.com/vladislavdragonenkov/marketplace/internal/service/query"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	// maxBodyBytes ограничивает тело JSON-запросов и webhook.
	maxBodyBytes = 1 << 20
)

// CartService — операции корзины.
type CartService interface {
	Get(ctx context.Context, customerID string) (domain.Cart, error)
	AddItem(ctx context.Context, req cart.AddItemRequest) (domain.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID string) (domain.Cart, error)
}

// CheckoutService: оценка и оформление заказа.
type CheckoutService interface {
	Quote(ctx context.Context, customerID string) (domain.PriceBreakdown, error)
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

// PaymentVerifier — клиентское подтверждение оплаты.
type PaymentVerifier interface {
	Verify(ctx context.Context, req payment.VerifyRequest) (payment.VerifyResult, error)
}

// WebhookProcessor: серверное подтверждение оплаты.
type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte, signature string) (payment.WebhookResult, error)
}

// OrderQuery — чтение заказов.
type OrderQuery interface {
	ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
	ListShopOrders(ctx context.Context, shopID string, limit int) ([]domain.ShopOrderView, error)
	AuthorizeShopOwner(ctx context.Context, shopID, ownerID string) error
	GetOrder(ctx context.Context, customerID, orderID string) (query.OrderDetails, error)
}

// Dependencies: сервисы, которые обслуживает HTTP API.
type Dependencies struct {
	Cart     CartService
	Checkout CheckoutService
	Verifier PaymentVerifier
	Webhooks WebhookProcessor
	Orders   OrderQuery
	// Idempotency включает заголовок Idempotency-Key для checkout; nil отключает.
	Idempotency domain.IdempotencyRepository
}

// Options — необязательные параметры сервера.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.Metrics
	Sessions       SessionResolver
	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	Clock          func() time.Time
}

// Option настраивает Options.
type Option func(*Options)

func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithSessionResolver заменяет HeaderSessionResolver.
func WithSessionResolver(resolver SessionResolver) Option {
	return func(o *Options) { o.Sessions = resolver }
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.RequestTimeout = timeout }
}

func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(o *Options) { o.IdempotencyTTL = ttl }
}

func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}

// Server: HTTP API маркетплейса.
type Server struct {
	deps           Dependencies
	logger         *log.Entry
	metrics        *metrics.Metrics
	sessions       SessionResolver
	requestTimeout time.Duration
	idempotencyTTL time.Duration
	clock          func() time.Time
	router         chi.Router
}

// NewServer собирает роутер.
func NewServer(deps Dependencies, opts ...Option) *Server {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	sessions := options.Sessions
	if sessions == nil {
		sessions = HeaderSessionResolver{}
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	idempotencyTTL := options.IdempotencyTTL
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyTTL
	}
	clock := options.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	s := &Server{
		deps:           deps,
		logger:         logger,
		metrics:        options.Metrics,
		sessions:       sessions,
		requestTimeout: requestTimeout,
		idempotencyTTL: idempotencyTTL,
		clock:          clock,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorBody{Error: errorDetail{Code: CodeNotFound, Message: "route not found"}})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// webhook подписан секретом шлюза, сессии у него нет
		r.Post("/payments/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession(RoleCustomer))

			r.Get("/cart", s.handleGetCart)
			r.Post("/cart/items", s.handleAddCartItem)
			r.Delete("/cart/items/{productID}", s.handleRemoveCartItem)

			r.Get("/checkout/quote", s.handleQuote)
			r.With(s.idempotent).Post("/checkout", s.handleCheckout)
			r.Post("/payments/verify", s.handleVerify)

			r.Get("/orders", s.handleListOrders)
			r.Get("/orders/{orderID}", s.handleGetOrder)
		})

		r.With(s.requireSession(RoleShopOwner)).Get("/shops/{shopID}/orders", s.handleListShopOrders)
	})

	return r
}
