package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	// ProviderRazorpay — код провайдера в Payment.
	ProviderRazorpay = "razorpay"

	defaultBaseURL = "https://api.razorpay.com"
	defaultTimeout = 10 * time.Second
	// maxErrorBody ограничивает чтение тела ошибки шлюза.
	maxErrorBody = 64 << 10
)

// Config: параметры клиента Razorpay.
type Config struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Entry
}

// Razorpay создаёт orders (intent) через REST API шлюза.
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
	logger    *log.Entry
	tracer    trace.Tracer
}

// NewRazorpay проверяет ключи и собирает клиент.
func NewRazorpay(cfg Config) (*Razorpay, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("razorpay key id and key secret are required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "razorpay-gateway")
	}

	return &Razorpay{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
		tracer:    otel.Tracer("marketplace/gateway"),
	}, nil
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent создаёт order в Razorpay. Любая ошибка возвращается как *domain.GatewayError.
func (r *Razorpay) CreateIntent(ctx context.Context, req domain.IntentRequest) (intent domain.Intent, err error) {
	ctx, span := r.tracer.Start(ctx, "razorpay.CreateOrder", trace.WithAttributes(
		attribute.Int64("payment.amount_minor", req.AmountMinor),
		attribute.String("payment.currency", req.Currency),
		attribute.String("payment.receipt", req.ReceiptID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create order failed")
		} else {
			span.SetAttributes(attribute.String("payment.intent_id", intent.ID))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if req.AmountMinor <= 0 {
		return domain.Intent{}, domain.ErrInvalidAmount
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.ReceiptID,
	})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("marshal create order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return domain.Intent{}, &domain.GatewayError{Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(r.keyID, r.keySecret)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return domain.Intent{}, &domain.GatewayError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Intent{}, r.decodeError(resp)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Intent{}, &domain.GatewayError{Message: "decode response", Err: err}
	}
	if out.ID == "" {
		return domain.Intent{}, &domain.GatewayError{Message: "response has no order id"}
	}

	currency := out.Currency
	if currency == "" {
		currency = req.Currency
	}
	return domain.Intent{ID: out.ID, AmountMinor: out.Amount, Currency: currency}, nil
}

func (r *Razorpay) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var parsed errorResponse
	message := http.StatusText(resp.StatusCode)
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Description != "" {
		message = parsed.Error.Description
	}

	r.logger.WithFields(log.Fields{
		"status": resp.StatusCode,
		"code":   parsed.Error.Code,
	}).Warn("razorpay rejected create order")

	return &domain.GatewayError{Message: message, Err: fmt.Errorf("razorpay status %d", resp.StatusCode)}
}

// KeyID — публичный ключ для формы оплаты на клиенте.
func (r *Razorpay) KeyID() string { return r.keyID }

// Provider возвращает код провайдера.
func (r *Razorpay) Provider() string { return ProviderRazorpay }

var _ domain.PaymentGateway = (*Razorpay)(nil)
