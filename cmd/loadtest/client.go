package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/service/gateway"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
)

// Шаги сценария в отчёте.
const (
	stepAddItem        = "AddCartItem"
	stepQuote          = "Quote"
	stepCheckout       = "Checkout"
	stepCheckoutReplay = "CheckoutReplay"
	stepVerify         = "VerifyPayment"

	statusTransportError = "transport_error"
	maxResponseBody      = 1 << 20
)

var errUnexpectedResponse = errors.New("unexpected response")

type apiClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	col     *collector
}

func newAPIClient(baseURL string, timeout time.Duration, col *collector) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 256}},
		timeout: timeout,
		col:     col,
	}
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

// call выполняет запрос от имени customerID и записывает шаг в collector.
func (c *apiClient) call(step, method, path, customerID string, headers map[string]string, in, out any) (apiResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.roundTrip(ctx, method, path, customerID, headers, in)
	latency := time.Since(start)
	if err != nil {
		c.col.record(step, latency, statusTransportError, false)
		return apiResponse{}, err
	}

	ok := resp.status >= 200 && resp.status < 300
	if ok && out != nil {
		if err := json.Unmarshal(resp.body, out); err != nil {
			c.col.record(step, latency, "decode_error", false)
			return resp, fmt.Errorf("%s: decode response: %w", step, err)
		}
	}
	c.col.record(step, latency, strconv.Itoa(resp.status), ok)
	if !ok {
		return resp, fmt.Errorf("%w: %s returned %d: %s", errUnexpectedResponse, step, resp.status, bytes.TrimSpace(resp.body))
	}
	return resp, nil
}

func (c *apiClient) roundTrip(ctx context.Context, method, path, customerID string, headers map[string]string, in any) (apiResponse, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apiResponse{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpapi.HeaderUserID, customerID)
	req.Header.Set(httpapi.HeaderRole, string(httpapi.RoleCustomer))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apiResponse{}, fmt.Errorf("read response: %w", err)
	}
	return apiResponse{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

type checkoutResult struct {
	Order struct {
		ID          string `json:"id"`
		AmountMinor int64  `json:"amountMinor"`
	} `json:"order"`
	GatewayIntentID string `json:"gatewayIntentId"`
}

type verifyResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

var loadAddress = map[string]string{
	"street":  "42 Load Street",
	"city":    "Pune",
	"state":   "MH",
	"zipCode": "411001",
	"country": "IN",
}

func (c *apiClient) addItem(customerID, productID string, qty int32) error {
	_, err := c.call(stepAddItem, http.MethodPost, "/api/v1/cart/items", customerID, nil, map[string]any{
		"productId": productID,
		"quantity":  qty,
		"force":     true,
	}, nil)
	return err
}

func (c *apiClient) quote(customerID string) error {
	_, err := c.call(stepQuote, http.MethodGet, "/api/v1/checkout/quote", customerID, nil, nil, nil)
	return err
}

func (c *apiClient) checkout(step, customerID, idempotencyKey string) (checkoutResult, apiResponse, error) {
	var out checkoutResult
	resp, err := c.call(step, http.MethodPost, "/api/v1/checkout", customerID,
		map[string]string{httpapi.HeaderIdempotencyKey: idempotencyKey},
		map[string]any{"shippingAddress": loadAddress}, &out)
	return out, resp, err
}

func (c *apiClient) verify(customerID, keySecret, intentID, paymentID string) (verifyResult, error) {
	var out verifyResult
	_, err := c.call(stepVerify, http.MethodPost, "/api/v1/payments/verify", customerID, nil, map[string]string{
		"gatewayOrderId":   intentID,
		"gatewayPaymentId": paymentID,
		"gatewaySignature": gateway.PaymentSignature(keySecret, intentID, paymentID),
	}, &out)
	return out, err
}
