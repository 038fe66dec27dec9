package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/gateway"
)

// События шлюза, которые подтверждают оплату.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
)

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookResult — итог обработки доставки webhook.
type WebhookResult struct {
	Event string
	// Handled=false для событий, которые не запускают исполнение.
	Handled bool
	Fulfill FulfillResult
}

// WebhookHandler проверяет подпись тела и исполняет платёж по событиям оплаты.
type WebhookHandler struct {
	engine *Engine
	secret string
}

// NewWebhookHandler создаёт адаптер серверного подтверждения.
func NewWebhookHandler(engine *Engine, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{engine: engine, secret: webhookSecret}
}

// Handle обрабатывает сырое тело webhook. Неверная подпись даёт ErrWebhookSignatureInvalid
// и не меняет состояние.
func (h *WebhookHandler) Handle(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if !gateway.VerifyWebhookSignature(h.secret, body, signature) {
		h.engine.metrics.RecordSignatureRejected(metrics.SourceWebhook)
		return WebhookResult{}, domain.ErrWebhookSignatureInvalid
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookResult{}, fmt.Errorf("decode webhook: %w", domain.ErrInvalidRequest)
	}

	result := WebhookResult{Event: envelope.Event}
	if envelope.Event != EventPaymentCaptured && envelope.Event != EventOrderPaid {
		h.engine.metrics.RecordWebhookEvent(envelope.Event, "ignored")
		h.engine.logger.WithField("event", envelope.Event).Debug("webhook event ignored")
		return result, nil
	}

	entity := envelope.Payload.Payment.Entity
	if strings.TrimSpace(entity.OrderID) == "" {
		h.engine.metrics.RecordWebhookEvent(envelope.Event, "invalid")
		return WebhookResult{}, fmt.Errorf("webhook payment entity has no order_id: %w", domain.ErrInvalidRequest)
	}

	res, err := h.engine.Fulfill(ctx, FulfillRequest{
		IntentID:         entity.OrderID,
		GatewayPaymentID: entity.ID,
		Source:           metrics.SourceWebhook,
	})
	if err != nil {
		h.engine.metrics.RecordWebhookEvent(envelope.Event, "error")
		h.engine.logger.WithError(err).WithFields(log.Fields{
			"event":     envelope.Event,
			"intent_id": entity.OrderID,
		}).Warn("webhook fulfillment failed")
		return WebhookResult{}, err
	}

	h.engine.metrics.RecordWebhookEvent(envelope.Event, string(res.Outcome))
	result.Handled = true
	result.Fulfill = res
	return result, nil
}
