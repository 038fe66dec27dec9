package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/gateway"
)

// VerifyRequest: подтверждение оплаты, присланное клиентом после формы шлюза.
type VerifyRequest struct {
	CustomerID       string
	IntentID         string
	GatewayPaymentID string
	Signature        string
}

// VerifyResult — ответ клиенту.
type VerifyResult struct {
	OrderID string
	Status  domain.OrderStatus
	Outcome Outcome
}

// Verifier проверяет подпись клиента и запускает исполнение.
type Verifier struct {
	engine    *Engine
	keySecret string
}

// NewVerifier создаёт адаптер клиентского подтверждения. keySecret — приватный ключ шлюза.
func NewVerifier(engine *Engine, keySecret string) *Verifier {
	return &Verifier{engine: engine, keySecret: keySecret}
}

// Verify проверяет владельца и подпись. Неверная подпись переводит платёж и заказ
// в failed и возвращает ErrSignatureInvalid.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return VerifyResult{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.IntentID) == "" || strings.TrimSpace(req.GatewayPaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		return VerifyResult{}, fmt.Errorf("gateway order id, payment id and signature are required: %w", domain.ErrInvalidRequest)
	}

	payment, err := v.engine.store.Payments().GetByIntentID(ctx, req.IntentID)
	if err != nil {
		return VerifyResult{}, err
	}
	if payment.CustomerID != req.CustomerID {
		v.engine.logger.WithFields(log.Fields{
			"intent_id":   req.IntentID,
			"customer_id": req.CustomerID,
		}).Warn("verify attempt for foreign payment")
		return VerifyResult{}, domain.ErrForbidden
	}

	fulfill := FulfillRequest{
		IntentID:         req.IntentID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Source:           metrics.SourceClient,
	}

	if !gateway.VerifyPaymentSignature(v.keySecret, req.IntentID, req.GatewayPaymentID, req.Signature) {
		v.engine.metrics.RecordSignatureRejected(metrics.SourceClient)
		if _, err := v.engine.MarkFailed(ctx, fulfill, "client signature mismatch"); err != nil {
			return VerifyResult{}, errors.Join(domain.ErrSignatureInvalid, err)
		}
		return VerifyResult{}, domain.ErrSignatureInvalid
	}

	res, err := v.engine.Fulfill(ctx, fulfill)
	if err != nil {
		return VerifyResult{}, err
	}

	status := domain.OrderStatusPaid
	if res.Outcome == OutcomePaymentFailed {
		status = domain.OrderStatusFailed
	}
	return VerifyResult{OrderID: res.OrderID, Status: status, Outcome: res.Outcome}, nil
}
