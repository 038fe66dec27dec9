package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Коды ошибок в теле ответа.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeAddressInvalid       = "ADDRESS_INVALID"
	CodeCartEmpty            = "CART_EMPTY"
	CodeCartShopConflict     = "CART_SHOP_CONFLICT"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeGatewayError         = "GATEWAY_ERROR"
	CodeSignatureInvalid     = "SIGNATURE_INVALID"
	CodeWebhookInvalid       = "WEBHOOK_INVALID"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeIdempotencyConflict  = "IDEMPOTENCY_KEY_REUSED"
	CodeRequestInProgress    = "REQUEST_IN_PROGRESS"
	CodeInternal             = "INTERNAL"
	internalErrorMessage     = "internal error"
	webhookRejectedMessage   = "webhook rejected"
	gatewayFallbackMessage   = "payment gateway unavailable"
	idempotencyReusedMessage = "idempotency key was used with a different request"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify сопоставляет доменную ошибку HTTP-статусу, коду и безопасному сообщению.
func classify(err error) (int, string, string) {
	var (
		stockErr   *domain.InsufficientStockError
		gatewayErr *domain.GatewayError
	)

	switch {
	case errors.Is(err, domain.ErrWebhookSignatureInvalid):
		// не раскрываем, какая часть проверки не прошла
		return http.StatusBadRequest, CodeWebhookInvalid, webhookRejectedMessage
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized, "session required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, CodeForbidden, "access denied"

	case errors.As(err, &stockErr):
		return http.StatusConflict, CodeInsufficientStock, stockErr.Error()
	case errors.Is(err, domain.ErrCartShopConflict):
		return http.StatusConflict, CodeCartShopConflict, err.Error()

	case errors.As(err, &gatewayErr):
		msg := gatewayErr.Message
		if msg == "" {
			msg = gatewayFallbackMessage
		}
		return http.StatusBadGateway, CodeGatewayError, msg
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, CodeGatewayError, gatewayFallbackMessage
	case errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusBadRequest, CodeSignatureInvalid, "payment signature is invalid"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, CodeInvalidAmount, err.Error()

	case errors.Is(err, domain.ErrAddressInvalid):
		return http.StatusBadRequest, CodeAddressInvalid, err.Error()
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusBadRequest, CodeCartEmpty, err.Error()
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrProductRequired),
		errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrShopRequired):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()

	case domain.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound, err.Error()

	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, CodeIdempotencyConflict, idempotencyReusedMessage
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict, CodeRequestInProgress, "request with this idempotency key is in progress"
	}

	return http.StatusInternalServerError, CodeInternal, internalErrorMessage
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
		"code":       code,
		"request_id": middleware.GetReqID(r.Context()),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: errorDetail{Code: code, Message: message}})
}
