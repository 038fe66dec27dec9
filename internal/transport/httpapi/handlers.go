package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/checkout"
	"github.com/vladislavdragonenkov/marketplace/internal/service/payment"
)

// HeaderWebhookSignature: подпись тела webhook от шлюза.
const HeaderWebhookSignature = "X-Razorpay-Signature"

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidRequest)
	}
	return nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit %q: %w", raw, domain.ErrInvalidRequest)
	}
	return limit, nil
}

func mustSession(r *http.Request) Session {
	session, _ := SessionFromContext(r.Context())
	return session
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Cart.Get(r.Context(), mustSession(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toCartDTO(c))
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.deps.Cart.AddItem(r.Context(), cart.AddItemRequest{
		CustomerID: mustSession(r).UserID,
		ProductID:  strings.TrimSpace(req.ProductID),
		Qty:        req.Quantity,
		Force:      req.Force,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toCartDTO(c))
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Cart.RemoveItem(r.Context(), mustSession(r).UserID, chi.URLParam(r, "productID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toCartDTO(c))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	price, err := s.deps.Checkout.Quote(r.Context(), mustSession(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toQuoteResponse(price))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ShippingAddress == nil {
		s.writeError(w, r, domain.ErrAddressInvalid)
		return
	}

	result, err := s.deps.Checkout.Checkout(r.Context(), checkout.Request{
		CustomerID:      mustSession(r).UserID,
		ShippingAddress: req.ShippingAddress.toDomain(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, checkoutResponse{
		Order:           toOrderDTO(result.Order),
		GatewayIntentID: result.IntentID,
		Amount:          result.AmountMinor,
		Currency:        result.Currency,
		PublicKey:       result.PublicKey,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Verifier.Verify(r.Context(), payment.VerifyRequest{
		CustomerID:       mustSession(r).UserID,
		IntentID:         strings.TrimSpace(req.GatewayOrderID),
		GatewayPaymentID: strings.TrimSpace(req.GatewayPaymentID),
		Signature:        strings.TrimSpace(req.GatewaySignature),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.JSON(w, r, verifyResponse{
		Success: result.Status == domain.OrderStatusPaid,
		OrderID: result.OrderID,
		Status:  string(result.Status),
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// подпись считается по сырому телу, поэтому без DecodeJSON
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read webhook body: %v: %w", err, domain.ErrInvalidRequest))
		return
	}

	result, err := s.deps.Webhooks.Handle(r.Context(), body, r.Header.Get(HeaderWebhookSignature))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := "ok"
	if !result.Handled {
		status = "ignored"
	}
	render.JSON(w, r, webhookResponse{Status: status})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	orders, err := s.deps.Orders.ListCustomerOrders(r.Context(), mustSession(r).UserID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := ordersResponse{Orders: make([]orderDTO, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderDTO(o))
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := s.deps.Orders.GetOrder(r.Context(), mustSession(r).UserID, chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, toOrderDetailsDTO(details))
}

func (s *Server) handleListShopOrders(w http.ResponseWriter, r *http.Request) {
	session := mustSession(r)
	shopID := chi.URLParam(r, "shopID")

	if session.ShopID != "" && session.ShopID != shopID {
		s.writeError(w, r, domain.ErrForbidden)
		return
	}
	if err := s.deps.Orders.AuthorizeShopOwner(r.Context(), shopID, session.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views, err := s.deps.Orders.ListShopOrders(r.Context(), shopID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := shopOrdersResponse{ShopOrders: make([]shopOrderDTO, 0, len(views))}
	for _, v := range views {
		resp.ShopOrders = append(resp.ShopOrders, toShopOrderViewDTO(v))
	}
	render.JSON(w, r, resp)
}
