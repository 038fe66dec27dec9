package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/query"
)

// Денежные поля во всех ответах — в минимальных единицах валюты.

type addressDTO struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (a addressDTO) toDomain() domain.Address {
	return domain.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
	}
}

func toAddressDTO(a domain.Address) addressDTO {
	return addressDTO{Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode, Country: a.Country}
}

type checkoutRequest struct {
	ShippingAddress *addressDTO `json:"shippingAddress"`
}

type checkoutResponse struct {
	Order           orderDTO `json:"order"`
	GatewayIntentID string   `json:"gatewayIntentId"`
	Amount          int64    `json:"amount"`
	Currency        string   `json:"currency"`
	PublicKey       string   `json:"publicKey"`
}

type quoteResponse struct {
	SubtotalMinor    int64  `json:"subtotalMinor"`
	TaxMinor         int64  `json:"taxMinor"`
	HandlingFeeMinor int64  `json:"handlingFeeMinor"`
	TotalMinor       int64  `json:"totalMinor"`
	Currency         string `json:"currency"`
}

func toQuoteResponse(p domain.PriceBreakdown) quoteResponse {
	return quoteResponse{
		SubtotalMinor:    p.SubtotalMinor,
		TaxMinor:         p.TaxMinor,
		HandlingFeeMinor: p.HandlingFeeMinor,
		TotalMinor:       p.TotalMinor,
		Currency:         p.Currency,
	}
}

type verifyRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type webhookResponse struct {
	Status string `json:"status"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
	Force     bool   `json:"force"`
}

type cartItemDTO struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"priceMinor"`
}

type cartDTO struct {
	CustomerID string        `json:"customerId"`
	ShopID     string        `json:"shopId,omitempty"`
	Items      []cartItemDTO `json:"items"`
	TotalMinor int64         `json:"totalMinor"`
}

func toCartDTO(c domain.Cart) cartDTO {
	items := make([]cartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemDTO{
			ProductID:  item.ProductID,
			Name:       item.Name,
			Quantity:   item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return cartDTO{
		CustomerID: c.CustomerID,
		ShopID:     c.ShopID,
		Items:      items,
		TotalMinor: c.TotalMinor(),
	}
}

type orderDTO struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	Currency         string     `json:"currency"`
	SubtotalMinor    int64      `json:"subtotalMinor"`
	TaxMinor         int64      `json:"taxMinor"`
	HandlingFeeMinor int64      `json:"handlingFeeMinor"`
	AmountMinor      int64      `json:"amountMinor"`
	ShippingAddress  addressDTO `json:"shippingAddress"`
	PaymentID        string     `json:"paymentId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toOrderDTO(o domain.Order) orderDTO {
	return orderDTO{
		ID:               o.ID,
		Status:           string(o.Status),
		Currency:         o.Currency,
		SubtotalMinor:    o.SubtotalMinor,
		TaxMinor:         o.TaxMinor,
		HandlingFeeMinor: o.HandlingFeeMinor,
		AmountMinor:      o.AmountMinor,
		ShippingAddress:  toAddressDTO(o.ShippingAddress),
		PaymentID:        o.PaymentID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

type shopOrderItemDTO struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"priceMinor"`
}

type shopOrderDTO struct {
	ID            string             `json:"id"`
	OrderID       string             `json:"orderId"`
	ShopID        string             `json:"shopId"`
	Status        string             `json:"status"`
	Items         []shopOrderItemDTO `json:"items"`
	SubtotalMinor int64              `json:"subtotalMinor"`
	CreatedAt     time.Time          `json:"createdAt"`
	CustomerName  string             `json:"customerName,omitempty"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
}

func toShopOrderDTO(so domain.ShopOrder) shopOrderDTO {
	items := make([]shopOrderItemDTO, 0, len(so.Items))
	for _, item := range so.Items {
		items = append(items, shopOrderItemDTO{
			ProductID:  item.ProductID,
			Name:       item.Name,
			Quantity:   item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	return shopOrderDTO{
		ID:            so.ID,
		OrderID:       so.OrderID,
		ShopID:        so.ShopID,
		Status:        string(so.Status),
		Items:         items,
		SubtotalMinor: so.SubtotalMinor,
		CreatedAt:     so.CreatedAt,
	}
}

func toShopOrderViewDTO(v domain.ShopOrderView) shopOrderDTO {
	dto := toShopOrderDTO(v.ShopOrder)
	dto.CustomerName = v.CustomerName
	dto.CustomerEmail = v.CustomerEmail
	return dto
}

type paymentDTO struct {
	ID               string `json:"id"`
	Provider         string `json:"provider"`
	GatewayIntentID  string `json:"gatewayIntentId"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
	AmountMinor      int64  `json:"amountMinor"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
}

type timelineEventDTO struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type orderDetailsDTO struct {
	Order      orderDTO           `json:"order"`
	ShopOrders []shopOrderDTO     `json:"shopOrders"`
	Payment    *paymentDTO        `json:"payment,omitempty"`
	Timeline   []timelineEventDTO `json:"timeline"`
}

func toOrderDetailsDTO(d query.OrderDetails) orderDetailsDTO {
	out := orderDetailsDTO{
		Order:      toOrderDTO(d.Order),
		ShopOrders: make([]shopOrderDTO, 0, len(d.ShopOrders)),
		Timeline:   make([]timelineEventDTO, 0, len(d.Timeline)),
	}
	for _, so := range d.ShopOrders {
		out.ShopOrders = append(out.ShopOrders, toShopOrderDTO(so))
	}
	for _, ev := range d.Timeline {
		out.Timeline = append(out.Timeline, timelineEventDTO{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	if d.Payment.ID != "" {
		out.Payment = &paymentDTO{
			ID:               d.Payment.ID,
			Provider:         d.Payment.Provider,
			GatewayIntentID:  d.Payment.IntentID,
			GatewayPaymentID: d.Payment.GatewayPaymentID,
			AmountMinor:      d.Payment.AmountMinor,
			Currency:         d.Payment.Currency,
			Status:           string(d.Payment.Status),
		}
	}
	return out
}

type ordersResponse struct {
	Orders []orderDTO `json:"orders"`
}

type shopOrdersResponse struct {
	ShopOrders []shopOrderDTO `json:"shopOrders"`
}
