package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// OrderDetails — заказ покупателя вместе с подзаказами, платежом и таймлайном.
type OrderDetails struct {
	Order      domain.Order
	ShopOrders []domain.ShopOrder
	// Payment пустой, если платёж не найден.
	Payment  domain.Payment
	Timeline []domain.TimelineEvent
}

// Service: чтение заказов для покупателя и магазина.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис запросов.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-query")
	}
	return &Service{store: store, logger: logger}
}

// ListCustomerOrders возвращает заказы покупателя от новых к старым.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrCustomerRequired
	}
	return s.store.Orders().ListByCustomer(ctx, customerID, normalizeLimit(limit))
}

// ListShopOrders возвращает подзаказы магазина с контактами покупателя.
func (s *Service) ListShopOrders(ctx context.Context, shopID string, limit int) ([]domain.ShopOrderView, error) {
	if strings.TrimSpace(shopID) == "" {
		return nil, domain.ErrShopRequired
	}
	return s.store.ShopOrders().ListByShop(ctx, shopID, normalizeLimit(limit))
}

// AuthorizeShopOwner проверяет, что ownerID владеет магазином shopID.
func (s *Service) AuthorizeShopOwner(ctx context.Context, shopID, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return domain.ErrUnauthorized
	}
	shop, err := s.store.Shops().Get(ctx, shopID)
	if err != nil {
		return err
	}
	if shop.OwnerID != ownerID {
		s.logger.WithFields(log.Fields{"shop_id": shopID, "owner_id": ownerID}).Warn("shop access denied")
		return domain.ErrForbidden
	}
	return nil
}

// GetOrder возвращает детали заказа. Чужой заказ неотличим от несуществующего.
func (s *Service) GetOrder(ctx context.Context, customerID, orderID string) (OrderDetails, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	if order.CustomerID != customerID {
		return OrderDetails{}, domain.ErrOrderNotFound
	}

	shopOrders, err := s.store.ShopOrders().ListByOrder(ctx, orderID)
	if err != nil {
		return OrderDetails{}, fmt.Errorf("list shop orders: %w", err)
	}
	payment, err := s.store.Payments().GetByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return OrderDetails{}, fmt.Errorf("load payment: %w", err)
	}
	timeline, err := s.store.Timeline().List(ctx, orderID)
	if err != nil {
		return OrderDetails{}, fmt.Errorf("list timeline: %w", err)
	}

	return OrderDetails{
		Order:      order,
		ShopOrders: shopOrders,
		Payment:    payment,
		Timeline:   timeline,
	}, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
