package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// AddItemRequest — добавление товара в корзину.
type AddItemRequest struct {
	CustomerID string
	ProductID  string
	Qty        int32
	// Force заменяет корзину, если в ней лежат товары другого магазина.
	Force bool
}

// Service управляет корзиной и держит инвариант "один магазин на корзину".
type Service struct {
	store  domain.Store
	logger *log.Entry
	clock  func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService создаёт сервис корзины.
func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: log.WithField("component", "cart-service"),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get возвращает корзину клиента; отсутствующая корзина пустая.
func (s *Service) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.Cart{}, domain.ErrCustomerRequired
	}
	return s.store.Carts().Get(ctx, customerID)
}

// AddItem кладёт товар в корзину по текущей цене каталога.
// Конфликт магазинов без Force возвращает ErrCartShopConflict и ничего не меняет.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (domain.Cart, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return domain.Cart{}, domain.ErrCustomerRequired
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.Cart{}, domain.ErrProductRequired
	}
	if req.Qty <= 0 {
		return domain.Cart{}, domain.ErrItemQtyInvalid
	}

	var result domain.Cart
	err := s.store.InTx(ctx, func(tx domain.Repositories) error {
		product, err := tx.Products().Get(ctx, req.ProductID)
		if err != nil {
			return err
		}

		cart, err := tx.Carts().Get(ctx, req.CustomerID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}

		replaced := !cart.IsEmpty() && cart.ShopID != product.ShopID
		if err := cart.AddItem(product.ShopID, domain.CartItem{
			ProductID:  product.ID,
			Name:       product.Name,
			Qty:        req.Qty,
			PriceMinor: product.PriceMinor,
		}, req.Force); err != nil {
			return err
		}
		if replaced {
			s.logger.WithFields(log.Fields{
				"customer_id": req.CustomerID,
				"shop_id":     product.ShopID,
			}).Info("cart replaced by item from another shop")
		}

		cart.UpdatedAt = s.clock()
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}

// RemoveItem убирает позицию; отсутствующая позиция даёт ErrProductNotFound.
func (s *Service) RemoveItem(ctx context.Context, customerID, productID string) (domain.Cart, error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.Cart{}, domain.ErrCustomerRequired
	}

	var result domain.Cart
	err := s.store.InTx(ctx, func(tx domain.Repositories) error {
		cart, err := tx.Carts().Get(ctx, customerID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if !cart.RemoveItem(productID) {
			return fmt.Errorf("cart item %s: %w", productID, domain.ErrProductNotFound)
		}

		cart.UpdatedAt = s.clock()
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		result = cart
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return result, nil
}
