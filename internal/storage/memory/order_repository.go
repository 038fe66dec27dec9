package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type orderRepository struct {
	sc scope
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	return r.sc.write(func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return domain.ErrAlreadyExists
		}
		st.orders[order.ID] = order
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := r.sc.read(func(st *state) error {
		stored, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = stored
		return nil
	})
	return order, err
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	result := make([]domain.Order, 0)
	err := r.sc.read(func(st *state) error {
		for _, order := range st.orders {
			if order.CustomerID == customerID {
				result = append(result, order)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *orderRepository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, paymentID string, updatedAt time.Time) error {
	return r.sc.write(func(st *state) error {
		order, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order.Status = status
		if paymentID != "" {
			order.PaymentID = paymentID
		}
		order.UpdatedAt = updatedAt
		st.orders[id] = order
		return nil
	})
}

type shopOrderRepository struct {
	sc scope
}

func (r *shopOrderRepository) Create(_ context.Context, shopOrder domain.ShopOrder) error {
	return r.sc.write(func(st *state) error {
		if _, exists := st.shopOrders[shopOrder.ID]; exists {
			return domain.ErrAlreadyExists
		}
		st.shopOrders[shopOrder.ID] = shopOrder.Clone()
		return nil
	})
}

func (r *shopOrderRepository) ListByOrder(_ context.Context, orderID string) ([]domain.ShopOrder, error) {
	result := make([]domain.ShopOrder, 0, 1)
	err := r.sc.read(func(st *state) error {
		for _, so := range st.shopOrders {
			if so.OrderID == orderID {
				result = append(result, so.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListByShop подставляет имя и email покупателя из справочника; неизвестный покупатель остаётся пустым.
func (r *shopOrderRepository) ListByShop(_ context.Context, shopID string, limit int) ([]domain.ShopOrderView, error) {
	result := make([]domain.ShopOrderView, 0)
	err := r.sc.read(func(st *state) error {
		for _, so := range st.shopOrders {
			if so.ShopID != shopID {
				continue
			}
			view := domain.ShopOrderView{ShopOrder: so.Clone()}
			if customer, ok := st.customers[so.CustomerID]; ok {
				view.CustomerName = customer.Name
				view.CustomerEmail = customer.Email
			}
			result = append(result, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *shopOrderRepository) UpdateStatusByOrder(_ context.Context, orderID string, status domain.ShopOrderStatus, updatedAt time.Time) error {
	return r.sc.write(func(st *state) error {
		for id, so := range st.shopOrders {
			if so.OrderID != orderID {
				continue
			}
			so.Status = status
			so.UpdatedAt = updatedAt
			st.shopOrders[id] = so
		}
		return nil
	})
}

var (
	_ domain.OrderRepository     = (*orderRepository)(nil)
	_ domain.ShopOrderRepository = (*shopOrderRepository)(nil)
)
