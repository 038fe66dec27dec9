package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type cartRepository struct {
	sc scope
}

// Get возвращает копию корзины; отсутствующая корзина пустая.
func (r *cartRepository) Get(_ context.Context, customerID string) (domain.Cart, error) {
	if customerID == "" {
		return domain.Cart{}, domain.ErrCustomerRequired
	}

	var cart domain.Cart
	err := r.sc.read(func(st *state) error {
		stored, ok := st.carts[customerID]
		if !ok {
			cart = domain.Cart{CustomerID: customerID}
			return nil
		}
		cart = stored.Clone()
		return nil
	})
	return cart, err
}

func (r *cartRepository) Save(_ context.Context, cart domain.Cart) error {
	if cart.CustomerID == "" {
		return domain.ErrCustomerRequired
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = time.Now().UTC()
	}

	return r.sc.write(func(st *state) error {
		st.carts[cart.CustomerID] = cart.Clone()
		return nil
	})
}

func (r *cartRepository) Clear(_ context.Context, customerID string) error {
	return r.sc.write(func(st *state) error {
		st.carts[customerID] = domain.Cart{CustomerID: customerID, UpdatedAt: time.Now().UTC()}
		return nil
	})
}

var _ domain.CartRepository = (*cartRepository)(nil)
