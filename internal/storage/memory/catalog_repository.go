package memory

import (
	"context"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type productRepository struct {
	sc scope
}

func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	return r.sc.write(func(st *state) error {
		if _, exists := st.products[product.ID]; exists {
			return domain.ErrAlreadyExists
		}
		st.products[product.ID] = product
		return nil
	})
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := r.sc.read(func(st *state) error {
		stored, ok := st.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		product = stored
		return nil
	})
	return product, err
}

// DecrementStock проверяет и уменьшает остаток под одной блокировкой.
func (r *productRepository) DecrementStock(_ context.Context, id string, qty int32) (int32, bool, error) {
	if qty <= 0 {
		return 0, false, domain.ErrItemQtyInvalid
	}

	var (
		newQty int32
		ok     bool
	)
	err := r.sc.write(func(st *state) error {
		product, exists := st.products[id]
		if !exists || product.StockQuantity < qty {
			return nil
		}
		product.StockQuantity -= qty
		st.products[id] = product
		newQty, ok = product.StockQuantity, true
		return nil
	})
	return newQty, ok, err
}

type shopRepository struct {
	sc scope
}

func (r *shopRepository) Create(_ context.Context, shop domain.Shop) error {
	return r.sc.write(func(st *state) error {
		if _, exists := st.shops[shop.ID]; exists {
			return domain.ErrAlreadyExists
		}
		st.shops[shop.ID] = shop
		return nil
	})
}

func (r *shopRepository) Get(_ context.Context, id string) (domain.Shop, error) {
	var shop domain.Shop
	err := r.sc.read(func(st *state) error {
		stored, ok := st.shops[id]
		if !ok {
			return domain.ErrShopNotFound
		}
		shop = stored
		return nil
	})
	return shop, err
}

type customerDirectory struct {
	sc scope
}

func (r *customerDirectory) Upsert(_ context.Context, customer domain.Customer) error {
	if customer.ID == "" {
		return domain.ErrCustomerRequired
	}
	return r.sc.write(func(st *state) error {
		st.customers[customer.ID] = customer
		return nil
	})
}

func (r *customerDirectory) Get(_ context.Context, id string) (domain.Customer, error) {
	var customer domain.Customer
	err := r.sc.read(func(st *state) error {
		stored, ok := st.customers[id]
		if !ok {
			return domain.ErrCustomerNotFound
		}
		customer = stored
		return nil
	})
	return customer, err
}

var (
	_ domain.ProductRepository = (*productRepository)(nil)
	_ domain.ShopRepository    = (*shopRepository)(nil)
	_ domain.CustomerDirectory = (*customerDirectory)(nil)
)
