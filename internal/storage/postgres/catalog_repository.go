package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type productRepository struct {
	q querier
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = product.CreatedAt
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, shop_id, name, price_minor, stock_quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.ShopID, product.Name, product.PriceMinor, product.StockQuantity,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p domain.Product
	err := r.q.QueryRowContext(ctx, `
		SELECT id, shop_id, name, price_minor, stock_quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.ShopID, &p.Name, &p.PriceMinor, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// DecrementStock уменьшает остаток одним условным UPDATE, без read-modify-write.
func (r *productRepository) DecrementStock(ctx context.Context, id string, qty int32) (int32, bool, error) {
	if qty <= 0 {
		return 0, false, domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var newQty int32
	err := r.q.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock_quantity >= $2
		RETURNING stock_quantity
	`, id, qty).Scan(&newQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("decrement stock: %w", err)
	}
	return newQty, true, nil
}

type shopRepository struct {
	q querier
}

func (r *shopRepository) Create(ctx context.Context, shop domain.Shop) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shops (id, owner_id, name, created_at) VALUES ($1,$2,$3,$4)
	`, shop.ID, shop.OwnerID, shop.Name, shop.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert shop: %w", err)
	}
	return nil
}

func (r *shopRepository) Get(ctx context.Context, id string) (domain.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var shop domain.Shop
	err := r.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, created_at FROM shops WHERE id = $1
	`, id).Scan(&shop.ID, &shop.OwnerID, &shop.Name, &shop.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Shop{}, domain.ErrShopNotFound
		}
		return domain.Shop{}, fmt.Errorf("select shop: %w", err)
	}
	return shop, nil
}

type customerDirectory struct {
	q querier
}

func (r *customerDirectory) Upsert(ctx context.Context, customer domain.Customer) error {
	if customer.ID == "" {
		return domain.ErrCustomerRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
	`, customer.ID, customer.Name, customer.Email); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (r *customerDirectory) Get(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}

var (
	_ domain.ProductRepository = (*productRepository)(nil)
	_ domain.ShopRepository    = (*shopRepository)(nil)
	_ domain.CustomerDirectory = (*customerDirectory)(nil)
)
