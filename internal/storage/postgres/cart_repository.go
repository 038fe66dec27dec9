package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type cartRepository struct {
	q querier
}

func (r *cartRepository) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	if customerID == "" {
		return domain.Cart{}, domain.ErrCustomerRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cart := domain.Cart{CustomerID: customerID}
	var shopID sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT shop_id, updated_at FROM carts WHERE customer_id = $1
	`, customerID).Scan(&shopID, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cart, nil
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}
	cart.ShopID = shopID.String

	rows, err := r.q.QueryContext(ctx, `
		SELECT product_id, name, qty, price_minor
		FROM cart_items
		WHERE customer_id = $1
		ORDER BY position ASC
	`, customerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Qty, &item.PriceMinor); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

// Save перезаписывает корзину целиком: позиции удаляются и вставляются заново.
func (r *cartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if cart.CustomerID == "" {
		return domain.ErrCustomerRequired
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO carts (customer_id, shop_id, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (customer_id) DO UPDATE
		SET shop_id = EXCLUDED.shop_id, updated_at = EXCLUDED.updated_at
	`, cart.CustomerID, nullString(cart.ShopID), cart.UpdatedAt); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, cart.CustomerID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	for i, item := range cart.Items {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO cart_items (customer_id, position, product_id, name, qty, price_minor)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, cart.CustomerID, i, item.ProductID, item.Name, item.Qty, item.PriceMinor); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}

	return nil
}

func (r *cartRepository) Clear(ctx context.Context, customerID string) error {
	return r.Save(ctx, domain.Cart{CustomerID: customerID, UpdatedAt: time.Now().UTC()})
}

var _ domain.CartRepository = (*cartRepository)(nil)
