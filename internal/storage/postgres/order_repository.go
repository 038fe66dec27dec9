package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const orderColumns = `
	id, customer_id, status, currency, subtotal_minor, tax_minor, handling_fee_minor, amount_minor,
	ship_street, ship_city, ship_state, ship_zip_code, ship_country, payment_id, created_at, updated_at`

type orderRepository struct {
	q querier
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	addr := order.ShippingAddress
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		order.ID, order.CustomerID, string(order.Status), order.Currency,
		order.SubtotalMinor, order.TaxMinor, order.HandlingFeeMinor, order.AmountMinor,
		addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country,
		nullString(order.PaymentID), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.q.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.q.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// UpdateStatus не затирает payment_id, если передана пустая строка.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, paymentID string, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    payment_id = COALESCE($3, payment_id),
		    updated_at = $4
		WHERE id = $1
	`, id, string(status), nullString(paymentID), updatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		status    string
		paymentID sql.NullString
	)
	addr := &order.ShippingAddress
	if err := row.Scan(
		&order.ID, &order.CustomerID, &status, &order.Currency,
		&order.SubtotalMinor, &order.TaxMinor, &order.HandlingFeeMinor, &order.AmountMinor,
		&addr.Street, &addr.City, &addr.State, &addr.ZipCode, &addr.Country,
		&paymentID, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentID = paymentID.String
	return order, nil
}

type shopOrderRepository struct {
	q querier
}

func (r *shopOrderRepository) Create(ctx context.Context, so domain.ShopOrder) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shop_orders (id, order_id, shop_id, customer_id, subtotal_minor, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, so.ID, so.OrderID, so.ShopID, so.CustomerID, so.SubtotalMinor, string(so.Status), so.CreatedAt, so.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert shop order: %w", err)
	}

	for i, item := range so.Items {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO shop_order_items (shop_order_id, position, product_id, name, qty, price_minor)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, so.ID, i, item.ProductID, item.Name, item.Qty, item.PriceMinor); err != nil {
			return fmt.Errorf("insert shop order item: %w", err)
		}
	}
	return nil
}

func (r *shopOrderRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.ShopOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, shop_id, customer_id, subtotal_minor, status, created_at, updated_at
		FROM shop_orders
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list shop orders by order: %w", err)
	}

	result := make([]domain.ShopOrder, 0, 1)
	for rows.Next() {
		so, err := scanShopOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shop order: %w", err)
		}
		result = append(result, so)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate shop orders: %w", err)
	}
	rows.Close()

	for i := range result {
		if result[i].Items, err = r.loadItems(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *shopOrderRepository) ListByShop(ctx context.Context, shopID string, limit int) ([]domain.ShopOrderView, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT so.id, so.order_id, so.shop_id, so.customer_id, so.subtotal_minor, so.status,
		       so.created_at, so.updated_at, COALESCE(c.name, ''), COALESCE(c.email, '')
		FROM shop_orders so
		LEFT JOIN customers c ON c.id = so.customer_id
		WHERE so.shop_id = $1
		ORDER BY so.created_at DESC, so.id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.q.QueryContext(ctx, query+" LIMIT $2", shopID, limit)
	} else {
		rows, err = r.q.QueryContext(ctx, query, shopID)
	}
	if err != nil {
		return nil, fmt.Errorf("list shop orders by shop: %w", err)
	}

	result := make([]domain.ShopOrderView, 0)
	for rows.Next() {
		var (
			view   domain.ShopOrderView
			status string
		)
		so := &view.ShopOrder
		if err := rows.Scan(
			&so.ID, &so.OrderID, &so.ShopID, &so.CustomerID, &so.SubtotalMinor, &status,
			&so.CreatedAt, &so.UpdatedAt, &view.CustomerName, &view.CustomerEmail,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shop order view: %w", err)
		}
		so.Status = domain.ShopOrderStatus(status)
		result = append(result, view)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate shop order views: %w", err)
	}
	rows.Close()

	for i := range result {
		if result[i].Items, err = r.loadItems(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *shopOrderRepository) UpdateStatusByOrder(ctx context.Context, orderID string, status domain.ShopOrderStatus, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.q.ExecContext(ctx, `
		UPDATE shop_orders SET status = $2, updated_at = $3 WHERE order_id = $1
	`, orderID, string(status), updatedAt); err != nil {
		return fmt.Errorf("update shop orders status: %w", err)
	}
	return nil
}

// loadItems читает позиции после закрытия внешнего курсора: на *sql.Tx нельзя держать два открытых rows.
func (r *shopOrderRepository) loadItems(ctx context.Context, shopOrderID string) ([]domain.ShopOrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT product_id, name, qty, price_minor
		FROM shop_order_items
		WHERE shop_order_id = $1
		ORDER BY position ASC
	`, shopOrderID)
	if err != nil {
		return nil, fmt.Errorf("load shop order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ShopOrderItem, 0)
	for rows.Next() {
		var item domain.ShopOrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Qty, &item.PriceMinor); err != nil {
			return nil, fmt.Errorf("scan shop order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shop order items: %w", err)
	}
	return items, nil
}

func scanShopOrder(row rowScanner) (domain.ShopOrder, error) {
	var (
		so     domain.ShopOrder
		status string
	)
	if err := row.Scan(&so.ID, &so.OrderID, &so.ShopID, &so.CustomerID, &so.SubtotalMinor, &status, &so.CreatedAt, &so.UpdatedAt); err != nil {
		return domain.ShopOrder{}, err
	}
	so.Status = domain.ShopOrderStatus(status)
	return so, nil
}

var (
	_ domain.OrderRepository     = (*orderRepository)(nil)
	_ domain.ShopOrderRepository = (*shopOrderRepository)(nil)
)
