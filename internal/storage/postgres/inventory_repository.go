package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type inventoryLogRepository struct {
	q querier
}

func (r *inventoryLogRepository) Append(ctx context.Context, entry domain.InventoryLog) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO inventory_logs (
			id, product_id, shop_id, quantity_changed, new_quantity, reason, reference_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ProductID, entry.ShopID, entry.QuantityChanged, entry.NewQuantity,
		entry.Reason, entry.ReferenceID, entry.CreatedAt); err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}
	return nil
}

func (r *inventoryLogRepository) ListByReference(ctx context.Context, referenceID string) ([]domain.InventoryLog, error) {
	return r.list(ctx, "reference_id", referenceID)
}

func (r *inventoryLogRepository) ListByProduct(ctx context.Context, productID string) ([]domain.InventoryLog, error) {
	return r.list(ctx, "product_id", productID)
}

func (r *inventoryLogRepository) list(ctx context.Context, column, value string) ([]domain.InventoryLog, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, product_id, shop_id, quantity_changed, new_quantity, reason, reference_id, created_at
		FROM inventory_logs
		WHERE `+column+` = $1
		ORDER BY created_at ASC, id ASC
	`, value)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.InventoryLog, 0)
	for rows.Next() {
		var e domain.InventoryLog
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ShopID, &e.QuantityChanged, &e.NewQuantity,
			&e.Reason, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory log: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory logs: %w", err)
	}
	return result, nil
}

var _ domain.InventoryLogRepository = (*inventoryLogRepository)(nil)
