package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type inventoryLogRepository struct {
	sc scope
}

func (r *inventoryLogRepository) Append(_ context.Context, entry domain.InventoryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.sc.write(func(st *state) error {
		st.inventoryLogs = append(st.inventoryLogs, entry)
		return nil
	})
}

func (r *inventoryLogRepository) ListByReference(_ context.Context, referenceID string) ([]domain.InventoryLog, error) {
	return r.filter(func(e domain.InventoryLog) bool { return e.ReferenceID == referenceID })
}

func (r *inventoryLogRepository) ListByProduct(_ context.Context, productID string) ([]domain.InventoryLog, error) {
	return r.filter(func(e domain.InventoryLog) bool { return e.ProductID == productID })
}

func (r *inventoryLogRepository) filter(match func(domain.InventoryLog) bool) ([]domain.InventoryLog, error) {
	result := make([]domain.InventoryLog, 0)
	err := r.sc.read(func(st *state) error {
		for _, entry := range st.inventoryLogs {
			if match(entry) {
				result = append(result, entry)
			}
		}
		return nil
	})
	return result, err
}

var _ domain.InventoryLogRepository = (*inventoryLogRepository)(nil)
