package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     domain.OutboxStatus
	attemptCnt int
	seq        int64
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository: transactional outbox поверх общего state.
type outboxRepository struct {
	sc scope
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (r *outboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	err := r.sc.write(func(st *state) error {
		st.outbox[msg.ID] = outboxRecord{
			msg:       msg,
			status:    domain.OutboxStatusPending,
			seq:       int64(len(st.outbox)),
			createdAt: now,
			updatedAt: now,
		}
		return nil
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке записи.
func (r *outboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	pending := r.pending()
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

func (r *outboxRepository) Stats(context.Context) (domain.OutboxStats, error) {
	pending := r.pending()

	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(_ context.Context, id string) error {
	return r.markStatus(id, domain.OutboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.markStatus(id, domain.OutboxStatusFailed)
}

func (r *outboxRepository) markStatus(id string, status domain.OutboxStatus) error {
	return r.sc.write(func(st *state) error {
		record, ok := st.outbox[id]
		if !ok {
			return domain.ErrOutboxPublish
		}
		record.status = status
		record.attemptCnt++
		record.updatedAt = time.Now().UTC()
		st.outbox[id] = record
		return nil
	})
}

func (r *outboxRepository) pending() []outboxRecord {
	result := make([]outboxRecord, 0)
	_ = r.sc.read(func(st *state) error {
		for _, rec := range st.outbox {
			if rec.status == domain.OutboxStatusPending {
				result = append(result, rec)
			}
		}
		return nil
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].createdAt.Equal(result[j].createdAt) {
			return result[i].createdAt.Before(result[j].createdAt)
		}
		return result[i].seq < result[j].seq
	})
	return result
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
