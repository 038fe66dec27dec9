package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Outbox()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"status":"pending"}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	second, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1", EventType: domain.EventOrderPaid})
	if err != nil {
		t.Fatalf("enqueue second failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected messages in enqueue order, got %+v", pending)
	}

	limited, err := repo.PullPending(ctx, 1)
	if err != nil {
		t.Fatalf("pull limited failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 message, got %d", len(limited))
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Outbox()

	sent, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateTypeOrder})
	failed, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateTypeOrder})

	if err := repo.MarkSent(ctx, sent.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, failed.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty backlog, got %+v", stats)
	}

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
}
