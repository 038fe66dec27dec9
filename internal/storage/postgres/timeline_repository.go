package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// timelineRepository пишет в timeline_events; порядок чтения — occurred, затем id вставки.
type timelineRepository struct {
	q querier
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1, $2, $3, $4)`,
		event.OrderID, event.Type, event.Reason, event.Occurred.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append timeline event %s for order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, type, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline for order %s: %w", orderID, err)
	}
	defer rows.Close()

	return scanTimeline(rows)
}

func scanTimeline(rows *sql.Rows) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	for rows.Next() {
		var (
			event  domain.TimelineEvent
			reason sql.NullString
		)
		if err := rows.Scan(&event.OrderID, &event.Type, &reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Reason = reason.String
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
