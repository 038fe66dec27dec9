package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// timelineRepository держит события каждого заказа отсортированными по Occurred.
type timelineRepository struct {
	sc scope
}

// Append вставляет событие после всех событий с тем же или более ранним Occurred.
func (r *timelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	return r.sc.write(func(st *state) error {
		events := st.timeline[event.OrderID]
		at := sort.Search(len(events), func(i int) bool {
			return events[i].Occurred.After(event.Occurred)
		})
		events = append(events, domain.TimelineEvent{})
		copy(events[at+1:], events[at:])
		events[at] = event
		st.timeline[event.OrderID] = events
		return nil
	})
}

func (r *timelineRepository) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	var result []domain.TimelineEvent
	err := r.sc.read(func(st *state) error {
		result = append(make([]domain.TimelineEvent, 0, len(st.timeline[orderID])), st.timeline[orderID]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
