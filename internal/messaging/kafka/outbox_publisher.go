package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher кладёт outbox-сообщения в один topic.
// Ключ записи — id заказа: события одного заказа идут в одну партицию по порядку.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	clock    func() time.Time
}

func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *OutboxTopicPublisher) Topic() string { return p.topic }

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	return p.producer.SendJSON(p.topic, PartitionKey(event), NewEnvelope(event, p.clock()), EventHeaders(event))
}

// PartitionKey: id агрегата, для сообщений без агрегата id самой записи outbox.
func PartitionKey(event domain.OutboxMessage) string {
	if event.AggregateID != "" {
		return event.AggregateID
	}
	return event.ID
}

// NewEnvelope оборачивает событие для топика. Payload, не являющийся JSON, кладётся строкой.
func NewEnvelope(event domain.OutboxMessage, publishedAt time.Time) OutboxEnvelope {
	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(event.Payload))
	}
	return OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt,
	}
}

// EventHeaders — заголовки, по которым потребители фильтруют события без разбора тела.
func EventHeaders(event domain.OutboxMessage) map[string]string {
	return map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
		HeaderOutboxID:      event.ID,
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
