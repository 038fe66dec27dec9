// Package kafka публикует события заказов через sarama.
package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultMaxRetries = 5

// ProducerConfig — параметры sync producer.
type ProducerConfig struct {
	Brokers    []string
	ClientID   string
	MaxRetries int
	Logger     *log.Entry
}

// saramaConfig включает идемпотентного producer: acks=all и один in-flight запрос на брокер.
func (c ProducerConfig) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = defaultMaxRetries
	if c.MaxRetries > 0 {
		cfg.Producer.Retry.Max = c.MaxRetries
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Message: запись для топика. Headers уходят в Kafka в порядке ключей.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (m Message) producerMessage(now time.Time) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic:     m.Topic,
		Key:       sarama.StringEncoder(m.Key),
		Value:     sarama.ByteEncoder(m.Value),
		Timestamp: now,
	}
	names := make([]string, 0, len(m.Headers))
	for name := range m.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(m.Headers[name])})
	}
	return msg
}

// Producer — обёртка над sarama.SyncProducer с логированием доставки.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	clock  func() time.Time
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	sp, err := sarama.NewSyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer for %v: %w", cfg.Brokers, err)
	}
	return NewProducerWithSync(sp, cfg.Logger), nil
}

// NewProducerWithSync оборачивает готовый sarama.SyncProducer (в тестах mocks.SyncProducer).
func NewProducerWithSync(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{sync: sp, logger: logger, clock: time.Now}
}

// Send отправляет запись и ждёт подтверждения всех реплик.
func (p *Producer) Send(m Message) error {
	fields := log.Fields{"topic": m.Topic, "key": m.Key}

	partition, offset, err := p.sync.SendMessage(m.producerMessage(p.clock()))
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", m.Topic, err)
	}

	fields["partition"], fields["offset"] = partition, offset
	p.logger.WithFields(fields).Debug("kafka message delivered")
	return nil
}

// SendJSON сериализует value и отправляет его как Message.
func (p *Producer) SendJSON(topic, key string, value any, headers map[string]string) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", topic, err)
	}
	return p.Send(Message{Topic: topic, Key: key, Value: body, Headers: headers})
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
