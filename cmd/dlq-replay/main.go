package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "MARKETPLACE_KAFKA_BROKERS"

	// headerReplayedFrom помечает события, повторно отправленные из DLQ.
	headerReplayedFrom = "x-replayed-from"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// dlqRecord: тело события в DLQ, которое пишет outbox-воркер.
type dlqRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	Attempts      int             `json:"attempts"`
}

type replayMessage struct {
	key      string
	envelope kafka.OutboxEnvelope
	reason   string
	attempts int
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumer struct {
	consumer sarama.Consumer
}

func (c saramaConsumer) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return c.consumer.ConsumePartition(topic, partition, offset)
}

func (c saramaConsumer) Close() error { return c.consumer.Close() }

// dependencies собирает kafka-клиенты; producer создаётся только в execute-режиме.
type dependencies struct {
	client   offsetClient
	consumer partitionSource
	producer replayProducer
}

func (d dependencies) close() {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.consumer != nil {
		_ = d.consumer.Close()
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

var newDependencies = func(cfg config) (dependencies, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = "marketplace-dlq-replay"
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return dependencies{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return dependencies{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := dependencies{client: client, consumer: saramaConsumer{consumer: consumer}}
	if !cfg.execute {
		return deps, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.ClientID = "marketplace-dlq-replay"
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		deps.close()
		return dependencies{}, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.producer = producer
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "order events topic to replay into")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" && getenv != nil {
		brokersRaw = getenv(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.targetTopic == "":
		return config{}, errors.New("target-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("source-topic and target-topic must differ")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	deps, err := newDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	stats, err := replay(ctx, cfg, deps)
	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":         mode,
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"processed":    stats.processed,
		"replayed":     stats.replayed,
		"skipped":      stats.skipped,
	}).Info("dlq replay finished")
	return err
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func replay(ctx context.Context, cfg config, deps dependencies) (replayStats, error) {
	var total replayStats
	if deps.client == nil || deps.consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && deps.producer == nil {
		return total, errors.New("producer is required in execute mode")
	}

	partitions, err := deps.client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := replayPartition(ctx, cfg, deps, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// replayPartition читает партицию от oldest до newest на момент старта.
func replayPartition(ctx context.Context, cfg config, deps dependencies, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	oldest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	pc, err := deps.consumer.ConsumePartition(cfg.sourceTopic, partition, oldest)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)

			stats.processed++
			if err := handleMessage(cfg, deps.producer, msg); err != nil {
				if errors.Is(err, errPublish) {
					return stats, err
				}
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip unsupported dlq message")
			} else {
				stats.replayed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

var errPublish = errors.New("publish replay message")

func handleMessage(cfg config, producer replayProducer, msg *sarama.ConsumerMessage) error {
	r, err := decodeDLQMessage(msg.Value, time.Now().UTC())
	if err != nil {
		return err
	}

	fields := log.Fields{
		"partition":  msg.Partition,
		"offset":     msg.Offset,
		"outbox_id":  r.envelope.ID,
		"event_type": r.envelope.EventType,
		"reason":     r.reason,
		"attempts":   r.attempts,
	}
	if !cfg.execute {
		log.WithFields(fields).Info("dlq replay candidate")
		return nil
	}

	if err := publishReplay(producer, cfg.targetTopic, cfg.sourceTopic, r); err != nil {
		return fmt.Errorf("%w: %v", errPublish, err)
	}
	log.WithFields(fields).Info("dlq event replayed")
	return nil
}

// decodeDLQMessage восстанавливает исходное событие заказа из DLQ-конверта.
func decodeDLQMessage(value []byte, now time.Time) (replayMessage, error) {
	var outer kafka.OutboxEnvelope
	if err := json.Unmarshal(value, &outer); err != nil {
		return replayMessage{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(outer.Payload) == 0 {
		return replayMessage{}, errors.New("dlq envelope has no payload")
	}

	var record dlqRecord
	if err := json.Unmarshal(outer.Payload, &record); err != nil {
		return replayMessage{}, fmt.Errorf("decode dlq record: %w", err)
	}
	if len(record.Payload) == 0 {
		return replayMessage{}, errors.New("dlq record does not contain the original event payload")
	}

	envelope := kafka.OutboxEnvelope{
		ID:            firstNonEmpty(record.OutboxID, outer.ID),
		AggregateType: firstNonEmpty(record.AggregateType, outer.AggregateType),
		AggregateID:   firstNonEmpty(record.AggregateID, outer.AggregateID),
		EventType:     firstNonEmpty(record.EventType, outer.EventType),
		Payload:       record.Payload,
		PublishedAt:   now,
	}
	if envelope.EventType == "" {
		return replayMessage{}, errors.New("dlq record has no event type")
	}

	return replayMessage{
		key:      firstNonEmpty(envelope.AggregateID, envelope.ID),
		envelope: envelope,
		reason:   record.PublishError,
		attempts: record.Attempts,
	}, nil
}

func publishReplay(producer replayProducer, topic, source string, r replayMessage) error {
	if producer == nil {
		return errors.New("producer is nil")
	}
	body, err := json.Marshal(r.envelope)
	if err != nil {
		return fmt.Errorf("encode replay envelope: %w", err)
	}

	headers := kafka.EventHeaders(domain.OutboxMessage{
		ID:            r.envelope.ID,
		AggregateType: r.envelope.AggregateType,
		EventType:     r.envelope.EventType,
	})
	headers[headerReplayedFrom] = source

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(r.key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: r.envelope.PublishedAt,
	}
	for _, name := range []string{kafka.HeaderEventType, kafka.HeaderAggregateType, kafka.HeaderOutboxID, headerReplayedFrom} {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])})
	}
	_, _, err = producer.SendMessage(msg)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
