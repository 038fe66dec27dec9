package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
)

const kafkaClientID = "marketplace"

// kafkaRuntime: producer и два паблишера поверх него: события заказов и DLQ.
type kafkaRuntime struct {
	producer *kafka.Producer
	events   *kafka.OutboxTopicPublisher
	dlq      *kafka.OutboxTopicPublisher
}

// initKafka отдаёт nil, nil при пустом списке брокеров: outbox тогда копится в хранилище.
func initKafka(cfg Config, logger *log.Entry) (*kafkaRuntime, error) {
	brokers := splitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:  brokers,
		ClientID: kafkaClientID,
		Logger:   logger.WithField("component", "kafka-producer"),
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": cfg.OutboxTopic}).Info("kafka producer initialized")
	return &kafkaRuntime{
		producer: producer,
		events:   kafka.NewOutboxPublisher(producer, cfg.OutboxTopic),
		dlq:      kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
	}, nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (k *kafkaRuntime) close(logger *log.Entry) {
	if k == nil {
		return
	}
	if err := k.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
