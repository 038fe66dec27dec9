package kafka

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestProducer_SendJSON(t *testing.T) {
	t.Parallel()

	sp := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithSync(sp, log.WithField("component", "kafka-producer-test"))
	sentAt := time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC)
	producer.clock = func() time.Time { return sentAt }

	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "order-123" || msg.Topic != TopicOrderEvents || !msg.Timestamp.Equal(sentAt) {
			return fmt.Errorf("unexpected record %s/%s at %s", msg.Topic, key, msg.Timestamp)
		}
		var names []string
		for _, h := range msg.Headers {
			names = append(names, string(h.Key))
		}
		if fmt.Sprint(names) != "[x-a x-b]" {
			return fmt.Errorf("headers must be sorted, got %v", names)
		}
		value, _ := msg.Value.Encode()
		var decoded map[string]string
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded["order_id"] != "order-123" {
			return fmt.Errorf("unexpected body %s", value)
		}
		return nil
	})

	err := producer.SendJSON(TopicOrderEvents, "order-123", map[string]string{"order_id": "order-123"},
		map[string]string{"x-b": "2", "x-a": "1"})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_SendErrors(t *testing.T) {
	t.Parallel()

	t.Run("broker failure", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		err := NewProducerWithSync(sp, nil).Send(Message{Topic: TopicOrderEvents, Key: "order-1", Value: []byte(`{}`)})
		require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, sp.Close())
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)

		err := NewProducerWithSync(sp, nil).SendJSON(TopicOrderEvents, "k", make(chan int), nil)
		require.ErrorContains(t, err, "marshal message")
		require.NoError(t, sp.Close())
	})
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(ProducerConfig{ClientID: "marketplace"})
	require.Error(t, err)
}

func TestProducerConfig_SaramaConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         ProducerConfig
		wantRetries int
		wantClient  string
	}{
		{name: "defaults", cfg: ProducerConfig{}, wantRetries: defaultMaxRetries, wantClient: sarama.NewConfig().ClientID},
		{name: "overrides", cfg: ProducerConfig{ClientID: "marketplace", MaxRetries: 2}, wantRetries: 2, wantClient: "marketplace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg.saramaConfig()
			require.Equal(t, tt.wantRetries, cfg.Producer.Retry.Max)
			require.Equal(t, tt.wantClient, cfg.ClientID)
			require.True(t, cfg.Producer.Idempotent)
			require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
			require.Equal(t, 1, cfg.Net.MaxOpenRequests)
			require.NoError(t, cfg.Validate())
		})
	}
}
