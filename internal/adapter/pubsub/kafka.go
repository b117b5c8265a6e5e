// Package pubsub wires the gateway to the durable ordered log. Messages are
// partitioned by room id, which is what guarantees in-order delivery of all
// events belonging to one room to a single consumer.
package pubsub

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/chatwire/chat-gateway/config"
)

// MetaRoomID carries the partition key on every log message.
const MetaRoomID = "room_id"

// partitionMarshaler keys every message by the room id metadata so that all
// events for one room land in one partition in send order.
func partitionMarshaler() kafka.MarshalerUnmarshaler {
	return kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		key := msg.Metadata.Get(MetaRoomID)
		if key == "" {
			return "", fmt.Errorf("message %s has no %s metadata", msg.UUID, MetaRoomID)
		}
		return key, nil
	})
}

// NewKafkaPublisher builds the process-wide producer singleton. The sarama
// sync producer connects while being constructed, so an unreachable broker
// surfaces here as a startup error; mid-flight outages are handled by
// sarama's own reconnect plus the publish-side retry policy.
func NewKafkaPublisher(cfg *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	saramaCfg := kafka.DefaultSaramaSyncPublisherConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               cfg.Kafka.Brokers,
		Marshaler:             partitionMarshaler(),
		OverwriteSaramaConfig: saramaCfg,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return pub, nil
}

// SubscriberProvider builds one consumer-group subscriber per handler.
type SubscriberProvider struct {
	cfg    *config.Config
	logger watermill.LoggerAdapter
}

func NewSubscriberProvider(cfg *config.Config, logger watermill.LoggerAdapter) *SubscriberProvider {
	return &SubscriberProvider{cfg: cfg, logger: logger}
}

// Build returns a subscriber reading under the given consumer group id.
// Within a group, each partition is owned by at most one member, and
// messages of a partition are handed over strictly in order: the next one
// is only delivered after the previous one was acked.
func (sp *SubscriberProvider) Build(group string) (message.Subscriber, error) {
	saramaCfg := kafka.DefaultSaramaSubscriberConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               sp.cfg.Kafka.Brokers,
		Unmarshaler:           partitionMarshaler(),
		OverwriteSaramaConfig: saramaCfg,
		ConsumerGroup:         group,
	}, sp.logger)
	if err != nil {
		return nil, fmt.Errorf("kafka subscriber (group %s): %w", group, err)
	}
	return sub, nil
}
