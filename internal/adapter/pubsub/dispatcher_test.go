package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	err    error
	topics []string
	msgs   []*message.Message
}

func (p *capturingPublisher) Publish(topic string, msgs ...*message.Message) error {
	if p.err != nil {
		return p.err
	}
	for _, msg := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, msg)
	}
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func TestDispatcherStampsPartitionKey(t *testing.T) {
	req := require.New(t)
	pub := &capturingPublisher{}
	d := NewEventDispatcher(pub)

	ev := model.NewChatEvent("r1", "hello", "u1", "")
	req.NoError(d.Publish(context.Background(), "chat-messages", "r1", ev))

	req.Equal([]string{"chat-messages"}, pub.topics)
	msg := pub.msgs[0]
	req.Equal("r1", msg.Metadata.Get(MetaRoomID), "the room id metadata drives partition assignment")
	req.NotEmpty(msg.UUID)

	var decoded model.ChatEvent
	req.NoError(json.Unmarshal(msg.Payload, &decoded))
	req.Equal(*ev, decoded)
}

func TestDispatcherRejectsInvalidInput(t *testing.T) {
	req := require.New(t)
	d := NewEventDispatcher(&capturingPublisher{})

	req.Error(d.Publish(context.Background(), "chat-messages", "r1", nil),
		"a nil payload must be rejected before it reaches the broker")
	req.Error(d.Publish(context.Background(), "chat-messages", "", &model.ChatEvent{}),
		"an event without a partition key must never be appended")
}

func TestDispatcherPropagatesBrokerFailure(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("broker unavailable")}
	d := NewEventDispatcher(pub)

	err := d.Publish(context.Background(), "chat-messages", "r1", &model.ChatEvent{RoomID: "r1"})
	require.Error(t, err)
}
