package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// EventDispatcher defines the high-level contract for outgoing log events.
// Callers stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, topic, roomID string, payload any) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
}

func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{publisher: pub}
}

// Publish marshals the payload and appends it to the topic keyed by roomID,
// so the partition ordering invariant holds for every producer in the
// process.
func (d *eventDispatcher) Publish(ctx context.Context, topic, roomID string, payload any) error {
	if payload == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil payload")
	}
	if roomID == "" {
		return fmt.Errorf("event dispatcher: room id is required for partitioning")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), raw)
	msg.Metadata.Set(MetaRoomID, roomID)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w", topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
