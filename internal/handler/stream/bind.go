package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/chatwire/chat-gateway/internal/adapter/pubsub"
)

// DomainHandler defines the functional signature for business logic.
type DomainHandler[T any] func(ctx context.Context, roomID string, payload *T) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling panic recovery, payload
// decoding, and partition-key extraction.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// A panicking handler must never take the consumer down, but the
		// event was not processed either: surface an error so the retry and
		// poison chain engages instead of silently advancing the partition.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()

		// [IDENTIFICATION]
		// The partition key doubles as the routing room id.
		roomID := msg.Metadata.Get(pubsub.MetaRoomID)
		if roomID == "" {
			h.logger.Warn("ROUTING_FAILED: room_id missing", "msg_id", msg.UUID)
			return nil // ACK: invalid routing is a terminal state.
		}

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: poison pill protection.
		}

		// [EXECUTION]
		// NACK on error triggers the retry policy, then the poison queue.
		return fn(msg.Context(), roomID, payload)
	}
}
