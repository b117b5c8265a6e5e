package stream

import (
	"context"
	"fmt"

	"github.com/chatwire/chat-gateway/internal/domain/model"
)

// OnChatMessageV1 is the persistence stage, running under the shared
// consumer group: exactly one node processes each room partition, in order.
func (h *MessageHandler) OnChatMessageV1(ctx context.Context, roomID string, ev *model.ChatEvent) error {
	// 1. [DURABILITY_GATE] Nothing is broadcast until the store accepted it.
	// A failure nacks the event: retried with backoff, dead-lettered last.
	msg, err := h.store.Persist(ctx, ev)
	if err != nil {
		return fmt.Errorf("persist chat event %s: %w", ev.TempID, err)
	}

	// 2. [GLOBAL_DISPATCH] Republish the canonical message, keyed by the
	// same room id, so every gateway node fans it out to local sockets.
	// Redelivery after a failure here may persist the event twice; the log
	// is at-least-once and readers must tolerate duplicates.
	if err := h.dispatcher.Publish(ctx, h.cfg.Kafka.DeliveriesTopic, roomID, msg); err != nil {
		return fmt.Errorf("GLOBAL_DISPATCH_FAILED: %w", err)
	}

	return nil
}

// OnChatDeliveredV1 is the fan-out stage, running under the per-node group:
// every node sees every canonical message and serves its own connections.
func (h *MessageHandler) OnChatDeliveredV1(ctx context.Context, roomID string, msg *model.CanonicalMessage) error {
	// [LOCALITY_FILTER] No members of this room on this node.
	if h.hub.RoomSize(roomID) == 0 {
		return nil
	}

	if !h.hub.Broadcast(roomID, model.NewChatFrame(msg)) {
		// Mailbox overflow sheds the frame for this node only; the event is
		// already durable, so this is loss of liveness, not of record.
		h.logger.Warn("BROADCAST_OVERFLOW", "room_id", roomID, "message_id", msg.ID)
	}
	return nil
}
