// Package stream hosts the single authoritative reader of the chat log: it
// persists every event, then hands the canonical result to the registry for
// fan-out. No chat content reaches a client any other way.
package stream

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/chatwire/chat-gateway/config"
	"github.com/chatwire/chat-gateway/internal/adapter/pubsub"
	"github.com/chatwire/chat-gateway/internal/domain/registry"
	"github.com/chatwire/chat-gateway/internal/store"
	"github.com/google/uuid"
)

// PoisonTopic collects events that exhausted their retry budget. They are
// kept for inspection instead of blocking the partition forever.
const PoisonTopic = "chat-delivery.poison"

type MessageHandler struct {
	hub        registry.Hubber
	logger     *slog.Logger
	store      store.MessageStore
	dispatcher pubsub.EventDispatcher
	cfg        *config.Config
}

func NewMessageHandler(
	hub registry.Hubber,
	logger *slog.Logger,
	st store.MessageStore,
	dispatcher pubsub.EventDispatcher,
	cfg *config.Config,
) *MessageHandler {
	return &MessageHandler{hub: hub, logger: logger, store: st, dispatcher: dispatcher, cfg: cfg}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
}

// [REGISTRATION_PIPELINE]
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), PoisonTopic)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	// [NODE_IDENTITY]
	// The fan-out stage reads under a per-node group so EVERY gateway node
	// observes every canonical message and serves its local sockets, while
	// the persisting stage keeps one shared group (single logical reader
	// per partition, preserving per-room order).
	nodeID := uuid.NewString()[:8]

	configs := []struct {
		name    string
		topic   string
		group   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_CHAT_MESSAGE", h.cfg.Kafka.MessagesTopic, h.cfg.Kafka.GroupID, Bind(h, h.OnChatMessageV1)},
		{"ON_CHAT_DELIVERED", h.cfg.Kafka.DeliveriesTopic,
			fmt.Sprintf("%s.node.%s", h.cfg.Kafka.GroupID, nodeID), Bind(h, h.OnChatDeliveredV1)},
	}

	for _, c := range configs {
		sub, err := subProvider.Build(c.group)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(1000, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("STREAM_PIPELINE_READY",
		"messages_topic", h.cfg.Kafka.MessagesTopic,
		"deliveries_topic", h.cfg.Kafka.DeliveriesTopic,
		"group", h.cfg.Kafka.GroupID,
		"node", nodeID,
	)
	return nil
}
