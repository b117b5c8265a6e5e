package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chatwire/chat-gateway/config"
	"github.com/chatwire/chat-gateway/internal/adapter/pubsub"
	"github.com/chatwire/chat-gateway/internal/domain/model"
)

// Appender turns a validated outgoing message into a durable, ordered
// append on the chat-messages log.
type Appender interface {
	Append(ctx context.Context, roomID, text string, sender *model.Identity) (*model.ChatEvent, error)
}

type EventPublisher struct {
	dispatcher pubsub.EventDispatcher
	topic      string
	logger     *slog.Logger

	// Retry window for transient broker failures.
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

func NewEventPublisher(cfg *config.Config, dispatcher pubsub.EventDispatcher, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		dispatcher:      dispatcher,
		topic:           cfg.Kafka.MessagesTopic,
		logger:          logger,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     time.Second,
		maxElapsed:      5 * time.Second,
	}
}

// Append constructs the chat event with a server-stamped creation time and
// appends it keyed by roomID. Transient broker failures are retried with
// capped exponential backoff; a final failure is returned to the caller so
// the session emits an `error` frame instead of a false `queued` ack.
func (p *EventPublisher) Append(ctx context.Context, roomID, text string, sender *model.Identity) (*model.ChatEvent, error) {
	ev := model.NewChatEvent(roomID, text, sender.ID, "")

	op := func() error {
		return p.dispatcher.Publish(ctx, p.topic, ev.RoomID, ev)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialInterval
	bo.MaxInterval = p.maxInterval
	bo.MaxElapsedTime = p.maxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		p.logger.Error("chat event append failed",
			"room_id", roomID,
			"temp_id", ev.TempID,
			"err", err,
		)
		return nil, fmt.Errorf("append chat event: %w", err)
	}

	return ev, nil
}

var _ Appender = (*EventPublisher)(nil)
