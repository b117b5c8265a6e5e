package store

import (
	"context"
	"time"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	"github.com/sony/gobreaker"
)

// breakerStore fails fast while the database is down instead of piling up
// blocked consume-loop goroutines on a dead pool.
type breakerStore struct {
	next MessageStore
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next MessageStore) MessageStore {
	return &breakerStore{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "message-store",
			MaxRequests: 3,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b *breakerStore) Persist(ctx context.Context, ev *model.ChatEvent) (*model.CanonicalMessage, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.Persist(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return res.(*model.CanonicalMessage), nil
}
