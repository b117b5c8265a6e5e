// Package store is the durable message-store collaborator. Only events that
// went through Persist may ever be broadcast to clients.
package store

import (
	"context"

	"github.com/chatwire/chat-gateway/config"
	"github.com/chatwire/chat-gateway/internal/domain/model"
	"go.uber.org/fx"
)

// MessageStore persists a chat event and returns its canonical form with the
// permanent identifier and canonicalized timestamp assigned by the store.
type MessageStore interface {
	Persist(ctx context.Context, ev *model.ChatEvent) (*model.CanonicalMessage, error)
}

var Module = fx.Module("store",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config) (*PostgresStore, error) {
			st, err := NewPostgresStore(context.Background(), cfg.Store.DatabaseURL)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					st.Close()
					return nil
				},
			})
			return st, nil
		},
		// [DECORATION_LAYER] Shield the consume loop from a failing database.
		fx.Annotate(
			func(st *PostgresStore) MessageStore { return NewBreakerStore(st) },
			fx.As(new(MessageStore)),
		),
	),
)
