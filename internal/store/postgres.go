package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatwire/chat-gateway/internal/domain/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes messages to the relational store owned by the REST
// backend. Schema (managed elsewhere):
//
//	messages(id uuid default gen_random_uuid(), room_id, sender_id, content, created_at)
//	users(id, name, email)
type PostgresStore struct {
	pool *pgxpool.Pool

	// senders caches hot author profiles so the consume loop does not pay a
	// users lookup per event.
	senders *lru.Cache[string, model.Sender]
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	senders, _ := lru.New[string, model.Sender](4096)

	return &PostgresStore{pool: pool, senders: senders}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Persist inserts the event and returns the canonical message carrying the
// store-assigned id, the canonicalized timestamp, and the resolved sender.
func (s *PostgresStore) Persist(ctx context.Context, ev *model.ChatEvent) (*model.CanonicalMessage, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, ev.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	var (
		id     string
		stored time.Time
	)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO messages (room_id, sender_id, content, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ev.RoomID, ev.SenderID, ev.Content, createdAt,
	).Scan(&id, &stored)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}

	sender, err := s.resolveSender(ctx, ev.SenderID)
	if err != nil {
		return nil, err
	}

	return &model.CanonicalMessage{
		ID:        id,
		RoomID:    ev.RoomID,
		Content:   ev.Content,
		Sender:    sender,
		CreatedAt: stored.UTC().Format(time.RFC3339Nano),
	}, nil
}

func (s *PostgresStore) resolveSender(ctx context.Context, senderID string) (model.Sender, error) {
	if cached, ok := s.senders.Get(senderID); ok {
		return cached, nil
	}

	var sender model.Sender
	err := s.pool.QueryRow(ctx,
		`SELECT id, coalesce(name, ''), email FROM users WHERE id = $1`,
		senderID,
	).Scan(&sender.ID, &sender.Name, &sender.Email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Deleted account: keep the message flowing with a bare id.
		sender = model.Sender{ID: senderID}
	case err != nil:
		return model.Sender{}, fmt.Errorf("store: resolve sender: %w", err)
	}

	s.senders.Add(senderID, sender)
	return sender, nil
}
