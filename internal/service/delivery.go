package service

import (
	"context"

	"github.com/chatwire/chat-gateway/internal/domain/registry"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR THE TRANSPORT HANDLER (WEBSOCKET)
type Deliverer interface {
	Subscribe(ctx context.Context) registry.Connector
	Unsubscribe(conn registry.Connector)
	Join(roomID string, conn registry.Connector) bool
	Leave(roomID string, conn registry.Connector)
}

// [IMPLEMENTATION] PRIVATE TO ENFORCE INTERFACE USAGE
type DeliveryService struct {
	hub registry.Hubber
}

func NewDeliveryService(hub registry.Hubber) *DeliveryService {
	return &DeliveryService{hub: hub}
}

// Subscribe creates the connector that carries every outbound frame for one
// physical connection. The connector is not a room member yet; membership
// only exists between Join and Leave/Unsubscribe.
func (s *DeliveryService) Subscribe(ctx context.Context) registry.Connector {
	// [STRATEGY] Buffer size can later be adjusted per platform or identity.
	const defaultBufferSize = 256

	return registry.NewConnector(ctx, defaultBufferSize)
}

// Unsubscribe removes the connection from every room it joined and recycles
// the connector. Safe for connections that never authenticated or joined.
func (s *DeliveryService) Unsubscribe(conn registry.Connector) {
	s.hub.RemoveConnection(conn)
	conn.Close()
}

// Join is idempotent; it reports whether a membership was newly created so
// the session can decide on presence side effects.
func (s *DeliveryService) Join(roomID string, conn registry.Connector) bool {
	return s.hub.Join(roomID, conn)
}

func (s *DeliveryService) Leave(roomID string, conn registry.Connector) {
	s.hub.Leave(roomID, conn)
}

var _ Deliverer = (*DeliveryService)(nil)
